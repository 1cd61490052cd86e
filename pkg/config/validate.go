package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.DefaultUserAgent == "" {
		c.DefaultUserAgent = "gallery-scraper/1.0"
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './scraper_state'")
		c.StateDir = "./scraper_state"
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 2
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// GlobalCrawlTimeout
	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes <= 0 {
		c.MaxPageSizeBytes = 50 * 1024 * 1024
	}

	// MaxPages
	if c.MaxPages < 0 {
		warnings = append(warnings, "max_pages cannot be negative, setting to 0 (unlimited)")
		c.MaxPages = 0
	}

	// ItemWorkers
	if c.ItemWorkers <= 0 {
		c.ItemWorkers = 1
	}

	if c.ExtensionPolicy == "" {
		c.ExtensionPolicy = ExtensionPolicyLenient
	} else if !validExtensionPolicy(c.ExtensionPolicy) {
		return warnings, fmt.Errorf("%w: extension_policy must be %q or %q, got %q",
			utils.ErrConfigValidation, ExtensionPolicyLenient, ExtensionPolicyStrict, c.ExtensionPolicy)
	}

	if c.ItemFailurePolicy == "" {
		c.ItemFailurePolicy = ItemFailureAbort
	} else if !validItemFailurePolicy(c.ItemFailurePolicy) {
		return warnings, fmt.Errorf("%w: item_failure_policy must be %q or %q, got %q",
			utils.ErrConfigValidation, ItemFailureAbort, ItemFailureSkip, c.ItemFailurePolicy)
	}

	c.validateHTTPClientSettings()

	archiveWarnings, err := c.validateArchive()
	warnings = append(warnings, archiveWarnings...)
	if err != nil {
		return warnings, err
	}

	// Metadata YAML filename
	if c.Output.EnableMetadataYAML && c.Output.MetadataYAMLFilename == "" {
		warnings = append(warnings,
			"'output.enable_metadata_yaml' is true but 'output.metadata_yaml_filename' is empty. "+
				"Defaulting to 'metadata.yaml'")
		c.Output.MetadataYAMLFilename = "metadata.yaml"
	}

	return warnings, nil
}

// validateArchive applies archive defaults and rejects unknown backends.
func (c *AppConfig) validateArchive() (warnings []string, err error) {
	a := &c.Archive
	if !a.Enabled {
		return nil, nil
	}
	switch a.Backend {
	case "":
		a.Backend = ArchiveBackendBadger
	case ArchiveBackendBadger, ArchiveBackendSQLite:
	default:
		return nil, fmt.Errorf("%w: archive.backend must be %q or %q, got %q",
			utils.ErrConfigValidation, ArchiveBackendBadger, ArchiveBackendSQLite, a.Backend)
	}
	if a.Path == "" {
		if a.Backend == ArchiveBackendSQLite {
			a.Path = filepath.Join(c.StateDir, "archive.sqlite3")
		} else {
			a.Path = filepath.Join(c.StateDir, "archive_db")
		}
		warnings = append(warnings, fmt.Sprintf("archive.path is empty, defaulting to '%s'", a.Path))
	}
	if a.GCInterval < 0 {
		warnings = append(warnings, "archive.gc_interval cannot be negative, using default")
		a.GCInterval = 0
	}
	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 20
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 4
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SiteConfig overrides.
// Returns collected warnings and any fatal error.
func (c *SiteConfig) Validate() (warnings []string, err error) {
	if c.ExtensionPolicy != "" && !validExtensionPolicy(c.ExtensionPolicy) {
		return nil, fmt.Errorf("%w: extension_policy %q is not one of %q, %q",
			utils.ErrConfigValidation, c.ExtensionPolicy, ExtensionPolicyLenient, ExtensionPolicyStrict)
	}
	if c.ItemFailurePolicy != "" && !validItemFailurePolicy(c.ItemFailurePolicy) {
		return nil, fmt.Errorf("%w: item_failure_policy %q is not one of %q, %q",
			utils.ErrConfigValidation, c.ItemFailurePolicy, ItemFailureAbort, ItemFailureSkip)
	}

	if c.MaxPages != nil && *c.MaxPages < 0 {
		warnings = append(warnings, "Site max_pages cannot be negative, setting to 0 (unlimited override)")
		zero := 0
		c.MaxPages = &zero
	}
	if c.ItemWorkers != nil && *c.ItemWorkers <= 0 {
		warnings = append(warnings, "Site item_workers must be > 0, ignoring override")
		c.ItemWorkers = nil
	}
	if c.Disabled {
		warnings = append(warnings, "Site is disabled; URLs it matches will be rejected")
	}
	return warnings, nil
}

func validExtensionPolicy(p string) bool {
	return p == ExtensionPolicyLenient || p == ExtensionPolicyStrict
}

func validItemFailurePolicy(p string) bool {
	return p == ItemFailureAbort || p == ItemFailureSkip
}
