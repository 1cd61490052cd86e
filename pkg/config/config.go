package config

import "time"

// Extension policies for labels without a usable file extension.
const (
	ExtensionPolicyLenient = "lenient" // No dot: whole label is the filename, extension empty
	ExtensionPolicyStrict  = "strict"  // No dot or empty extension: malformed metadata
)

// Item failure policies for gallery crawls.
const (
	ItemFailureAbort = "abort" // First failing item aborts the crawl
	ItemFailureSkip  = "skip"  // Failing items are recorded and left out of numbering
)

// Archive backends.
const (
	ArchiveBackendBadger = "badger"
	ArchiveBackendSQLite = "sqlite"
)

// SiteConfig holds overrides for one site module, keyed by its category
type SiteConfig struct {
	Disabled          bool   `yaml:"disabled,omitempty"`
	UserAgent         string `yaml:"user_agent,omitempty"`
	MaxPages          *int   `yaml:"max_pages,omitempty"`
	ItemWorkers       *int   `yaml:"item_workers,omitempty"`
	ExtensionPolicy   string `yaml:"extension_policy,omitempty"`
	ItemFailurePolicy string `yaml:"item_failure_policy,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DefaultUserAgent   string                `yaml:"default_user_agent"`
	StateDir           string                `yaml:"state_dir"`
	MaxRetries         int                   `yaml:"max_retries,omitempty"`
	InitialRetryDelay  time.Duration         `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay      time.Duration         `yaml:"max_retry_delay,omitempty"`
	GlobalCrawlTimeout time.Duration         `yaml:"global_crawl_timeout,omitempty"`
	MaxPageSizeBytes   int64                 `yaml:"max_page_size_bytes,omitempty"`
	MaxPages           int                   `yaml:"max_pages,omitempty"` // Listing page cap per gallery (0 = unlimited)
	ItemWorkers        int                   `yaml:"item_workers,omitempty"`
	ExtensionPolicy    string                `yaml:"extension_policy,omitempty"`
	ItemFailurePolicy  string                `yaml:"item_failure_policy,omitempty"`
	HTTPClientSettings HTTPClientConfig      `yaml:"http_client_settings,omitempty"`
	Archive            ArchiveConfig         `yaml:"archive,omitempty"`
	Output             OutputConfig          `yaml:"output,omitempty"`
	Sites              map[string]SiteConfig `yaml:"sites,omitempty"`
}

// ArchiveConfig selects the store that remembers already-emitted archive keys
type ArchiveConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Backend    string        `yaml:"backend,omitempty"` // "badger" or "sqlite"
	Path       string        `yaml:"path,omitempty"`    // Defaults under state_dir
	GCInterval time.Duration `yaml:"gc_interval,omitempty"`
}

// OutputConfig controls where emitted messages go
type OutputConfig struct {
	Path                 string `yaml:"path,omitempty"` // JSON Lines file; empty or "-" means stdout
	DownloadBaseDir      string `yaml:"download_base_dir,omitempty"`
	EnableMetadataYAML   bool   `yaml:"enable_metadata_yaml,omitempty"`
	MetadataYAMLFilename string `yaml:"metadata_yaml_filename,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// SiteFor returns the overrides for a category, or the zero SiteConfig.
func (c *AppConfig) SiteFor(category string) SiteConfig {
	if c.Sites == nil {
		return SiteConfig{}
	}
	return c.Sites[category]
}

// GetEffectiveUserAgent determines the User-Agent for a site
func GetEffectiveUserAgent(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.UserAgent != "" {
		return siteCfg.UserAgent
	}
	return appCfg.DefaultUserAgent
}

// GetEffectiveMaxPages determines the listing page cap (0 = unlimited)
func GetEffectiveMaxPages(siteCfg SiteConfig, appCfg AppConfig) int {
	if siteCfg.MaxPages != nil {
		return *siteCfg.MaxPages
	}
	return appCfg.MaxPages
}

// GetEffectiveItemWorkers determines how many item pages may be resolved concurrently
func GetEffectiveItemWorkers(siteCfg SiteConfig, appCfg AppConfig) int {
	if siteCfg.ItemWorkers != nil && *siteCfg.ItemWorkers > 0 {
		return *siteCfg.ItemWorkers
	}
	if appCfg.ItemWorkers > 0 {
		return appCfg.ItemWorkers
	}
	return 1
}

// GetEffectiveExtensionPolicy determines the extension policy, defaulting to lenient
func GetEffectiveExtensionPolicy(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.ExtensionPolicy != "" {
		return siteCfg.ExtensionPolicy
	}
	if appCfg.ExtensionPolicy != "" {
		return appCfg.ExtensionPolicy
	}
	return ExtensionPolicyLenient
}

// GetEffectiveItemFailurePolicy determines the per-item failure policy, defaulting to abort
func GetEffectiveItemFailurePolicy(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.ItemFailurePolicy != "" {
		return siteCfg.ItemFailurePolicy
	}
	if appCfg.ItemFailurePolicy != "" {
		return appCfg.ItemFailurePolicy
	}
	return ItemFailureAbort
}

// GetEffectiveMetadataYAMLFilename determines the filename for the YAML crawl summary.
func GetEffectiveMetadataYAMLFilename(appCfg AppConfig) string {
	if appCfg.Output.MetadataYAMLFilename != "" {
		return appCfg.Output.MetadataYAMLFilename
	}
	return "metadata.yaml"
}
