// Package output is the sink for extraction messages: a JSON Lines stream of
// directory and download instructions plus an optional YAML run summary.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/gallery-scraper/pkg/config"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// Record is one JSON Lines output line
type Record struct {
	Type      string          `json:"type"`
	Directory []string        `json:"directory,omitempty"`
	URL       string          `json:"url,omitempty"`
	Path      string          `json:"path,omitempty"`
	Data      models.Metadata `json:"data"`
}

// Manager owns the output stream and metadata collection for one run.
type Manager struct {
	log    *logrus.Entry
	appCfg *config.AppConfig

	mu       sync.Mutex
	w        io.Writer
	file     *os.File // nil when writing to a caller supplied writer
	filePath string

	metadata models.CrawlMetadata
}

// NewManager opens the configured output path. An empty path or "-" writes to stdout.
func NewManager(appCfg *config.AppConfig, stdout io.Writer, log *logrus.Entry) (*Manager, error) {
	m := &Manager{log: log, appCfg: appCfg}
	path := appCfg.Output.Path
	if path == "" || path == "-" {
		m.w = stdout
		return m, nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create output directory '%s': %w", utils.ErrFilesystem, dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open output file '%s': %w", utils.ErrFilesystem, path, err)
	}
	log.Infof("Writing messages to: %s", path)
	m.w, m.file, m.filePath = file, file, path
	return m, nil
}

// NewWriterManager writes records to w without touching the filesystem.
func NewWriterManager(appCfg *config.AppConfig, w io.Writer, log *logrus.Entry) *Manager {
	return &Manager{log: log, appCfg: appCfg, w: w}
}

// Begin resets the run summary.
func (m *Manager) Begin(runID, sourceURL, category, subcategory string, variant models.Variant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata = models.CrawlMetadata{
		RunID:          runID,
		SourceURL:      sourceURL,
		Category:       category,
		Subcategory:    subcategory,
		Variant:        variant.String(),
		CrawlStartTime: time.Now(),
		Items:          []models.ItemRecord{},
	}
}

// WriteDirectory writes a directory record with its rendered path components.
func (m *Manager) WriteDirectory(directoryFmt []string, data models.Metadata) error {
	dir := make([]string, 0, len(directoryFmt))
	for _, d := range directoryFmt {
		s, err := FormatTemplate(d, data)
		if err != nil {
			return err
		}
		dir = append(dir, utils.SanitizeFilename(s))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata.Directory = data.Clone()
	return m.writeLocked(Record{Type: models.MessageDirectory.String(), Directory: dir, Data: data})
}

// WriteURL writes a download record. The path is relative to the configured
// download base dir and is returned for the run summary.
func (m *Manager) WriteURL(directoryFmt []string, filenameFmt, url string, data models.Metadata) (string, error) {
	rel, err := SuggestedPath(directoryFmt, filenameFmt, data)
	if err != nil {
		return "", err
	}
	if base := m.appCfg.Output.DownloadBaseDir; base != "" {
		rel = filepath.Join(base, rel)
	}
	rel = filepath.ToSlash(rel)

	m.mu.Lock()
	defer m.mu.Unlock()
	return rel, m.writeLocked(Record{Type: models.MessageURL.String(), URL: url, Path: rel, Data: data})
}

// RecordItem adds an item outcome to the run summary.
func (m *Manager) RecordItem(rec models.ItemRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata.Items = append(m.metadata.Items, rec)
}

// RecordFailure adds a skipped item to the run summary.
func (m *Manager) RecordFailure(href string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata.Failures = append(m.metadata.Failures, models.FailureRecord{
		Href:      href,
		ErrorType: utils.CategorizeError(err),
		Message:   err.Error(),
	})
}

// SetListing records pagination stats in the run summary.
func (m *Manager) SetListing(pages int, truncated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata.ListingPages = pages
	m.metadata.Truncated = truncated
}

// Summary returns a copy of the run summary collected so far.
func (m *Manager) Summary() models.CrawlMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.metadata
	s.Items = append([]models.ItemRecord(nil), m.metadata.Items...)
	s.Failures = append([]models.FailureRecord(nil), m.metadata.Failures...)
	return s
}

func (m *Manager) writeLocked(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", rec.Type, err)
	}
	if _, err := m.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: write %s record: %w", utils.ErrFilesystem, rec.Type, err)
	}
	return nil
}

// Close syncs and closes the output file and writes the YAML summary if enabled.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.file != nil {
		if err := m.file.Sync(); err != nil {
			m.log.Errorf("Error syncing output file '%s': %v", m.filePath, err)
		}
		if err := m.file.Close(); err != nil {
			m.log.Errorf("Error closing output file '%s': %v", m.filePath, err)
		}
		m.file = nil
	}
	m.mu.Unlock()
	return m.writeMetadataYAML()
}

// writeMetadataYAML writes the run summary to a YAML file under the state dir.
func (m *Manager) writeMetadataYAML() error {
	if !m.appCfg.Output.EnableMetadataYAML {
		return nil
	}
	summary := m.Summary()
	if summary.RunID == "" {
		return nil // Begin never called, nothing was extracted
	}
	summary.CrawlEndTime = time.Now()

	filename := config.GetEffectiveMetadataYAMLFilename(*m.appCfg)
	yamlFilePath := filepath.Join(m.appCfg.StateDir, filename)
	if err := os.MkdirAll(filepath.Dir(yamlFilePath), 0755); err != nil {
		return fmt.Errorf("%w: create metadata directory: %w", utils.ErrFilesystem, err)
	}

	yamlData, err := yaml.Marshal(&summary)
	if err != nil {
		m.log.Errorf("Failed to marshal crawl metadata to YAML: %v", err)
		return fmt.Errorf("failed to marshal crawl metadata to YAML: %w", err)
	}
	if err := os.WriteFile(yamlFilePath, yamlData, 0644); err != nil {
		m.log.Errorf("Failed to write metadata YAML file '%s': %v", yamlFilePath, err)
		return fmt.Errorf("%w: write metadata YAML file '%s': %w", utils.ErrFilesystem, yamlFilePath, err)
	}

	m.log.Infof("Wrote crawl metadata (%d items) to %s", len(summary.Items), yamlFilePath)
	return nil
}
