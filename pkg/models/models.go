package models

import (
	"maps"
	"time"
)

// Metadata keys shared by every site module.
const (
	KeyCategory    = "category"
	KeySubcategory = "subcategory"
	KeyTitle       = "title"
	KeyGalleryKey  = "gallery_key"
	KeyDomain      = "domain"
	KeyCount       = "count"
	KeyNum         = "num"
	KeyURL         = "url"
	KeyFilename    = "filename"
	KeyExtension   = "extension"
	KeyImageKey    = "image_key"
	KeyArchiveKey  = "archive_key"
)

// Variant tells whether a URL names one item or a gallery of items
type Variant int

const (
	VariantSingleItem Variant = iota + 1
	VariantGallery
)

// String implements fmt.Stringer for logging
func (v Variant) String() string {
	switch v {
	case VariantSingleItem:
		return "single_item"
	case VariantGallery:
		return "gallery"
	}
	return "unknown"
}

// Metadata is the field mapping attached to every emitted message
type Metadata map[string]any

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	return maps.Clone(m)
}

// Overlay returns a copy of m with every field of over written on top.
func (m Metadata) Overlay(over Metadata) Metadata {
	out := m.Clone()
	maps.Copy(out, over)
	return out
}

// String returns the field as a string, or "" if absent or not a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// ItemRef locates one item page. Href is relative to the site root or absolute.
type ItemRef struct {
	Href string
}

// GalleryMetadata describes a gallery once all of its items are known
type GalleryMetadata struct {
	Category    string
	Subcategory string
	Title       string
	GalleryKey  string
	Domain      string
	ItemCount   int
}

// ToMetadata renders the gallery fields under their shared keys.
func (g GalleryMetadata) ToMetadata() Metadata {
	return Metadata{
		KeyCategory:    g.Category,
		KeySubcategory: g.Subcategory,
		KeyTitle:       g.Title,
		KeyGalleryKey:  g.GalleryKey,
		KeyDomain:      g.Domain,
		KeyCount:       g.ItemCount,
	}
}

// ItemMetadata describes one downloadable file
type ItemMetadata struct {
	Category       string
	Subcategory    string
	DownloadURL    string
	Filename       string
	Extension      string
	ItemKey        string
	SequenceNumber int // 1-based position in the gallery; 0 for single items
	ArchiveKey     string
	Extra          Metadata // Site specific fields, e.g. piwigo's image_id
}

// ToMetadata renders the item fields. Extra fields never replace the core ones.
func (it ItemMetadata) ToMetadata() Metadata {
	m := it.Extra.Clone()
	m[KeyCategory] = it.Category
	m[KeySubcategory] = it.Subcategory
	m[KeyURL] = it.DownloadURL
	m[KeyFilename] = it.Filename
	m[KeyExtension] = it.Extension
	m[KeyImageKey] = it.ItemKey
	m[KeyArchiveKey] = it.ArchiveKey
	if it.SequenceNumber > 0 {
		m[KeyNum] = it.SequenceNumber
	}
	return m
}

// MessageKind distinguishes the two instruction types
type MessageKind int

const (
	MessageDirectory MessageKind = iota + 1
	MessageURL
)

// String implements fmt.Stringer for logging and output records
func (k MessageKind) String() string {
	switch k {
	case MessageDirectory:
		return "directory"
	case MessageURL:
		return "url"
	}
	return "unknown"
}

// Message is one instruction for the downstream sink.
// URL is empty for directory messages.
type Message struct {
	Kind MessageKind
	URL  string
	Data Metadata
}

// NewDirectoryMessage builds a directory message carrying a copy of data.
func NewDirectoryMessage(data Metadata) Message {
	return Message{Kind: MessageDirectory, Data: data.Clone()}
}

// NewURLMessage builds a download message carrying a copy of data.
func NewURLMessage(url string, data Metadata) Message {
	return Message{Kind: MessageURL, URL: url, Data: data.Clone()}
}

// ArchiveEntry is one remembered archive key in the archive store
type ArchiveEntry struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// CrawlMetadata holds the summary of one extraction run, written as YAML.
type CrawlMetadata struct {
	RunID          string          `yaml:"run_id"`
	SourceURL      string          `yaml:"source_url"`
	Category       string          `yaml:"category"`
	Subcategory    string          `yaml:"subcategory"`
	Variant        string          `yaml:"variant"`
	CrawlStartTime time.Time       `yaml:"crawl_start_time"`
	CrawlEndTime   time.Time       `yaml:"crawl_end_time"`
	ListingPages   int             `yaml:"listing_pages,omitempty"`
	Truncated      bool            `yaml:"truncated,omitempty"`
	Directory      map[string]any  `yaml:"directory,omitempty"`
	Items          []ItemRecord    `yaml:"items"`
	Failures       []FailureRecord `yaml:"failures,omitempty"`
}

// ItemRecord is the per-item entry in CrawlMetadata.
type ItemRecord struct {
	Num        int        `yaml:"num,omitempty"`
	ArchiveKey string     `yaml:"archive_key"`
	URL        string     `yaml:"url"`
	Path       string     `yaml:"path,omitempty"`
	Status     ItemStatus `yaml:"status"`
}

// FailureRecord describes an item page that could not be resolved.
type FailureRecord struct {
	Href      string `yaml:"href"`
	ErrorType string `yaml:"error_type"`
	Message   string `yaml:"message"`
}
