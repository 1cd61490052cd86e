package storage

import "github.com/Sriram-PR/gallery-scraper/pkg/models"

// ArchiveStore remembers archive keys of items already handed to the sink
type ArchiveStore interface {
	// Contains reports whether the archive key was recorded by an earlier run
	Contains(key string) (bool, error)

	// Add records an entry. Returns true if the key was new, false if it already existed
	Add(entry *models.ArchiveEntry) (bool, error)

	// Get returns the stored entry, or nil if the key is unknown
	Get(key string) (*models.ArchiveEntry, error)

	// Count returns the number of recorded keys
	Count() (int, error)

	// WriteArchiveLog writes every recorded key, one per line, to the file path
	WriteArchiveLog(filePath string) error

	// Close cleanly closes the database connection
	Close() error
}
