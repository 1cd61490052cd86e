package storage

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// SQLiteStore implements ArchiveStore on a single SQLite file
type SQLiteStore struct {
	db  *sql.DB
	log *logrus.Entry
}

// NewSQLiteStore opens (or creates) the archive database file at dbPath.
func NewSQLiteStore(dbPath string, logger *logrus.Entry) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: cannot create archive directory %s: %w", utils.ErrFilesystem, dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", utils.ErrDatabase, err)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, log: logger}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %w", utils.ErrDatabase, err)
	}

	logger.Infof("Opened archive database at: %s", dbPath)
	return store, nil
}

// initSchema creates the archive table if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS archive (
		entry TEXT PRIMARY KEY,
		url TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		subcategory TEXT NOT NULL DEFAULT '',
		recorded_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Contains implements ArchiveStore
func (s *SQLiteStore) Contains(key string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM archive WHERE entry = ?", key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: checking archive key '%s': %w", utils.ErrDatabase, key, err)
	}
	return true, nil
}

// Get implements ArchiveStore
func (s *SQLiteStore) Get(key string) (*models.ArchiveEntry, error) {
	var entry models.ArchiveEntry
	var recordedAt string
	err := s.db.QueryRow(
		"SELECT entry, url, category, subcategory, recorded_at FROM archive WHERE entry = ?", key,
	).Scan(&entry.Key, &entry.URL, &entry.Category, &entry.Subcategory, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading archive key '%s': %w", utils.ErrDatabase, key, err)
	}
	if t, errParse := time.Parse(time.RFC3339Nano, recordedAt); errParse == nil {
		entry.RecordedAt = t
	} else {
		s.log.Warnf("Invalid recorded_at %q for archive key '%s'", recordedAt, key)
	}
	return &entry, nil
}

// Add implements ArchiveStore
func (s *SQLiteStore) Add(entry *models.ArchiveEntry) (bool, error) {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO archive (entry, url, category, subcategory, recorded_at) VALUES (?, ?, ?, ?, ?)",
		entry.Key, entry.URL, entry.Category, entry.Subcategory, entry.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("%w: adding archive key '%s': %w", utils.ErrDatabase, entry.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: adding archive key '%s': %w", utils.ErrDatabase, entry.Key, err)
	}
	return n == 1, nil
}

// Count implements ArchiveStore
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM archive").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting archive keys: %w", utils.ErrDatabase, err)
	}
	return n, nil
}

// WriteArchiveLog implements ArchiveStore
func (s *SQLiteStore) WriteArchiveLog(filePath string) error {
	rows, err := s.db.Query("SELECT entry FROM archive ORDER BY entry")
	if err != nil {
		return fmt.Errorf("%w: listing archive keys: %w", utils.ErrDatabase, err)
	}
	defer rows.Close()

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create archive log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	written := 0
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return fmt.Errorf("%w: scanning archive key: %w", utils.ErrDatabase, err)
		}
		if _, err := writer.WriteString(key + "\n"); err != nil {
			return fmt.Errorf("%w: writing archive log '%s': %w", utils.ErrFilesystem, filePath, err)
		}
		written++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterating archive keys: %w", utils.ErrDatabase, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: writing archive log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	s.log.Infof("Wrote %d archive keys to %s", written, filePath)
	return file.Sync()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
