package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/log"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

const archiveKeyPrefix = "archive:" // Prefix for archive keys in DB

// BadgerStore implements ArchiveStore using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	ctx      context.Context // Parent context
	keyCount atomic.Int64    // Cached key count for O(1) Count
}

// NewBadgerStore opens (or creates) the archive database in dbPath
func NewBadgerStore(ctx context.Context, dbPath string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{
		log: logger,
		ctx: ctx,
	}

	logger.Infof("Opening archive database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create archive directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing archive keys: %v", err)
	} else {
		store.keyCount.Store(int64(count))
		logger.Infof("Archive database holds %d keys", count)
	}

	return store, nil
}

// countKeys performs a one-time full key scan (used only during initialization).
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	prefix := []byte(archiveKeyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Contains implements ArchiveStore
func (s *BadgerStore) Contains(key string) (bool, error) {
	found := false
	dbKey := []byte(archiveKeyPrefix + key)
	err := s.db.View(func(txn *badger.Txn) error {
		_, errGet := txn.Get(dbKey)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: checking archive key '%s': %w", utils.ErrDatabase, key, err)
	}
	return found, nil
}

// Get implements ArchiveStore
func (s *BadgerStore) Get(key string) (*models.ArchiveEntry, error) {
	var entry *models.ArchiveEntry
	dbKey := []byte(archiveKeyPrefix + key)

	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(dbKey)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		return item.Value(func(val []byte) error {
			var decoded models.ArchiveEntry
			if errJson := json.Unmarshal(val, &decoded); errJson != nil {
				s.log.Warnf("Failed to unmarshal ArchiveEntry for key '%s': %v. Returning key only.", key, errJson)
				decoded = models.ArchiveEntry{Key: key}
			}
			entry = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading archive key '%s': %w", utils.ErrDatabase, key, err)
	}
	return entry, nil
}

// Add implements ArchiveStore
func (s *BadgerStore) Add(entry *models.ArchiveEntry) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("%w: archive DB not initialized", utils.ErrDatabase)
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	value, errJson := json.Marshal(entry)
	if errJson != nil {
		return false, fmt.Errorf("%w: failed to marshal ArchiveEntry for key '%s': %w", utils.ErrDatabase, entry.Key, errJson)
	}

	added := false
	dbKey := []byte(archiveKeyPrefix + entry.Key)
	err := s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(dbKey)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.SetEntry(badger.NewEntry(dbKey, value)); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet // nil if the key already exists
	})
	if err != nil {
		s.log.WithField("key", entry.Key).Errorf("DB Update error in Add: %v", err)
		return false, fmt.Errorf("%w: adding archive key '%s': %w", utils.ErrDatabase, entry.Key, err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// Count implements ArchiveStore.
// Returns the cached key count (O(1)) maintained by atomic increments on writes.
func (s *BadgerStore) Count() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC runs BadgerDB's garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Debug("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}

			var err error
			// Loop GC until it returns ErrNoRewrite or another error
			for {
				if err = s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
			if errors.Is(err, badger.ErrNoRewrite) {
				s.log.Debug("BadgerDB GC finished (no rewrite needed).")
			} else {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection goroutine: %v", ctx.Err())
			return
		}
	}
}

// WriteArchiveLog implements ArchiveStore.
func (s *BadgerStore) WriteArchiveLog(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		s.log.Errorf("Failed create archive log '%s': %v", filePath, err)
		return fmt.Errorf("%w: create archive log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	var dbErr error
	writtenCount := 0
	prefix := []byte(archiveKeyPrefix)

	iterErr := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-s.ctx.Done():
				s.log.Warnf("WriteArchiveLog scan interrupted by context cancellation: %v", s.ctx.Err())
				return s.ctx.Err()
			default:
			}

			key := bytes.TrimPrefix(it.Item().KeyCopy(nil), prefix)
			if _, writeErr := writer.Write(append(key, '\n')); writeErr != nil && dbErr == nil {
				dbErr = writeErr
			}
			writtenCount++
			if writtenCount%5000 == 0 {
				if flushErr := writer.Flush(); flushErr != nil && dbErr == nil {
					dbErr = flushErr
				}
			}
		}
		return nil
	})

	if flushErr := writer.Flush(); flushErr != nil && dbErr == nil {
		dbErr = flushErr
	}
	if syncErr := file.Sync(); syncErr != nil && dbErr == nil {
		dbErr = syncErr
	}

	if errors.Is(iterErr, context.Canceled) || errors.Is(iterErr, context.DeadlineExceeded) {
		return iterErr
	}
	if iterErr != nil {
		return fmt.Errorf("%w: iterating archive keys: %w", utils.ErrDatabase, iterErr)
	}
	if dbErr != nil {
		return fmt.Errorf("%w: writing archive log '%s': %w", utils.ErrFilesystem, filePath, dbErr)
	}
	s.log.Infof("Wrote %d archive keys to %s", writtenCount, filePath)
	return nil
}

// Close implements ArchiveStore
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		s.log.Debug("Closing archive DB...")
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing archive DB: %v", err)
			return err
		}
	}
	return nil
}
