package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/gallery-scraper/pkg/config"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// storeFactories opens each backend in a fresh directory
var storeFactories = map[string]func(t *testing.T, dir string) ArchiveStore{
	"badger": func(t *testing.T, dir string) ArchiveStore {
		s, err := NewBadgerStore(context.Background(), filepath.Join(dir, "archive_db"), testLogger())
		require.NoError(t, err)
		return s
	},
	"sqlite": func(t *testing.T, dir string) ArchiveStore {
		s, err := NewSQLiteStore(filepath.Join(dir, "archive.sqlite3"), testLogger())
		require.NoError(t, err)
		return s
	},
}

func forEachStore(t *testing.T, fn func(t *testing.T, open func() ArchiveStore)) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			fn(t, func() ArchiveStore { return factory(t, dir) })
		})
	}
}

func entry(key string) *models.ArchiveEntry {
	return &models.ArchiveEntry{
		Key:         key,
		URL:         "https://img.test/" + key,
		Category:    "pixhost",
		Subcategory: "gallery",
	}
}

func TestArchiveStore_AddContains(t *testing.T) {
	forEachStore(t, func(t *testing.T, open func() ArchiveStore) {
		store := open()
		t.Cleanup(func() { store.Close() })

		found, err := store.Contains("pixhost:abc_1.jpg")
		require.NoError(t, err)
		assert.False(t, found)

		added, err := store.Add(entry("pixhost:abc_1.jpg"))
		require.NoError(t, err)
		assert.True(t, added)

		added, err = store.Add(entry("pixhost:abc_1.jpg"))
		require.NoError(t, err)
		assert.False(t, added, "second add of the same key")

		found, err = store.Contains("pixhost:abc_1.jpg")
		require.NoError(t, err)
		assert.True(t, found)

		count, err := store.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestArchiveStore_Get(t *testing.T) {
	forEachStore(t, func(t *testing.T, open func() ArchiveStore) {
		store := open()
		t.Cleanup(func() { store.Close() })

		missing, err := store.Get("nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		e := entry("piwigo:7290")
		e.RecordedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		_, err = store.Add(e)
		require.NoError(t, err)

		got, err := store.Get("piwigo:7290")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, e.URL, got.URL)
		assert.Equal(t, "pixhost", got.Category)
		assert.True(t, e.RecordedAt.Equal(got.RecordedAt))
	})
}

func TestArchiveStore_AddSetsRecordedAt(t *testing.T) {
	forEachStore(t, func(t *testing.T, open func() ArchiveStore) {
		store := open()
		t.Cleanup(func() { store.Close() })

		e := entry("k")
		_, err := store.Add(e)
		require.NoError(t, err)
		assert.False(t, e.RecordedAt.IsZero())
	})
}

func TestArchiveStore_PersistsAcrossReopen(t *testing.T) {
	forEachStore(t, func(t *testing.T, open func() ArchiveStore) {
		first := open()
		for _, k := range []string{"a", "b", "c"} {
			_, err := first.Add(entry(k))
			require.NoError(t, err)
		}
		require.NoError(t, first.Close())

		second := open()
		t.Cleanup(func() { second.Close() })

		count, err := second.Count()
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		found, err := second.Contains("b")
		require.NoError(t, err)
		assert.True(t, found)
	})
}

func TestArchiveStore_ConcurrentAdd(t *testing.T) {
	forEachStore(t, func(t *testing.T, open func() ArchiveStore) {
		store := open()
		t.Cleanup(func() { store.Close() })

		var wg sync.WaitGroup
		var mu sync.Mutex
		newCount := 0
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				added, err := store.Add(entry("same-key"))
				assert.NoError(t, err)
				if added {
					mu.Lock()
					newCount++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, newCount, "exactly one writer wins")
		count, err := store.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestArchiveStore_WriteArchiveLog(t *testing.T) {
	forEachStore(t, func(t *testing.T, open func() ArchiveStore) {
		store := open()
		t.Cleanup(func() { store.Close() })

		for _, k := range []string{"pixhost:g_2", "pixhost:g_1"} {
			_, err := store.Add(entry(k))
			require.NoError(t, err)
		}

		logPath := filepath.Join(t.TempDir(), "archive.log")
		require.NoError(t, store.WriteArchiveLog(logPath))

		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		assert.ElementsMatch(t, []string{"pixhost:g_1", "pixhost:g_2"}, lines)
	})
}

func TestBadgerStore_CloseTwice(t *testing.T) {
	store, err := NewBadgerStore(context.Background(), t.TempDir(), testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("badger", func(t *testing.T) {
		store, err := Open(ctx, config.ArchiveConfig{Enabled: true, Backend: config.ArchiveBackendBadger, Path: filepath.Join(t.TempDir(), "db")}, testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		assert.IsType(t, &BadgerStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := Open(ctx, config.ArchiveConfig{Enabled: true, Backend: config.ArchiveBackendSQLite, Path: filepath.Join(t.TempDir(), "a.sqlite3")}, testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(ctx, config.ArchiveConfig{Enabled: true, Backend: "redis"}, testLogger())
		assert.Error(t, err)
	})
}
