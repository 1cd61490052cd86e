package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/config"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// Open returns the archive store selected by cfg. cfg is expected to have
// passed AppConfig.Validate, so Backend and Path are set.
func Open(ctx context.Context, cfg config.ArchiveConfig, logger *logrus.Entry) (ArchiveStore, error) {
	logger = logger.WithFields(logrus.Fields{"component": "archive", "backend": cfg.Backend})
	switch cfg.Backend {
	case config.ArchiveBackendBadger, "":
		store, err := NewBadgerStore(ctx, cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		go store.RunGC(ctx, cfg.GCInterval)
		return store, nil
	case config.ArchiveBackendSQLite:
		return NewSQLiteStore(cfg.Path, logger)
	}
	return nil, fmt.Errorf("%w: unknown archive backend %q", utils.ErrConfigValidation, cfg.Backend)
}
