// Package crawler runs one extraction invocation end to end: dispatch,
// extraction, archive filtering and output.
package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/config"
	"github.com/Sriram-PR/gallery-scraper/pkg/extractor"
	"github.com/Sriram-PR/gallery-scraper/pkg/fetch"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/output"
	"github.com/Sriram-PR/gallery-scraper/pkg/storage"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// Summary describes a finished run
type Summary struct {
	RunID       string        `json:"run_id"`
	URL         string        `json:"url"`
	Category    string        `json:"category"`
	Subcategory string        `json:"subcategory"`
	Variant     string        `json:"variant"`
	Emitted     int           `json:"emitted"`
	Archived    int           `json:"archived"` // Skipped, key already in the archive store
	Failed      int           `json:"failed"`   // Skipped under the skip failure policy
	Pages       int           `json:"pages,omitempty"`
	Truncated   bool          `json:"truncated,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Crawler wires the extraction engine to the archive store and output sink
type Crawler struct {
	log      *logrus.Entry
	appCfg   *config.AppConfig
	registry *extractor.Registry
	fetcher  fetch.PageFetcher
	store    storage.ArchiveStore // nil disables archive filtering
	out      *output.Manager
}

// NewCrawler creates a Crawler. store may be nil.
func NewCrawler(
	appCfg *config.AppConfig,
	registry *extractor.Registry,
	fetcher fetch.PageFetcher,
	store storage.ArchiveStore,
	out *output.Manager,
	baseLogger *logrus.Entry,
) *Crawler {
	return &Crawler{
		log:      baseLogger.WithField("component", "crawler"),
		appCfg:   appCfg,
		registry: registry,
		fetcher:  fetcher,
		store:    store,
		out:      out,
	}
}

// Match resolves a URL to its dispatch, or utils.ErrNoExtractor.
func (c *Crawler) Match(rawURL string) (extractor.Dispatch, error) {
	d, ok := c.registry.Select(rawURL)
	if !ok {
		return extractor.Dispatch{}, fmt.Errorf("%w: %s", utils.ErrNoExtractor, rawURL)
	}
	return d, nil
}

// Run extracts rawURL and writes its messages. Nothing is written if
// extraction fails.
func (c *Crawler) Run(ctx context.Context, rawURL string) (*Summary, error) {
	start := time.Now()
	d, err := c.Match(rawURL)
	if err != nil {
		return nil, err
	}
	category := d.Site.Category
	siteCfg := c.appCfg.SiteFor(category)
	if siteCfg.Disabled {
		return nil, fmt.Errorf("%w: %s", utils.ErrSiteDisabled, category)
	}

	runID := uuid.NewString()
	runLog := c.log.WithFields(logrus.Fields{
		"run_id":      runID,
		"category":    category,
		"subcategory": d.Pattern.Subcategory,
		"url":         rawURL,
	})
	runLog.Info("Extraction starting")

	fetcher := c.fetcher
	if pc, ok := fetcher.(*fetch.PageClient); ok {
		fetcher = pc.WithUserAgent(config.GetEffectiveUserAgent(siteCfg, *c.appCfg))
	}
	opts := extractor.Options{
		MaxPages:        config.GetEffectiveMaxPages(siteCfg, *c.appCfg),
		ItemWorkers:     config.GetEffectiveItemWorkers(siteCfg, *c.appCfg),
		ExtensionPolicy: config.GetEffectiveExtensionPolicy(siteCfg, *c.appCfg),
		FailurePolicy:   config.GetEffectiveItemFailurePolicy(siteCfg, *c.appCfg),
	}

	res, err := extractor.New(fetcher, opts, runLog).Extract(ctx, d)
	if err != nil {
		runLog.WithField("error_type", utils.CategorizeError(err)).Errorf("Extraction failed: %v", err)
		return nil, err
	}

	summary := &Summary{
		RunID:       runID,
		URL:         rawURL,
		Category:    res.Category,
		Subcategory: res.Subcategory,
		Variant:     res.Variant.String(),
		Failed:      len(res.Failures),
		Pages:       res.Pages,
		Truncated:   res.Truncated,
	}

	c.out.Begin(runID, rawURL, res.Category, res.Subcategory, res.Variant)
	c.out.SetListing(res.Pages, res.Truncated)
	for _, f := range res.Failures {
		c.out.RecordFailure(f.Ref.Href, f.Err)
		c.out.RecordItem(models.ItemRecord{URL: f.Ref.Href, Status: models.ItemStatusFailed})
	}

	if err := c.write(res, summary, runLog); err != nil {
		return summary, err
	}

	summary.Duration = time.Since(start)
	runLog.WithFields(logrus.Fields{
		"emitted":  summary.Emitted,
		"archived": summary.Archived,
		"failed":   summary.Failed,
		"duration": summary.Duration.Round(time.Millisecond),
	}).Info("Extraction finished")
	return summary, nil
}

// write sends the message stream to the sink, skipping Url messages whose
// archive key is already recorded.
func (c *Crawler) write(res *extractor.Result, summary *Summary, log *logrus.Entry) error {
	pattern := res.Pattern
	for msg := range res.Messages() {
		switch msg.Kind {
		case models.MessageDirectory:
			if err := c.out.WriteDirectory(pattern.DirectoryFmt, msg.Data); err != nil {
				return err
			}

		case models.MessageURL:
			key := msg.Data.String(models.KeyArchiveKey)
			num, _ := msg.Data[models.KeyNum].(int)
			rec := models.ItemRecord{Num: num, ArchiveKey: key, URL: msg.URL}

			if c.store != nil {
				seen, err := c.store.Contains(key)
				if err != nil {
					return err
				}
				if seen {
					log.WithField("archive_key", key).Debug("Already archived, skipping")
					rec.Status = models.ItemStatusArchived
					c.out.RecordItem(rec)
					summary.Archived++
					continue
				}
			}

			path, err := c.out.WriteURL(pattern.DirectoryFmt, pattern.FilenameFmt, msg.URL, msg.Data)
			if err != nil {
				return err
			}
			rec.Path = path
			rec.Status = models.ItemStatusEmitted
			c.out.RecordItem(rec)
			summary.Emitted++

			if c.store != nil {
				if _, err := c.store.Add(&models.ArchiveEntry{
					Key:         key,
					URL:         msg.URL,
					Category:    res.Category,
					Subcategory: res.Subcategory,
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
