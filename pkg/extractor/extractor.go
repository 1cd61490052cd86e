// Package extractor is the generic gallery extraction engine: URL dispatch,
// paginated link discovery, per-item resolution and message emission.
// Site modules only declare where things live on their pages.
package extractor

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/gallery-scraper/pkg/config"
	"github.com/Sriram-PR/gallery-scraper/pkg/document"
	"github.com/Sriram-PR/gallery-scraper/pkg/fetch"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// Options tune one extraction run
type Options struct {
	MaxPages        int    // Listing page cap, 0 = unlimited
	ItemWorkers     int    // Concurrent item page resolutions, <= 1 = sequential
	ExtensionPolicy string // config.ExtensionPolicy*
	FailurePolicy   string // config.ItemFailure*
}

// ItemFailure records an item page that could not be resolved under the skip policy
type ItemFailure struct {
	Ref models.ItemRef
	Err error
}

// Result is a fully resolved extraction, ready for emission
type Result struct {
	Category    string
	Subcategory string
	Pattern     *Pattern
	Variant     models.Variant
	Gallery     *models.GalleryMetadata // nil for single items
	Items       []models.ItemMetadata   // Final emission order
	Failures    []ItemFailure
	Pages       int
	Truncated   bool
	Duration    time.Duration
}

// Messages yields the ordered message stream for the result.
func (r *Result) Messages() iter.Seq[models.Message] {
	if r.Gallery != nil {
		return EmitGallery(*r.Gallery, r.Items)
	}
	if len(r.Items) == 0 {
		return func(func(models.Message) bool) {}
	}
	return EmitSingle(r.Items[0])
}

// Extractor runs dispatched URLs through the engine
type Extractor struct {
	fetcher fetch.PageFetcher
	opts    Options
	log     *logrus.Entry
}

// New creates an Extractor.
func New(fetcher fetch.PageFetcher, opts Options, log *logrus.Entry) *Extractor {
	if opts.ExtensionPolicy == "" {
		opts.ExtensionPolicy = config.ExtensionPolicyLenient
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.ItemFailureAbort
	}
	if opts.ItemWorkers < 1 {
		opts.ItemWorkers = 1
	}
	return &Extractor{fetcher: fetcher, opts: opts, log: log}
}

// Extract resolves everything a dispatch names. Nothing is emitted on error.
func (e *Extractor) Extract(ctx context.Context, d Dispatch) (*Result, error) {
	start := time.Now()
	sc, err := d.Site.Context(d)
	if err != nil {
		return nil, err
	}
	log := e.log.WithFields(logrus.Fields{
		"category":    sc.Category,
		"subcategory": sc.Subcategory,
	})

	var res *Result
	switch d.Pattern.Variant {
	case models.VariantGallery:
		res, err = e.extractGallery(ctx, d, sc, log)
	case models.VariantSingleItem:
		res, err = e.extractSingle(ctx, d, sc, log)
	default:
		return nil, fmt.Errorf("unknown variant %v for %s/%s", d.Pattern.Variant, sc.Category, sc.Subcategory)
	}
	if err != nil {
		return nil, err
	}
	res.Category, res.Subcategory = sc.Category, sc.Subcategory
	res.Pattern, res.Variant = d.Pattern, d.Pattern.Variant
	res.Duration = time.Since(start)
	return res, nil
}

func (e *Extractor) extractSingle(ctx context.Context, d Dispatch, sc SiteContext, log *logrus.Entry) (*Result, error) {
	pageURL, err := d.Site.PageURL(sc)
	if err != nil {
		return nil, err
	}
	resolver := NewResolver(e.fetcher, e.opts.ExtensionPolicy, log)
	item, err := resolver.Resolve(ctx, models.ItemRef{Href: pageURL.String()}, sc, d.Site.Media)
	if err != nil {
		return nil, err
	}
	if item.ArchiveKey, err = PatternArchiveKey(d.Pattern, sc.Category, item.ToMetadata(), item.ItemKey); err != nil {
		return nil, err
	}
	return &Result{Items: []models.ItemMetadata{*item}}, nil
}

func (e *Extractor) extractGallery(ctx context.Context, d Dispatch, sc SiteContext, log *logrus.Entry) (*Result, error) {
	pageURL, err := d.Site.PageURL(sc)
	if err != nil {
		return nil, err
	}
	body, err := e.fetcher.FetchPage(ctx, pageURL.String())
	if err != nil {
		return nil, err
	}
	doc, err := document.Parse(body)
	if err != nil {
		return nil, utils.WrapErrorf(err, "gallery page %s", pageURL)
	}

	var title string
	if d.Site.Title != nil {
		if title, err = d.Site.Title(doc); err != nil {
			return nil, utils.WrapErrorf(err, "gallery page %s", pageURL)
		}
	}

	collector := NewLinkCollector(e.fetcher, e.opts.MaxPages, log)
	collected, err := collector.Collect(ctx, pageURL, doc, d.Site.Listing)
	if err != nil {
		return nil, err
	}

	// Listings are newest first; emit in chronological order.
	refs := slices.Clone(collected.Refs)
	slices.Reverse(refs)

	galleryKey := LastPathSegment(pageURL.Path)
	items, failures, err := e.resolveAll(ctx, refs, sc, d.Site.Media, log)
	if err != nil {
		return nil, err
	}
	gallery := &models.GalleryMetadata{
		Category:    sc.Category,
		Subcategory: sc.Subcategory,
		Title:       title,
		GalleryKey:  galleryKey,
		Domain:      sc.Domain,
		ItemCount:   len(items),
	}
	galleryData := gallery.ToMetadata()
	for i := range items {
		items[i].SequenceNumber = i + 1
		key, err := PatternArchiveKey(d.Pattern, sc.Category, galleryData.Overlay(items[i].ToMetadata()), galleryKey, items[i].ItemKey)
		if err != nil {
			return nil, err
		}
		items[i].ArchiveKey = key
	}

	log.WithFields(logrus.Fields{
		"gallery_key": galleryKey,
		"pages":       collected.Pages,
		"items":       len(items),
		"failed":      len(failures),
	}).Info("Gallery resolved")

	return &Result{
		Gallery:   gallery,
		Items:     items,
		Failures:  failures,
		Pages:     collected.Pages,
		Truncated: collected.Truncated,
	}, nil
}

// resolveAll resolves refs in order. Under the skip policy failed refs are
// dropped from the returned slice, keeping the relative order of the rest.
func (e *Extractor) resolveAll(ctx context.Context, refs []models.ItemRef, sc SiteContext, spec MediaSpec, log *logrus.Entry) ([]models.ItemMetadata, []ItemFailure, error) {
	resolver := NewResolver(e.fetcher, e.opts.ExtensionPolicy, log)
	skip := e.opts.FailurePolicy == config.ItemFailureSkip

	resolved := make([]*models.ItemMetadata, len(refs))
	errs := make([]error, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.ItemWorkers)
	for i, ref := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item, err := resolver.Resolve(gctx, ref, sc, spec)
			if err != nil {
				if skip && ctx.Err() == nil {
					errs[i] = err
					return nil
				}
				return utils.WrapErrorf(err, "item %s", ref.Href)
			}
			resolved[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	items := make([]models.ItemMetadata, 0, len(refs))
	var failures []ItemFailure
	for i, ref := range refs {
		if errs[i] != nil {
			log.WithFields(logrus.Fields{
				"href":       ref.Href,
				"error_type": utils.CategorizeError(errs[i]),
			}).Warnf("Skipping item: %v", errs[i])
			failures = append(failures, ItemFailure{Ref: ref, Err: errs[i]})
			continue
		}
		items = append(items, *resolved[i])
	}
	return items, failures, nil
}
