package extractor

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/document"
	"github.com/Sriram-PR/gallery-scraper/pkg/fetch"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/parse"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// ListingSpec tells the collector where item links and the next-page
// control live on a listing page. Zero predicates mean "not present".
type ListingSpec struct {
	Container   document.Predicate // Scope for ItemLink; whole document when zero
	ItemLink    document.Predicate
	NextControl document.Predicate // No pagination when zero
	NextLink    document.Predicate // Link inside NextControl; the control itself when zero
}

// CollectResult is the outcome of walking all listing pages
type CollectResult struct {
	Refs      []models.ItemRef // Discovery order
	Pages     int
	Truncated bool // Stopped by the page cap
}

// LinkCollector walks paginated listing pages gathering item links
type LinkCollector struct {
	fetcher  fetch.PageFetcher
	maxPages int // 0 = unlimited
	log      *logrus.Entry
}

// NewLinkCollector creates a collector. maxPages <= 0 means no cap.
func NewLinkCollector(fetcher fetch.PageFetcher, maxPages int, log *logrus.Entry) *LinkCollector {
	if maxPages < 0 {
		maxPages = 0
	}
	return &LinkCollector{fetcher: fetcher, maxPages: maxPages, log: log}
}

// Collect gathers item links starting from an already fetched first page.
// A declared container missing from any page fails the whole collection.
func (c *LinkCollector) Collect(ctx context.Context, startURL *url.URL, firstPage *document.Document, listing ListingSpec) (*CollectResult, error) {
	res := &CollectResult{}
	visited := map[string]struct{}{parse.NormalizeURL(startURL): {}}
	page, pageURL := firstPage, startURL

	if c.maxPages == 0 {
		c.log.WithField("url", startURL.String()).Debug("No listing page cap active, following pagination until it ends")
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Pages++

		found, err := collectPageLinks(page, pageURL, listing)
		if err != nil {
			return nil, err
		}
		res.Refs = append(res.Refs, found...)
		c.log.WithFields(logrus.Fields{"url": pageURL.String(), "page": res.Pages, "links": len(found)}).Debug("Collected listing page")

		next, ok := nextPageURL(page, pageURL, listing)
		if !ok {
			break
		}
		if c.maxPages > 0 && res.Pages >= c.maxPages {
			res.Truncated = true
			c.log.WithFields(logrus.Fields{"max_pages": c.maxPages, "next_url": next.String()}).Warn("Listing page cap reached, gallery truncated")
			break
		}
		key := parse.NormalizeURL(next)
		if _, seen := visited[key]; seen {
			c.log.WithField("next_url", next.String()).Warn("Next page link points to an already visited listing page, stopping")
			break
		}
		visited[key] = struct{}{}

		body, err := c.fetcher.FetchPage(ctx, next.String())
		if err != nil {
			return nil, err
		}
		page, err = document.Parse(body)
		if err != nil {
			return nil, utils.WrapErrorf(err, "listing page %s", next)
		}
		pageURL = next
	}

	return res, nil
}

func collectPageLinks(page *document.Document, pageURL *url.URL, listing ListingSpec) ([]models.ItemRef, error) {
	scope := &page.Element
	if !listing.Container.IsZero() {
		container, ok := page.FindOne(listing.Container)
		if !ok {
			return nil, fmt.Errorf("%w: HTML: listing container missing on %s", utils.ErrParsing, pageURL)
		}
		scope = container
	}

	var refs []models.ItemRef
	for _, link := range scope.FindAll(listing.ItemLink) {
		if href, ok := link.Attr("href"); ok && href != "" {
			refs = append(refs, models.ItemRef{Href: href})
		}
	}
	return refs, nil
}

func nextPageURL(page *document.Document, pageURL *url.URL, listing ListingSpec) (*url.URL, bool) {
	if listing.NextControl.IsZero() {
		return nil, false
	}
	control, ok := page.FindOne(listing.NextControl)
	if !ok {
		return nil, false
	}
	link := control
	if !listing.NextLink.IsZero() {
		if link, ok = control.FindOne(listing.NextLink); !ok {
			return nil, false
		}
	}
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return nil, false
	}
	next, err := pageURL.Parse(href)
	if err != nil {
		return nil, false
	}
	return next, true
}
