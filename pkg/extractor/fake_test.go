package extractor

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/document"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// fakeFetcher serves pages from a map and records every request
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	requests []string
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, pageURL)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %s: %w", utils.ErrTransport, pageURL, err)
	}
	body, ok := f.pages[pageURL]
	if !ok {
		return "", fmt.Errorf("%w: %s: %w: status 404 Not Found", utils.ErrTransport, pageURL, utils.ErrClientHTTPError)
	}
	return body, nil
}

func (f *fakeFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testSite is a minimal gallery site served from https://gallery.test/
func testSite() *Site {
	return &Site{
		Category: "testsite",
		Root:     "https://gallery.test/",
		Patterns: []*Pattern{
			{
				Subcategory: "gallery",
				Variant:     models.VariantGallery,
				Expr:        regexp.MustCompile(`^(?:https?://)?gallery\.test(?P<path>/album/[a-z0-9]+)`),
				ArchiveFmt:  "{gallery_key}_{image_key}",
			},
			{
				Subcategory: "image",
				Variant:     models.VariantSingleItem,
				Expr:        regexp.MustCompile(`^(?:https?://)?gallery\.test(?P<path>/image/[a-z0-9]+)`),
				ArchiveFmt:  "{image_key}",
			},
		},
		Listing: ListingSpec{
			Container:   document.Any().WithID("items"),
			ItemLink:    document.Tag("a").AttrMatching("href", regexp.MustCompile(`/image/`)),
			NextControl: document.Tag("li").WithClass("next"),
			NextLink:    document.Tag("a").WithAttr("href"),
		},
		Media: MediaSpec{
			Element: document.Tag("img").WithID("main"),
			Key:     KeyFromRefPath,
		},
		Title: func(doc *document.Document) (string, error) {
			h, ok := doc.FindOne(document.Tag("h1"))
			if !ok {
				return "", fmt.Errorf("%w: HTML: title missing", utils.ErrParsing)
			}
			return h.Text(), nil
		},
	}
}

// listingPage renders a listing page with the given item ids and optional next href.
func listingPage(title string, ids []string, next string) string {
	s := "<html><body><h1>" + title + "</h1><div id=\"items\">"
	for _, id := range ids {
		s += `<a href="/image/` + id + `">` + id + `</a>`
	}
	s += "</div>"
	if next != "" {
		s += `<ul><li class="next"><a href="` + next + `">next</a></li></ul>`
	}
	return s + "</body></html>"
}

func itemPage(id, label string) string {
	return `<html><body><img id="main" src="/full/` + id + `.jpg" alt="` + label + `"></body></html>`
}
