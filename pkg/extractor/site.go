package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sriram-PR/gallery-scraper/pkg/document"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// Site is the declarative description of one site module. The engine
// drives every site through the same collector, resolver and emitter.
type Site struct {
	Category string
	Root     string // Fixed site root; sites on arbitrary domains set RootFor instead
	Patterns []*Pattern
	Listing  ListingSpec
	Media    MediaSpec

	// Title reads the gallery title from the first listing page.
	Title func(doc *document.Document) (string, error)
	// RootFor derives the root from the captures.
	RootFor func(caps Captures) string
	// PagePath returns the path of the page a URL names. Defaults to the "path" capture.
	PagePath func(caps Captures) string
}

// SiteContext is what shared parsing code knows about the current dispatch
type SiteContext struct {
	Category    string
	Subcategory string
	Root        *url.URL
	Domain      string
	Captures    Captures
}

// Context builds the SiteContext for a dispatch.
func (s *Site) Context(d Dispatch) (SiteContext, error) {
	rawRoot := s.Root
	if s.RootFor != nil {
		rawRoot = s.RootFor(d.Captures)
	}
	root, err := url.Parse(rawRoot)
	if err != nil || root.Host == "" {
		return SiteContext{}, fmt.Errorf("%w: invalid site root URL %q for %s", utils.ErrParsing, rawRoot, s.Category)
	}
	return SiteContext{
		Category:    s.Category,
		Subcategory: d.Pattern.Subcategory,
		Root:        root,
		Domain:      root.Hostname(),
		Captures:    d.Captures,
	}, nil
}

// PageURL returns the absolute URL of the page a dispatch names.
func (s *Site) PageURL(sc SiteContext) (*url.URL, error) {
	p := sc.Captures["path"]
	if s.PagePath != nil {
		p = s.PagePath(sc.Captures)
	}
	u, err := sc.Root.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("%w: page URL %q: %w", utils.ErrParsing, p, err)
	}
	return u, nil
}

// LastPathSegment returns the final non-empty segment of a URL path.
// "/gallery/AbC12" and "/image/111?x=1" yield "AbC12" and "111".
func LastPathSegment(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
