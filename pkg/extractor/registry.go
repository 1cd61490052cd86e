package extractor

import (
	"regexp"

	"github.com/Sriram-PR/gallery-scraper/pkg/models"
)

// Pattern is one URL layout a site module understands
type Pattern struct {
	Subcategory  string
	Variant      models.Variant
	Expr         *regexp.Regexp // Named groups become Captures
	DirectoryFmt []string       // Path components under the download base dir
	FilenameFmt  string
	ArchiveFmt   string         // Rendered over item data, then prefixed with the category
}

// Captures holds the named groups of a matched pattern
type Captures map[string]string

// Dispatch is the result of a successful registry lookup
type Dispatch struct {
	URL      string
	Site     *Site
	Pattern  *Pattern
	Captures Captures
}

type entry struct {
	site    *Site
	pattern *Pattern
}

// Registry maps URLs to (site, pattern) pairs. Registration order is
// priority order.
type Registry struct {
	entries []entry
	sites   []*Site
}

// NewRegistry registers the given sites in order.
func NewRegistry(sites ...*Site) *Registry {
	r := &Registry{}
	for _, s := range sites {
		r.Register(s)
	}
	return r
}

// Register appends a site. Its single-item patterns are tried before its
// gallery patterns, each group keeping declaration order.
func (r *Registry) Register(site *Site) {
	r.sites = append(r.sites, site)
	for _, variant := range []models.Variant{models.VariantSingleItem, models.VariantGallery} {
		for _, p := range site.Patterns {
			if p.Variant == variant {
				r.entries = append(r.entries, entry{site: site, pattern: p})
			}
		}
	}
}

// Select returns the first registered pattern matching rawURL. A false
// result means no site owns the URL.
func (r *Registry) Select(rawURL string) (Dispatch, bool) {
	for _, e := range r.entries {
		m := e.pattern.Expr.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}
		caps := Captures{}
		for i, name := range e.pattern.Expr.SubexpNames() {
			if name != "" && i < len(m) {
				caps[name] = m[i]
			}
		}
		return Dispatch{URL: rawURL, Site: e.site, Pattern: e.pattern, Captures: caps}, true
	}
	return Dispatch{}, false
}

// Sites returns the registered sites in priority order.
func (r *Registry) Sites() []*Site {
	return append([]*Site(nil), r.sites...)
}

// Site looks up a registered site by category.
func (r *Registry) Site(category string) (*Site, bool) {
	for _, s := range r.sites {
		if s.Category == category {
			return s, true
		}
	}
	return nil, false
}
