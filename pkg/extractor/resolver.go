package extractor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/document"
	"github.com/Sriram-PR/gallery-scraper/pkg/fetch"
	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// KeySource says where a site takes an item's key from
type KeySource int

const (
	KeyFromRefPath KeySource = iota // Trailing path segment of the item page reference
	KeyFromLabel                    // The raw media label, e.g. pixhost's alt text
	KeyFromCapture                  // A named URL capture, e.g. piwigo's image_id
)

// MediaSpec describes the primary media element of an item page
type MediaSpec struct {
	Element    document.Predicate
	SourceAttr string // Defaults to "src"
	LabelAttr  string // Defaults to "alt"
	Key        KeySource
	KeyCapture string

	// DownloadURL overrides resolving the source attribute against the root.
	DownloadURL func(sc SiteContext, src string) string
	// Extra adds site specific fields read from the media element.
	Extra func(sc SiteContext, el *document.Element) models.Metadata
}

func (m MediaSpec) sourceAttr() string {
	if m.SourceAttr == "" {
		return "src"
	}
	return m.SourceAttr
}

func (m MediaSpec) labelAttr() string {
	if m.LabelAttr == "" {
		return "alt"
	}
	return m.LabelAttr
}

// ParseItemPage reads item metadata from a parsed item page. It is shared by
// the gallery and single-item paths, so both derive the same item key.
// SequenceNumber and ArchiveKey are left for the caller.
func ParseItemPage(doc *document.Document, ref models.ItemRef, sc SiteContext, spec MediaSpec, policy string) (*models.ItemMetadata, error) {
	el, ok := doc.FindOne(spec.Element)
	if !ok {
		return nil, fmt.Errorf("%w: HTML: media element missing on item page %s", utils.ErrParsing, ref.Href)
	}
	src, ok := el.Attr(spec.sourceAttr())
	if !ok || src == "" {
		return nil, fmt.Errorf("%w: HTML: media element on %s has no %s attribute", utils.ErrParsing, ref.Href, spec.sourceAttr())
	}
	label, ok := el.Attr(spec.labelAttr())
	if !ok {
		return nil, fmt.Errorf("%w: HTML: media element on %s has no %s attribute", utils.ErrParsing, ref.Href, spec.labelAttr())
	}

	name, ext, err := SplitFilename(label, policy)
	if err != nil {
		return nil, utils.WrapErrorf(err, "item page %s", ref.Href)
	}

	var downloadURL string
	if spec.DownloadURL != nil {
		downloadURL = spec.DownloadURL(sc, src)
	} else {
		u, err := sc.Root.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("%w: URL: media source %q on %s: %w", utils.ErrParsing, src, ref.Href, err)
		}
		downloadURL = u.String()
	}

	var key string
	switch spec.Key {
	case KeyFromLabel:
		key = label
	case KeyFromCapture:
		key = sc.Captures[spec.KeyCapture]
	default:
		key = LastPathSegment(ref.Href)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: empty item key for %s", utils.ErrParsing, ref.Href)
	}

	item := &models.ItemMetadata{
		Category:    sc.Category,
		Subcategory: sc.Subcategory,
		DownloadURL: downloadURL,
		Filename:    name,
		Extension:   ext,
		ItemKey:     key,
	}
	if spec.Extra != nil {
		item.Extra = spec.Extra(sc, el)
	}
	return item, nil
}

// Resolver fetches item pages and parses them with ParseItemPage
type Resolver struct {
	fetcher fetch.PageFetcher
	policy  string
	log     *logrus.Entry
}

// NewResolver creates a resolver using the given extension policy.
func NewResolver(fetcher fetch.PageFetcher, policy string, log *logrus.Entry) *Resolver {
	return &Resolver{fetcher: fetcher, policy: policy, log: log}
}

// Resolve fetches ref (relative to the site root) and parses its media element.
func (r *Resolver) Resolve(ctx context.Context, ref models.ItemRef, sc SiteContext, spec MediaSpec) (*models.ItemMetadata, error) {
	pageURL, err := sc.Root.Parse(ref.Href)
	if err != nil {
		return nil, fmt.Errorf("%w: URL: item reference %q: %w", utils.ErrParsing, ref.Href, err)
	}
	body, err := r.fetcher.FetchPage(ctx, pageURL.String())
	if err != nil {
		return nil, err
	}
	doc, err := document.Parse(body)
	if err != nil {
		return nil, utils.WrapErrorf(err, "item page %s", pageURL)
	}
	item, err := ParseItemPage(doc, ref, sc, spec, r.policy)
	if err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{"href": ref.Href, "item_key": item.ItemKey}).Debug("Resolved item")
	return item, nil
}
