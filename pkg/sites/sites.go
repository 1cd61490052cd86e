// Package sites declares the supported site modules. Each module only
// describes URL patterns and where data lives on its pages; the extractor
// package does the crawling.
package sites

import (
	"fmt"

	"github.com/Sriram-PR/gallery-scraper/pkg/document"
	"github.com/Sriram-PR/gallery-scraper/pkg/extractor"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// All returns every site module in dispatch priority order.
func All() []*extractor.Site {
	return []*extractor.Site{
		Pixhost(),
		PimpAndHost(),
		Piwigo(),
	}
}

// NewRegistry builds the registry of all site modules.
func NewRegistry() *extractor.Registry {
	return extractor.NewRegistry(All()...)
}

// textOf returns a title reader taking the text of the first element matching
// outer, or of inner within it when inner is non-zero.
func textOf(outer, inner document.Predicate) func(doc *document.Document) (string, error) {
	return func(doc *document.Document) (string, error) {
		el, ok := doc.FindOne(outer)
		if ok && !inner.IsZero() {
			el, ok = el.FindOne(inner)
		}
		if !ok {
			return "", fmt.Errorf("%w: HTML: gallery title element missing", utils.ErrParsing)
		}
		return el.Text(), nil
	}
}
