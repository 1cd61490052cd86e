// Package document is the DOM query layer used by site modules.
// It wraps goquery behind a small predicate API so extraction code never
// builds CSS selectors by hand.
package document

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// Document is a parsed HTML page
type Document struct {
	Element
	doc *goquery.Document
}

// Element is one node of a parsed page
type Element struct {
	sel *goquery.Selection
}

// Parse builds a Document from raw page content.
func Parse(content string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: HTML: %w", utils.ErrParsing, err)
	}
	return &Document{Element: Element{sel: doc.Selection}, doc: doc}, nil
}

// FindOne returns the first descendant matching p in document order.
func (e *Element) FindOne(p Predicate) (*Element, bool) {
	var found *Element
	e.sel.Find(p.selector()).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if p.matches(s) {
			found = &Element{sel: s}
			return false
		}
		return true
	})
	return found, found != nil
}

// FindAll returns every descendant matching p in document order.
func (e *Element) FindAll(p Predicate) []*Element {
	var out []*Element
	e.sel.Find(p.selector()).Each(func(_ int, s *goquery.Selection) {
		if p.matches(s) {
			out = append(out, &Element{sel: s})
		}
	})
	return out
}

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// Text returns the element's text content with surrounding whitespace trimmed.
func (e *Element) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

// TagName returns the lowercased tag name, or "" for the document root.
func (e *Element) TagName() string {
	return goquery.NodeName(e.sel)
}
