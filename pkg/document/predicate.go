package document

import (
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type attrRegex struct {
	name string
	re   *regexp.Regexp
}

// Predicate describes which elements a query selects. The zero value
// matches nothing useful; build one with Tag or Any.
//
// All conditions must hold. Methods return a modified copy, so a
// Predicate can be shared between site declarations.
type Predicate struct {
	tag       string
	id        string
	idRe      *regexp.Regexp
	class     string
	attrs     []string
	attrRes   []attrRegex
	rel       string
	specified bool
}

// Tag selects elements with the given tag name.
func Tag(name string) Predicate {
	return Predicate{tag: strings.ToLower(name), specified: true}
}

// Any selects elements of every tag.
func Any() Predicate {
	return Predicate{specified: true}
}

// IsZero reports whether p was never built. Site declarations use a zero
// Predicate for "not present", e.g. a listing without a container.
func (p Predicate) IsZero() bool {
	return !p.specified
}

// WithID requires an exact id.
func (p Predicate) WithID(id string) Predicate {
	p.id = id
	return p
}

// IDMatching requires the id to match re.
func (p Predicate) IDMatching(re *regexp.Regexp) Predicate {
	p.idRe = re
	return p
}

// WithClass requires a class token.
func (p Predicate) WithClass(class string) Predicate {
	p.class = class
	return p
}

// WithAttr requires the attribute to be present.
func (p Predicate) WithAttr(name string) Predicate {
	p.attrs = append(slices.Clone(p.attrs), name)
	return p
}

// AttrMatching requires the attribute to be present and match re.
func (p Predicate) AttrMatching(name string, re *regexp.Regexp) Predicate {
	p.attrRes = append(slices.Clone(p.attrRes), attrRegex{name: name, re: re})
	return p
}

// WithRel requires a token of the rel attribute, e.g. "next".
func (p Predicate) WithRel(rel string) Predicate {
	p.rel = strings.ToLower(rel)
	return p
}

// selector is the coarse CSS prefilter; matches does the exact checks.
func (p Predicate) selector() string {
	var b strings.Builder
	if p.tag == "" {
		b.WriteString("*")
	} else {
		b.WriteString(p.tag)
	}
	for _, a := range p.attrs {
		b.WriteString("[" + a + "]")
	}
	for _, a := range p.attrRes {
		b.WriteString("[" + a.name + "]")
	}
	if p.id != "" || p.idRe != nil {
		b.WriteString("[id]")
	}
	if p.class != "" {
		b.WriteString("[class]")
	}
	if p.rel != "" {
		b.WriteString("[rel]")
	}
	return b.String()
}

func (p Predicate) matches(s *goquery.Selection) bool {
	if !p.specified {
		return false
	}
	if p.id != "" || p.idRe != nil {
		id, _ := s.Attr("id")
		if p.id != "" && id != p.id {
			return false
		}
		if p.idRe != nil && !p.idRe.MatchString(id) {
			return false
		}
	}
	if p.class != "" {
		classAttr, _ := s.Attr("class")
		if !slices.Contains(strings.Fields(classAttr), p.class) {
			return false
		}
	}
	for _, a := range p.attrRes {
		v, ok := s.Attr(a.name)
		if !ok || !a.re.MatchString(v) {
			return false
		}
	}
	if p.rel != "" {
		relAttr, _ := s.Attr("rel")
		if !slices.Contains(strings.Fields(strings.ToLower(relAttr)), p.rel) {
			return false
		}
	}
	return true
}
