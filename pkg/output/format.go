package output

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Sriram-PR/gallery-scraper/pkg/models"
	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// FormatTemplate renders a path template such as "{num:>03} {filename}.{extension}".
//
// A field is "{key}" or "{key:spec}" where spec is [[fill]align][0][width]
// with align one of "<", ">" or "^". "{{" and "}}" are literal braces.
// Missing keys render as the empty string.
func FormatTemplate(tmpl string, data models.Metadata) (string, error) {
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("unclosed field at offset %d in %q", i, tmpl)
			}
			field := tmpl[i+1 : i+end]
			s, err := renderField(field, data)
			if err != nil {
				return "", fmt.Errorf("field {%s} in %q: %w", field, tmpl, err)
			}
			b.WriteString(s)
			i += end
		case c == '}':
			return "", fmt.Errorf("single '}' at offset %d in %q", i, tmpl)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func renderField(field string, data models.Metadata) (string, error) {
	key, spec, _ := strings.Cut(field, ":")
	if key == "" {
		return "", fmt.Errorf("empty field name")
	}
	v, ok := data[key]
	value := ""
	if ok && v != nil {
		value = fmt.Sprint(v)
	}
	if spec == "" {
		return value, nil
	}
	return pad(value, spec)
}

// pad applies a [[fill]align][0][width] spec.
func pad(value, spec string) (string, error) {
	fill, align := " ", byte(0)
	r, size := utf8.DecodeRuneInString(spec)
	if len(spec) > size && isAlign(spec[size]) {
		fill, align = string(r), spec[size]
		spec = spec[size+1:]
	} else if isAlign(spec[0]) {
		align = spec[0]
		spec = spec[1:]
	}
	if strings.HasPrefix(spec, "0") && len(spec) > 1 {
		if fill == " " {
			fill = "0"
		}
		if align == 0 {
			align = '>'
		}
		spec = spec[1:]
	}
	width := 0
	if spec != "" {
		w, err := strconv.Atoi(spec)
		if err != nil || w < 0 {
			return "", fmt.Errorf("invalid width %q", spec)
		}
		width = w
	}
	n := width - utf8.RuneCountInString(value)
	if n <= 0 {
		return value, nil
	}
	switch align {
	case '<', 0:
		return value + strings.Repeat(fill, n), nil
	case '^':
		left := n / 2
		return strings.Repeat(fill, left) + value + strings.Repeat(fill, n-left), nil
	}
	return strings.Repeat(fill, n) + value, nil
}

func isAlign(c byte) bool {
	return c == '<' || c == '>' || c == '^'
}

// SuggestedPath renders the relative download path for a Url message:
// every directory component and the filename are formatted and sanitized.
func SuggestedPath(directoryFmt []string, filenameFmt string, data models.Metadata) (string, error) {
	parts := make([]string, 0, len(directoryFmt)+1)
	for _, d := range directoryFmt {
		s, err := FormatTemplate(d, data)
		if err != nil {
			return "", err
		}
		parts = append(parts, utils.SanitizeFilename(s))
	}
	if filenameFmt == "" {
		filenameFmt = "{filename}.{extension}"
	}
	name, err := FormatTemplate(filenameFmt, data)
	if err != nil {
		return "", err
	}
	// An empty extension would leave a trailing dot.
	name = strings.TrimSuffix(name, ".")
	parts = append(parts, utils.SanitizeFilename(name))
	return filepath.Join(parts...), nil
}
