package parse

import (
	"net"
	"net/url"
	"slices"
	"strings"
)

// NormalizeURL standardizes a URL for comparison
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https), removes trailing slashes from paths (unless root "/"), ensures empty path becomes "/", drops the fragment and sorts the query parameters
// Listing pages are told apart by their query (page=2, ?/123), so the query is kept
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	// Work on a copy
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	// Remove default ports
	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = normalized.Path[:len(normalized.Path)-1]
	}
	normalized.RawPath = ""

	normalized.Fragment = ""
	normalized.RawFragment = ""
	normalized.RawQuery = sortQuery(normalized.RawQuery)
	normalized.ForceQuery = false

	return normalized.String()
}

// sortQuery orders the raw "&" separated parameters without re-encoding them.
func sortQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	parts = slices.DeleteFunc(parts, func(p string) bool { return p == "" })
	slices.Sort(parts)
	return strings.Join(parts, "&")
}

// ParseAndNormalize parses a URL string using the stricter url.ParseRequestURI (requiring a scheme or an absolute path) and then normalizes it using NormalizeURL
// ParseRequestURI keeps a "#fragment" inside the path or query, so it is cut off first
// Returns the normalized string, the parsed URL object, and any parse error
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	withoutFragment, _, _ := strings.Cut(urlStr, "#")
	parsed, err := url.ParseRequestURI(withoutFragment)
	if err != nil {
		return "", nil, err
	}
	return NormalizeURL(parsed), parsed, nil
}
