package store

import (
	"net/url"
	"strings"
)

// DefaultHosts are the pages the mapper rewrites when nothing is configured.
var DefaultHosts = []string{"github.com", "*.github.com"}

// NormalizeURL removes query params, hash fragments, and trailing slashes.
// This creates a canonical URL form for the sync URL and page keys.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return cleanURLString(rawURL)
	}

	u.RawQuery = ""
	u.Fragment = ""
	normalized := u.String()

	// Keep root "/" for bare hosts, strip trailing slashes from paths.
	if u.Path == "" || u.Path == "/" {
		if !strings.HasSuffix(normalized, "/") {
			normalized += "/"
		}
	} else {
		normalized = strings.TrimRight(normalized, "/")
	}

	return normalized
}

// cleanURLString performs basic cleanup on a URL string.
func cleanURLString(rawURL string) string {
	if idx := strings.Index(rawURL, "?"); idx != -1 {
		rawURL = rawURL[:idx]
	}
	if idx := strings.Index(rawURL, "#"); idx != -1 {
		rawURL = rawURL[:idx]
	}
	rawURL = strings.TrimRight(rawURL, "/")
	if rawURL == "" {
		rawURL = "/"
	}
	return rawURL
}

// MatchHost reports whether the host of rawURL matches any pattern. A
// pattern is an exact host or "*.domain", which matches any subdomain of
// domain but not domain itself. rawURL may also be a bare host.
func MatchHost(patterns []string, rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if suffix, ok := strings.CutPrefix(p, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == p {
			return true
		}
	}
	return false
}

// hostOf extracts the lowercased hostname without port.
func hostOf(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
