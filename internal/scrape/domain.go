package scrape

import (
	"net/url"
	"strings"
)

// ResolveDomain extracts the authority component (host[:port]) used to key
// strategy and dedup lookups. Malformed or scheme-relative URLs resolve to
// the empty string; lookups tolerate the empty key and simply find nothing.
func ResolveDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// ValidateScrapeURL rejects URLs the coordinator will not queue: anything
// unparseable, non-HTTP(S), or without a host. Runs before any store write.
func ValidateScrapeURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return validationf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return validationf("invalid url %q: %v", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validationf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return validationf("url %q has no host", rawURL)
	}
	return nil
}
