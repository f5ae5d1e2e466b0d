package collector

import (
	"net/url"
	"strings"

	"github.com/go-pkgz/lgr"

	"newswatch/pkg/domain"
)

// Dedupe returns the records from current whose identity does not appear
// in previous. Identity is the normalized title plus canonical URL, so
// the same story reached via tracking-parameter variants still counts as
// a duplicate. Neither input slice is modified; an empty previous makes
// the call a no-op.
func Dedupe(current, previous []domain.Record) []domain.Record {
	if len(previous) == 0 {
		out := make([]domain.Record, len(current))
		copy(out, current)
		return out
	}

	seen := make(map[string]bool, len(previous))
	for _, r := range previous {
		seen[identityKey(r)] = true
	}

	out := make([]domain.Record, 0, len(current))
	for _, r := range current {
		if seen[identityKey(r)] {
			continue
		}
		out = append(out, r)
	}
	if dropped := len(current) - len(out); dropped > 0 {
		lgr.Printf("[INFO] dedupe dropped %d of %d records", dropped, len(current))
	}
	return out
}

// identityKey builds the duplicate-detection key for a record
func identityKey(r domain.Record) string {
	return strings.ToLower(strings.TrimSpace(r.Title)) + "|" + canonicalURL(r.URL)
}

// canonicalURL strips the query string and fragment, lower-cases the
// host and trims a trailing slash. Unparsable URLs fall back to the
// trimmed raw string so they still compare consistently.
func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	return strings.TrimSuffix(u.String(), "/")
}
