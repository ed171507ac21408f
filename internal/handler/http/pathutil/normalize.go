// Package pathutil maps request paths onto route templates for metric labels.
package pathutil

import (
	"regexp"
	"strings"
)

type pathPattern struct {
	pattern  *regexp.Regexp
	template string
}

// Order ids are UUIDs or other opaque tokens; any single segment matches.
var pathPatterns = []pathPattern{
	{regexp.MustCompile(`^/orders/[^/]+/notify$`), "/orders/:id/notify"},
	{regexp.MustCompile(`^/orders/[^/]+/status-notify$`), "/orders/:id/status-notify"},
	{regexp.MustCompile(`^/orders/[^/]+/status$`), "/orders/:id/status"},
	{regexp.MustCompile(`^/orders/[^/]+$`), "/orders/:id"},
}

// knownStatic lists the fixed routes. Anything else collapses to "other" so
// scanners cannot grow the label set.
var knownStatic = map[string]struct{}{
	"/":                    {},
	"/auth/token":          {},
	"/checkout":            {},
	"/contact-messages":    {},
	"/telegram/test":       {},
	"/telegram/recipients": {},
	"/health":              {},
	"/ready":               {},
	"/live":                {},
	"/metrics":             {},
}

// NormalizePath returns the route template for path, e.g.
// "/orders/3f2a.../notify" becomes "/orders/:id/notify". Query strings and a
// trailing slash are ignored.
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	if _, ok := knownStatic[path]; ok {
		return path
	}
	for _, p := range pathPatterns {
		if p.pattern.MatchString(path) {
			return p.template
		}
	}
	return "other"
}
