package glue

import (
	"net/url"
	"strings"
)

// ExtractPublisherID returns the second path segment of a three segment
// path, e.g. "7781" for "/publisher/7781/overview". Full URLs are accepted,
// in which case only the path is considered.
//
// Only that exact shape is recognized, and ok is false for anything else,
// including a trailing slash, or extra segments.
func ExtractPublisherID(path string) (id string, ok bool) {
	if u, err := url.Parse(path); err == nil && u.Path != `` {
		path = u.Path
	}
	parts := strings.Split(path, `/`)
	if len(parts) != 4 || parts[0] != `` || parts[1] == `` || parts[2] == `` || parts[3] == `` {
		return ``, false
	}
	return parts[2], true
}
