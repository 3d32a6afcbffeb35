package glue

import (
	"net/url"
	"strings"
)

// ParseCookies parses a document.cookie style string, i.e. "a=1; b=2".
// Values are URL-unescaped where valid, and the first occurrence of a name
// wins, as browsers list the most specific cookie first.
func ParseCookies(header string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(header, `;`) {
		name, value, ok := strings.Cut(strings.TrimSpace(part), `=`)
		name = strings.TrimSpace(name)
		if !ok || name == `` {
			continue
		}
		if _, exists := cookies[name]; exists {
			continue
		}
		cookies[name] = unescapeCookie(strings.TrimSpace(value))
	}
	return cookies
}

// Cookie returns the named cookie from a document.cookie style string.
func Cookie(header, name string) (string, bool) {
	v, ok := ParseCookies(header)[name]
	return v, ok
}

func unescapeCookie(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	if s, err := url.PathUnescape(v); err == nil {
		return s
	}
	return v
}
