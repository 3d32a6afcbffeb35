package glue

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxParamLength caps the length, in runes, of sanitized parameter values.
const MaxParamLength = 255

// SanitizeParam makes a URL query parameter value safe to republish as an
// analytics variable: control characters and markup delimiters are dropped,
// whitespace is collapsed, and the result is truncated to MaxParamLength.
func SanitizeParam(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		switch {
		case r == utf8.RuneError, r == '<', r == '>', r == '"', r == '\'', r == '`':
			continue
		case unicode.IsControl(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	s := strings.Join(strings.Fields(b.String()), ` `)
	if utf8.RuneCountInString(s) > MaxParamLength {
		s = string([]rune(s)[:MaxParamLength])
	}
	return s
}

// SanitizeQuery parses a raw query string (with or without the leading "?")
// into lower-cased parameter names, mapped to the sanitized value of their
// first occurrence. Parameters with an empty sanitized value are omitted,
// and malformed escapes are kept verbatim.
func SanitizeQuery(rawQuery string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.FieldsFunc(strings.TrimPrefix(rawQuery, `?`), func(r rune) bool { return r == '&' || r == ';' }) {
		k, v, _ := strings.Cut(pair, `=`)
		k = strings.ToLower(strings.TrimSpace(queryUnescape(k)))
		if k == `` {
			continue
		}
		if _, exists := out[k]; exists {
			continue
		}
		if v = SanitizeParam(queryUnescape(v)); v != `` {
			out[k] = v
		}
	}
	return out
}

func queryUnescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}
