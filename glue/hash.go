package glue

import (
	"strconv"
	"unicode/utf16"
)

// ShortHash returns a short, stable, base36 identifier for s.
//
// It's the classic 31-multiplier string hash, over UTF-16 code units with
// 32-bit wrap-around, so the output matches the equivalent browser-side
// implementation, which IDs in existing reports were generated with.
// It is not collision resistant.
func ShortHash(s string) string {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = h<<5 - h + int32(u)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}
