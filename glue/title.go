package glue

import (
	"strings"
)

// DefaultTitles are the placeholder document titles that SPAs render before
// the real title is known. Compared case-insensitively, after trimming.
var DefaultTitles = []string{
	``,
	`loading`,
	`loading...`,
	`loading…`,
	`untitled`,
	`react app`,
	`document`,
}

// IsDefaultTitle reports whether title is a placeholder, per DefaultTitles.
func IsDefaultTitle(title string) bool {
	title = strings.ToLower(strings.Join(strings.Fields(title), ` `))
	for _, v := range DefaultTitles {
		if title == v {
			return true
		}
	}
	return false
}

// IsRealTitle is the inverse of IsDefaultTitle, for use as a validator.
func IsRealTitle(title string) bool { return !IsDefaultTitle(title) }
