package serper

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the longest accepted search query, counted in characters after trimming.
const MaxQueryLength = 1000

// hierarchicalSchemes must carry a host to form a usable absolute URL.
var hierarchicalSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ws":    true,
	"wss":   true,
	"ftp":   true,
}

// IsValidURL reports whether s parses as an absolute URL. Any scheme is accepted;
// web schemes additionally need a host.
func IsValidURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || !u.IsAbs() {
		return false
	}
	if hierarchicalSchemes[strings.ToLower(u.Scheme)] && u.Host == "" {
		return false
	}
	return true
}

// IsValidQuery reports whether s is a usable search query: non-blank and at most
// MaxQueryLength characters once trimmed.
func IsValidQuery(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n > 0 && n <= MaxQueryLength
}
