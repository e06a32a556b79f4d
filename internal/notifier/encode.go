package notifier

import (
	"net/url"
	"strings"
)

// Encode percent-encodes s for use in a URL. Only RFC 3986 unreserved
// characters are left as is; space becomes %20.
func Encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Decode reverses Encode.
func Decode(s string) (string, error) {
	return url.PathUnescape(s)
}

// trimEscape returns the length of p without a trailing partial %XX escape.
func trimEscape(p []byte) int {
	n := len(p)
	switch {
	case n >= 1 && p[n-1] == '%':
		return n - 1
	case n >= 2 && p[n-2] == '%':
		return n - 2
	}
	return n
}
