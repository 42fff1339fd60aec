package blobstore

import (
	"net/url"
	"strings"
)

// EscapeKey turns a key into a single object name segment for object-store
// engines. The result never contains "/" and never starts with ".", the prefix
// engines reserve for their marker objects.
func EscapeKey(key string) string {
	esc := url.PathEscape(key)
	if strings.HasPrefix(esc, ".") {
		esc = "%2E" + esc[1:]
	}
	return esc
}
