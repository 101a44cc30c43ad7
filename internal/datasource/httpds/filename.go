package httpds

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// IsURL reports whether s names an http or https resource.
func IsURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// FileName derives a local file name from rawURL: the last path element
// with unsafe characters replaced by "_", or a SHA1 of the URL when the
// path has no usable last element. The extension is kept so the format
// can still be inferred from it.
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" && base != "" {
			if clean := strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "_"); clean != "" {
				return clean
			}
		}
	}
	h := sha1.Sum([]byte(rawURL))
	return hex.EncodeToString(h[:])
}
