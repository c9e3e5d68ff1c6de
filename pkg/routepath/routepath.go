// Package routepath cleans the URLs browsers report before they are resolved
// against routes.
//
// A location is accepted only as a site-relative URL. Its path is
// canonicalized; the query string and fragment are kept byte for byte.
//
//	routepath.Clean("/users//42/./detail/?tab=a")
//	// Result{URL: "/users/42/detail?tab=a", Path: "/users/42/detail", Changed: true}
package routepath

import (
	"errors"
	"strings"
)

// Location errors.
var (
	ErrNotRelative   = errors.New("location must be a site-relative URL")
	ErrBackslash     = errors.New("path contains backslash")
	ErrNullByte      = errors.New("path contains null byte")
	ErrInvalidEscape = errors.New("invalid percent escape sequence")
	ErrEscapesRoot   = errors.New("path escapes root via ..")
)

// Result is a cleaned location.
type Result struct {
	// URL is the cleaned location: canonical path, original query and fragment.
	URL string

	// Path is the canonical path.
	Path string

	// Changed reports whether the path was rewritten.
	Changed bool
}

// Clean validates a location and canonicalizes its path. Absolute URLs
// ("https://...", "//host/...") are rejected with ErrNotRelative; an empty
// location is the root.
func Clean(location string) (Result, error) {
	if location == "" {
		return Result{URL: "/", Path: "/", Changed: true}, nil
	}
	if strings.HasPrefix(location, "//") || !strings.HasPrefix(location, "/") {
		return Result{}, ErrNotRelative
	}

	rest := ""
	path := location
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		path, rest = location[:i], location[i:]
	}

	clean, err := CleanPath(path)
	if err != nil {
		return Result{}, err
	}
	return Result{URL: clean + rest, Path: clean, Changed: clean != path}, nil
}

// CleanPath canonicalizes a URL path:
//   - repeated slashes collapse (/users//42 → /users/42)
//   - "." segments are dropped
//   - ".." segments remove their parent
//   - a trailing slash is removed, except for the root
//
// Backslashes, NUL bytes (literal or %00), malformed percent escapes and
// ".." above the root are rejected.
func CleanPath(path string) (string, error) {
	if strings.Contains(path, "\\") {
		return "", ErrBackslash
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", ErrNullByte
	}
	if strings.Contains(path, "%") {
		if err := validateEscapes(path); err != nil {
			return "", err
		}
	}

	var out []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return "", ErrEscapesRoot
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/"), nil
}

func validateEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHex(path[i+1]) || !isHex(path[i+2]) {
			return ErrInvalidEscape
		}
		i += 2
	}
	return nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
