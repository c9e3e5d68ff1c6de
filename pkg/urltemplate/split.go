package urltemplate

import "strings"

// Split is a URL separated into its path and query parts.
type Split struct {
	// Path is everything before the first '?'.
	Path string

	// Query holds the decoded query parameters in URL order.
	Query *Query

	// Fragment is the text after '#', without the '#'.
	Fragment string
}

// SplitURL separates raw at its first '?'. A '#' fragment is split off first
// so it never leaks into the last query value.
func SplitURL(raw string) Split {
	rest, fragment, _ := strings.Cut(raw, "#")
	path, query, _ := strings.Cut(rest, "?")
	return Split{
		Path:     path,
		Query:    ParseQuery(query),
		Fragment: fragment,
	}
}

// String re-joins the parts. The '?' is omitted when the query is empty.
func (s Split) String() string {
	u := Join(s.Path, s.Query)
	if s.Fragment != "" {
		u += "#" + s.Fragment
	}
	return u
}

// Join appends the encoded query to path.
func Join(path string, q *Query) string {
	enc := q.Encode()
	if enc == "" {
		return path
	}
	return path + "?" + enc
}
