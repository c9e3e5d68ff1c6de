package urltemplate

import (
	"errors"
	"net/url"
	"strings"
)

// Template errors.
var (
	// ErrNoTemplate means no route path is active, so there is nothing to substitute into.
	ErrNoTemplate = errors.New("no route path template")

	// ErrSegmentMismatch means the live path has fewer segments than the template.
	ErrSegmentMismatch = errors.New("live path does not align with route template")

	// ErrUnknownParam means the template has no segment for the requested parameter.
	ErrUnknownParam = errors.New("parameter not present in route template")
)

// Segment is one '/'-separated element of a route template.
type Segment struct {
	// Literal is the segment text as written in the pattern.
	Literal string

	// Param is the variable name for parameterized segments, empty for static ones.
	Param string

	// CatchAll marks a trailing wildcard segment (* or *name).
	CatchAll bool
}

// IsParam reports whether the segment is a route variable.
func (s Segment) IsParam() bool {
	return s.Param != ""
}

// Template is an ordered list of route segments, e.g. users/:id/detail.
type Template []Segment

// Parse parses a route pattern. Both router syntaxes are accepted:
//
//	/users/:id/detail
//	/users/{id}/detail
//	/users/{id:[0-9]+}/detail
//	/docs/*slug
//
// An empty pattern (or "/") returns ErrNoTemplate.
func Parse(pattern string) (Template, error) {
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return nil, ErrNoTemplate
	}

	parts := strings.Split(trimmed, "/")
	tmpl := make(Template, 0, len(parts))
	for _, part := range parts {
		tmpl = append(tmpl, parseSegment(part))
	}
	return tmpl, nil
}

// MustParse is like Parse but panics on error.
func MustParse(pattern string) Template {
	t, err := Parse(pattern)
	if err != nil {
		panic("urltemplate: " + err.Error() + ": " + pattern)
	}
	return t
}

func parseSegment(part string) Segment {
	seg := Segment{Literal: part}
	switch {
	case strings.HasPrefix(part, ":") && len(part) > 1:
		seg.Param = part[1:]
	case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") && len(part) > 2:
		name := part[1 : len(part)-1]
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		seg.Param = name
	case strings.HasPrefix(part, "*"):
		seg.CatchAll = true
		seg.Param = strings.TrimPrefix(part, "*")
	}
	return seg
}

// JoinPatterns joins the patterns of a route chain (root first) into one
// template pattern. Empty patterns contribute nothing.
func JoinPatterns(patterns ...string) string {
	var parts []string
	for _, p := range patterns {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "/")
}

// String returns the pattern in :name syntax.
func (t Template) String() string {
	parts := make([]string, len(t))
	for i, seg := range t {
		switch {
		case seg.CatchAll:
			parts[i] = "*" + seg.Param
		case seg.IsParam():
			parts[i] = ":" + seg.Param
		default:
			parts[i] = seg.Literal
		}
	}
	return "/" + strings.Join(parts, "/")
}

// Params lists the template's variable names in order.
func (t Template) Params() []string {
	var names []string
	for _, seg := range t {
		if seg.IsParam() {
			names = append(names, seg.Param)
		}
	}
	return names
}

// Has reports whether the template declares the named variable.
func (t Template) Has(name string) bool {
	for _, seg := range t {
		if seg.IsParam() && seg.Param == name {
			return true
		}
	}
	return false
}

// ReplacePathParam substitutes value into the live path at the segment the
// template declares for name. Template and live path are aligned by index;
// every other segment of the live path is kept as is, including segments
// beyond the end of the template. Leading and trailing slashes are kept.
//
//	ReplacePathParam("/users/42/detail", MustParse("users/:id/detail"), "id", "99")
//	// "/users/99/detail"
func ReplacePathParam(path string, tmpl Template, name, value string) (string, error) {
	if len(tmpl) == 0 {
		return path, ErrNoTemplate
	}

	leading := strings.HasPrefix(path, "/")
	trailing := len(path) > 1 && strings.HasSuffix(path, "/")

	trimmed := strings.Trim(path, "/")
	var live []string
	if trimmed != "" {
		live = strings.Split(trimmed, "/")
	}
	if len(live) < len(tmpl) {
		return path, ErrSegmentMismatch
	}

	found := false
	for i, seg := range tmpl {
		if seg.CatchAll || seg.Param != name {
			continue
		}
		live[i] = url.PathEscape(value)
		found = true
	}
	if !found {
		return path, ErrUnknownParam
	}

	var b strings.Builder
	if leading {
		b.WriteByte('/')
	}
	b.WriteString(strings.Join(live, "/"))
	if trailing {
		b.WriteByte('/')
	}
	return b.String(), nil
}

// ExtractParams reads the template's variables out of a live path.
// Values are path-unescaped; a catch-all captures the rest of the path.
func ExtractParams(path string, tmpl Template) (map[string]string, error) {
	trimmed := strings.Trim(path, "/")
	var live []string
	if trimmed != "" {
		live = strings.Split(trimmed, "/")
	}

	params := make(map[string]string)
	for i, seg := range tmpl {
		if seg.CatchAll {
			if seg.Param != "" && i <= len(live) {
				params[seg.Param] = strings.Join(live[i:], "/")
			}
			return params, nil
		}
		if i >= len(live) {
			return nil, ErrSegmentMismatch
		}
		if !seg.IsParam() {
			if seg.Literal != live[i] {
				return nil, ErrSegmentMismatch
			}
			continue
		}
		v, err := url.PathUnescape(live[i])
		if err != nil {
			v = live[i]
		}
		params[seg.Param] = v
	}
	return params, nil
}
