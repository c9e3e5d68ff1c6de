// Package urltemplate rewrites URLs against route templates.
//
// A route template is an ordered list of static and parameterized segments
// (users/:id/detail). Substitution aligns the template with the live path
// by segment index and replaces only the segment declared for the target
// parameter:
//
//	tmpl := urltemplate.MustParse("/users/:id/detail")
//	path, _ := urltemplate.ReplacePathParam("/users/42/detail", tmpl, "id", "99")
//	// path == "/users/99/detail"
//
// SplitURL separates a URL at its first '?' into the path and an ordered
// Query collection. Query keeps insertion order so that re-serializing an
// unchanged collection is byte-identical, which keeps repeated
// synchronization from producing spurious navigations.
package urltemplate
