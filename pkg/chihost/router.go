// Package chihost resolves browser URLs against a chi route tree and keeps
// the per-session location state a deep-linked view synchronizes with.
//
// A Router answers which route pattern a path belongs to and which path
// parameters it carries. A Location holds the URL a session currently shows,
// publishes its parameters to the deeplink engine, and reports the route
// template used when a path parameter is rewritten.
//
//	r := chi.NewRouter()
//	r.Get("/users/{id}/detail", page)
//	loc, err := chihost.New(r).Locate("/users/42/detail?tab=profile")
//	host := loc.Host(navigator)
package chihost

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/deeplink/internal/errors"
	"github.com/vango-dev/deeplink/pkg/urltemplate"
)

// Match is the result of resolving a path.
type Match struct {
	// Pattern is the full route pattern, subrouter patterns joined.
	Pattern string

	// Template is Pattern parsed. It is nil for the root route.
	Template urltemplate.Template

	// Params are the path parameters by name. Wildcards are omitted.
	Params map[string]string
}

// Router resolves paths against chi routes.
type Router struct {
	routes chi.Routes
	method string
}

// New returns a Router over routes. Paths are matched as GET requests.
func New(routes chi.Routes) *Router {
	return &Router{routes: routes, method: http.MethodGet}
}

// Match resolves path. ok is false when no route matches. path is the
// escaped form a browser reports; parameter values are unescaped after
// matching, so an escaped "/" stays inside its segment.
func (r *Router) Match(path string) (m Match, ok bool) {
	if path == "" {
		path = "/"
	}
	rctx := chi.NewRouteContext()
	if !r.routes.Match(rctx, r.method, path) {
		return Match{}, false
	}

	m.Pattern = "/" + joinRoutePatterns(rctx.RoutePatterns)
	if tmpl, err := urltemplate.Parse(m.Pattern); err == nil {
		m.Template = tmpl
	}

	m.Params = make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		v, err := url.PathUnescape(rctx.URLParams.Values[i])
		if err != nil {
			v = rctx.URLParams.Values[i]
		}
		m.Params[key] = v
	}
	return m, true
}

// Resolve is like Match but returns an E105 error for unknown paths.
func (r *Router) Resolve(path string) (Match, error) {
	m, ok := r.Match(path)
	if !ok {
		return Match{}, errors.New(errors.CodeUnknownRoute).
			WithDetail("No chi route matches " + path + ".")
	}
	return m, nil
}

// Patterns lists every registered route pattern, subrouters expanded.
func (r *Router) Patterns() []string {
	var patterns []string
	_ = chi.Walk(r.routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if method == r.method {
			patterns = append(patterns, route)
		}
		return nil
	})
	return patterns
}

// joinRoutePatterns joins the patterns chi recorded while descending into
// subrouters. Every pattern but the last ends in the "/*" mount wildcard.
func joinRoutePatterns(patterns []string) string {
	parts := make([]string, len(patterns))
	for i, p := range patterns {
		if i < len(patterns)-1 {
			p = strings.TrimSuffix(p, "/*")
		}
		parts[i] = p
	}
	return urltemplate.JoinPatterns(parts...)
}

// Pattern renders tmpl in chi's {name} syntax so route files written with
// :name segments can be registered on a chi router. chi's catch-all is
// always "*", so wildcard names are dropped.
func Pattern(tmpl urltemplate.Template) string {
	parts := make([]string, len(tmpl))
	for i, seg := range tmpl {
		switch {
		case seg.CatchAll:
			parts[i] = "*"
		case seg.IsParam():
			parts[i] = "{" + seg.Param + "}"
		default:
			parts[i] = seg.Literal
		}
	}
	return "/" + strings.Join(parts, "/")
}
