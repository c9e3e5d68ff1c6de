package chihost

import (
	"sync"

	"github.com/vango-dev/deeplink/pkg/deeplink"
	"github.com/vango-dev/deeplink/pkg/urltemplate"
)

// Location is the URL one browser session shows. It implements
// deeplink.Location and owns the path and query parameter sources handed to
// the engine.
type Location struct {
	router *Router

	mu    sync.Mutex
	url   string
	match Match

	path  *deeplink.Params
	query *deeplink.Params
}

// Locate creates a Location showing url.
func (r *Router) Locate(url string) (*Location, error) {
	split := urltemplate.SplitURL(url)
	m, err := r.Resolve(split.Path)
	if err != nil {
		return nil, err
	}
	return &Location{
		router: r,
		url:    url,
		match:  m,
		path:   deeplink.NewParams(m.Params),
		query:  deeplink.NewParams(split.Query.Map()),
	}, nil
}

// URL implements deeplink.Location.
func (l *Location) URL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url
}

// Template implements deeplink.Location.
func (l *Location) Template() (urltemplate.Template, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.match.Template, l.match.Template != nil
}

// Route returns the pattern of the active route.
func (l *Location) Route() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.match.Pattern
}

// PathParams returns the path parameter source.
func (l *Location) PathParams() *deeplink.Params {
	return l.path
}

// QueryParams returns the query parameter source.
func (l *Location) QueryParams() *deeplink.Params {
	return l.query
}

// Host bundles the location with nav for deeplink.Activate.
func (l *Location) Host(nav deeplink.Navigator) deeplink.Host {
	return deeplink.Host{
		Route:       l.Route(),
		PathParams:  l.path,
		QueryParams: l.query,
		Navigator:   nav,
		Location:    l,
	}
}

// Set moves the location to url and publishes the new parameters. It
// reports whether the active route changed; callers that hold a sync for
// the previous route should close it before calling Set in that case, see
// Peek.
func (l *Location) Set(url string) (routeChanged bool, err error) {
	split := urltemplate.SplitURL(url)
	m, err := l.router.Resolve(split.Path)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	routeChanged = m.Pattern != l.match.Pattern
	l.url = url
	l.match = m
	l.mu.Unlock()

	l.path.Publish(m.Params)
	l.query.Publish(split.Query.Map())
	return routeChanged, nil
}

// Peek reports whether url belongs to a different route than the current one
// without moving the location.
func (l *Location) Peek(url string) (routeChanged bool, err error) {
	m, err := l.router.Resolve(urltemplate.SplitURL(url).Path)
	if err != nil {
		return false, err
	}
	return m.Pattern != l.Route(), nil
}
