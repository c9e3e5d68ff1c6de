package deeplink

import (
	"context"
	"fmt"

	"github.com/vango-dev/deeplink/pkg/urltemplate"
)

// ParamSource delivers snapshots of one kind of URL parameter (path or
// query) as name → raw string.
type ParamSource interface {
	// Snapshot returns the parameters of the current URL.
	Snapshot() map[string]string

	// Subscribe calls fn with a fresh snapshot on every change. The returned
	// function ends the subscription.
	Subscribe(fn func(map[string]string)) (cancel func())
}

// Navigator asks the host router to show a new URL.
//
// Navigate blocks until the router has applied the URL or rejected it.
// Implementations must return promptly once ctx is cancelled; a cancelled
// navigation's outcome is discarded.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, url string) error {
	return f(ctx, url)
}

// Location exposes the host's current URL and active route template.
type Location interface {
	// URL returns the full URL currently displayed (path and query).
	URL() string

	// Template returns the active route's path template. ok is false when
	// no route path is active.
	Template() (tmpl urltemplate.Template, ok bool)
}

// Host bundles the collaborators the host router provides for one view.
type Host struct {
	// Route is the pattern of the activated route; it selects the config.
	Route string

	PathParams  ParamSource
	QueryParams ParamSource
	Navigator   Navigator
	Location    Location
}

func (h Host) validate() error {
	switch {
	case h.PathParams == nil:
		return fmt.Errorf("deeplink: host has no path parameter source")
	case h.QueryParams == nil:
		return fmt.Errorf("deeplink: host has no query parameter source")
	case h.Navigator == nil:
		return fmt.Errorf("deeplink: host has no navigator")
	case h.Location == nil:
		return fmt.Errorf("deeplink: host has no location")
	}
	return nil
}
