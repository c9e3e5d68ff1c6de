package syncconfig

import (
	"context"

	"github.com/vango-dev/deeplink/internal/errors"
	"github.com/vango-dev/deeplink/pkg/urltemplate"
	"gopkg.in/yaml.v3"
)

// Source resolves the synchronization config of an activated route.
// Implementations return E101 when the route carries no configuration.
type Source interface {
	Resolve(ctx context.Context, pattern string) (*Config, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, pattern string) (*Config, error)

// Resolve calls f.
func (f SourceFunc) Resolve(ctx context.Context, pattern string) (*Config, error) {
	return f(ctx, pattern)
}

// Static is configuration declared alongside the route definitions, keyed by
// route pattern. ":id" and "{id}" spellings of a pattern are interchangeable.
type Static map[string]*Config

// Resolve implements Source.
func (s Static) Resolve(_ context.Context, pattern string) (*Config, error) {
	if c, ok := s[pattern]; ok {
		return normalizeFor(c, pattern)
	}
	want := Canonical(pattern)
	for p, c := range s {
		if Canonical(p) == want {
			return normalizeFor(c, pattern)
		}
	}
	return nil, errors.New(errors.CodeMissingConfig).WithRoute(pattern)
}

// DataKey is the route data key holding the synchronization config.
const DataKey = "deepLinking"

// RouteData is configuration carried in generic per-route data, keyed by
// route pattern. The value under DataKey may be a Config, a *Config, or a
// decoded document (map[string]any) with the same shape as a YAML route.
type RouteData map[string]map[string]any

// Resolve implements Source.
func (r RouteData) Resolve(_ context.Context, pattern string) (*Config, error) {
	data, ok := r[pattern]
	if !ok {
		want := Canonical(pattern)
		for p, d := range r {
			if Canonical(p) == want {
				data, ok = d, true
				break
			}
		}
	}
	if !ok {
		return nil, errors.New(errors.CodeMissingConfig).WithRoute(pattern)
	}

	switch v := data[DataKey].(type) {
	case *Config:
		return normalizeFor(v, pattern)
	case Config:
		return normalizeFor(&v, pattern)
	case map[string]any:
		c, err := decodeDocument(v)
		if err != nil {
			return nil, errors.New(errors.CodeSourceFailed).WithRoute(pattern).Wrap(err)
		}
		return normalizeFor(c, pattern)
	default:
		return nil, errors.New(errors.CodeMissingConfig).WithRoute(pattern)
	}
}

// decodeDocument converts a generic document into a Config by way of YAML.
func decodeDocument(doc map[string]any) (*Config, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func normalizeFor(c *Config, pattern string) (*Config, error) {
	if c != nil && c.Pattern == "" {
		cp := *c
		cp.Pattern = pattern
		c = &cp
	}
	return Normalize(c)
}

// Canonical returns pattern in the template's :name spelling, or "/" when
// the pattern has no segments.
func Canonical(pattern string) string {
	tmpl, err := urltemplate.Parse(pattern)
	if err != nil {
		return "/"
	}
	return tmpl.String()
}
