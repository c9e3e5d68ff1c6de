// Package syncconfig describes which view fields are synchronized with which
// URL parameters, and where that description comes from.
//
// A Config is resolved once per view activation from a Source. Sources are
// pluggable: configuration may be declared next to the route (Static),
// carried in per-route data (RouteData), read from a YAML route file
// (RouteTable), or fetched from S3 (S3Source). The synchronization engine
// does not care which.
package syncconfig

import (
	"fmt"

	"github.com/vango-dev/deeplink/internal/errors"
	"github.com/vango-dev/deeplink/pkg/coerce"
	"github.com/vango-dev/deeplink/pkg/urltemplate"
)

// Kind says where in the URL a parameter lives.
type Kind string

const (
	// Path parameters are variable segments of the URL path.
	Path Kind = "path"

	// Query parameters are keys of the URL query string.
	Query Kind = "query"
)

// Declaration binds the view field Name to the URL parameter of the same name.
type Declaration struct {
	Name string      `yaml:"name" json:"name"`
	Type coerce.Type `yaml:"type,omitempty" json:"type,omitempty"`

	// Kind is filled in from the list the declaration appears in.
	Kind Kind `yaml:"-" json:"-"`
}

// Config is the synchronization setup of one route.
type Config struct {
	// Pattern is the route pattern, e.g. /users/{id}/detail.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	// View names the view type rendered for the route.
	View string `yaml:"view" json:"view"`

	// Params are path parameter declarations.
	Params []Declaration `yaml:"params,omitempty" json:"params,omitempty"`

	// QueryParams are query parameter declarations.
	QueryParams []Declaration `yaml:"queryParams,omitempty" json:"queryParams,omitempty"`
}

// Normalize returns a validated copy of c with kinds and default types filled
// in. Missing parameter lists are treated as empty. A nil config or an empty
// view type is reported as E101; bad declarations as E102 or E104.
func Normalize(c *Config) (*Config, error) {
	if c == nil || c.View == "" {
		err := errors.New(errors.CodeMissingConfig)
		if c != nil {
			err.WithRoute(c.Pattern)
		}
		return nil, err
	}

	out := &Config{
		Pattern:     c.Pattern,
		View:        c.View,
		Params:      make([]Declaration, 0, len(c.Params)),
		QueryParams: make([]Declaration, 0, len(c.QueryParams)),
	}

	seen := make(map[string]bool)
	add := func(list []Declaration, kind Kind, dst *[]Declaration) error {
		for _, d := range list {
			if d.Name == "" {
				return errors.New(errors.CodeInvalidDeclaration).
					WithRoute(c.Pattern).
					WithDetail(fmt.Sprintf("A %s parameter declaration has no name.", kind))
			}
			if seen[d.Name] {
				return errors.New(errors.CodeInvalidDeclaration).
					WithRoute(c.Pattern).
					WithParam(d.Name).
					WithDetail("The parameter is declared more than once.")
			}
			seen[d.Name] = true

			t, err := coerce.ParseType(string(d.Type))
			if err != nil {
				return errors.New(errors.CodeInvalidDeclaration).
					WithRoute(c.Pattern).
					WithParam(d.Name).
					Wrap(err)
			}
			*dst = append(*dst, Declaration{Name: d.Name, Type: t, Kind: kind})
		}
		return nil
	}

	if err := add(c.Params, Path, &out.Params); err != nil {
		return nil, err
	}
	if err := add(c.QueryParams, Query, &out.QueryParams); err != nil {
		return nil, err
	}

	if c.Pattern != "" && len(out.Params) > 0 {
		tmpl, _ := urltemplate.Parse(c.Pattern)
		for _, d := range out.Params {
			if !tmpl.Has(d.Name) {
				return nil, errors.New(errors.CodeTemplateMismatch).
					WithRoute(c.Pattern).
					WithParam(d.Name)
			}
		}
	}

	return out, nil
}

// Declarations returns path declarations followed by query declarations.
func (c *Config) Declarations() []Declaration {
	all := make([]Declaration, 0, len(c.Params)+len(c.QueryParams))
	all = append(all, c.Params...)
	return append(all, c.QueryParams...)
}

// Lookup finds the declaration for a field name.
func (c *Config) Lookup(name string) (Declaration, bool) {
	for _, d := range c.Declarations() {
		if d.Name == name {
			return d, true
		}
	}
	return Declaration{}, false
}
