package syncconfig

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vango-dev/deeplink/internal/errors"
	"gopkg.in/yaml.v3"
)

// RouteTable is a set of route configurations, usually read from a YAML
// route file:
//
//	routes:
//	  - pattern: /users/{id}/detail
//	    view: userDetail
//	    params:
//	      - {name: id, type: number}
//	    queryParams:
//	      - {name: tab}
//	      - {name: filter, type: json}
type RouteTable struct {
	Routes []Config `yaml:"routes" json:"routes"`

	index map[string]int
}

// ParseYAML decodes and validates a route table.
func ParseYAML(data []byte) (*RouteTable, error) {
	var t RouteTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.New(errors.CodeSourceFailed).Wrap(err)
	}
	if err := t.build(); err != nil {
		return nil, err
	}
	return &t, nil
}

// ReadYAML reads a route table from r.
func ReadYAML(r io.Reader) (*RouteTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.New(errors.CodeSourceFailed).Wrap(err)
	}
	return ParseYAML(data)
}

// LoadFile reads a route table from a YAML file.
func LoadFile(path string) (*RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeSourceFailed).
			WithDetail(fmt.Sprintf("Could not read %s.", path)).
			Wrap(err)
	}
	return ParseYAML(data)
}

// build validates every route and indexes them by canonical pattern.
func (t *RouteTable) build() error {
	t.index = make(map[string]int, len(t.Routes))
	for i := range t.Routes {
		r := &t.Routes[i]
		if r.Pattern == "" {
			return errors.New(errors.CodeInvalidDeclaration).
				WithDetail(fmt.Sprintf("Route #%d has no pattern.", i+1))
		}
		if _, err := Normalize(r); err != nil {
			return err
		}
		key := Canonical(r.Pattern)
		if _, dup := t.index[key]; dup {
			return errors.New(errors.CodeInvalidDeclaration).
				WithRoute(r.Pattern).
				WithDetail("The route pattern appears more than once.")
		}
		t.index[key] = i
	}
	return nil
}

// Resolve implements Source.
func (t *RouteTable) Resolve(_ context.Context, pattern string) (*Config, error) {
	i, ok := t.index[Canonical(pattern)]
	if !ok {
		return nil, errors.New(errors.CodeMissingConfig).WithRoute(pattern)
	}
	return Normalize(&t.Routes[i])
}

// Patterns lists the route patterns in file order.
func (t *RouteTable) Patterns() []string {
	out := make([]string, len(t.Routes))
	for i, r := range t.Routes {
		out[i] = r.Pattern
	}
	return out
}
