package wshost

import (
	"math"

	"github.com/vango-dev/deeplink/internal/errors"
	"github.com/vango-dev/deeplink/pkg/coerce"
	"github.com/vango-dev/deeplink/pkg/deeplink"
	"github.com/vango-dev/deeplink/pkg/syncconfig"
)

type editable interface {
	deeplink.Field
	Edit(any) error
}

// FieldSet is a view whose fields are derived from a route's declarations:
// string parameters hold a string, number parameters a float64 and json
// parameters any decoded value.
type FieldSet struct {
	names  []string
	types  map[string]string
	fields map[string]editable
}

// NewFieldSet creates one empty field per declaration of cfg.
func NewFieldSet(cfg *syncconfig.Config) *FieldSet {
	decls := cfg.Declarations()
	fs := &FieldSet{
		names:  make([]string, 0, len(decls)),
		types:  make(map[string]string, len(decls)),
		fields: make(map[string]editable, len(decls)),
	}
	for _, d := range decls {
		var f editable
		switch d.Type {
		case coerce.Number:
			f = deeplink.NewEmpty[float64]()
		case coerce.JSON:
			f = deeplink.NewEmpty[any]()
		default:
			f = deeplink.NewEmpty[string]()
		}
		fs.names = append(fs.names, d.Name)
		fs.types[d.Name] = string(d.Type)
		fs.fields[d.Name] = f
	}
	return fs
}

// Fields implements deeplink.View.
func (fs *FieldSet) Fields() map[string]deeplink.Field {
	out := make(map[string]deeplink.Field, len(fs.fields))
	for name, f := range fs.fields {
		out[name] = f
	}
	return out
}

// Types returns the declared type of every field by name.
func (fs *FieldSet) Types() map[string]string {
	out := make(map[string]string, len(fs.types))
	for name, t := range fs.types {
		out[name] = t
	}
	return out
}

// Edit applies a user edit to the named field.
func (fs *FieldSet) Edit(name string, v any) error {
	f, ok := fs.fields[name]
	if !ok {
		return errors.New(errors.CodeProtocol).
			WithParam(name).
			WithDetail("The active view has no such field.")
	}
	if err := f.Edit(v); err != nil {
		return errors.New(errors.CodeProtocol).WithParam(name).Wrap(err)
	}
	return nil
}

// Snapshot returns the current field values; absent fields are omitted.
// Non-finite numbers are given in their string form, which JSON can carry.
func (fs *FieldSet) Snapshot() map[string]any {
	out := make(map[string]any, len(fs.names))
	for _, name := range fs.names {
		v := fs.fields[name].Value()
		if v == nil {
			continue
		}
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			v = coerce.FormatNumber(f)
		}
		out[name] = v
	}
	return out
}
