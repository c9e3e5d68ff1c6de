package deeplink

import (
	"github.com/vango-dev/deeplink/pkg/coerce"
	"github.com/vango-dev/deeplink/pkg/syncconfig"
)

// ApplyParams writes URL parameters into fields. For each declaration the
// field's current string form is compared with the raw URL value, and the
// coerced value is assigned only when they differ. An absent parameter is
// compared against the string form of the type's absent value ("" for
// string and number, "{}" for json).
//
// ApplyParams returns the names of the fields it assigned. It stops at the
// first coercion or assignment error and returns it unchanged; fields after
// the failing one keep their values.
func ApplyParams(fields map[string]Field, decls []syncconfig.Declaration, params map[string]string) ([]string, error) {
	var changed []string
	for _, d := range decls {
		f, ok := fields[d.Name]
		if !ok || f == nil {
			continue
		}

		raw, present := params[d.Name]
		current := coerce.ToString(f.Value())

		want := raw
		if !present {
			absent, _ := coerce.ToTyped(d.Type, "", false)
			want = coerce.ToString(absent)
		}
		if current == want {
			continue
		}

		typed, err := coerce.ToTyped(d.Type, raw, present)
		if err != nil {
			return changed, err
		}
		if err := f.Assign(typed); err != nil {
			return changed, err
		}
		changed = append(changed, d.Name)
	}
	return changed, nil
}

// applyInflow runs ApplyParams for one parameter kind under the sync lock.
func (s *Sync) applyInflow(kind syncconfig.Kind, decls []syncconfig.Declaration, params map[string]string) error {
	if len(decls) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	changed, err := ApplyParams(s.fields, decls, params)
	for _, name := range changed {
		s.metrics.recordInflowWrite(kind)
		s.logger.Debug("field updated from url", "kind", kind, "param", name)
	}
	if err != nil {
		s.metrics.recordInflowError(kind)
	}
	return err
}

// onParams handles a change notification from a parameter source.
// No caller exists to propagate to, so errors go to the error handler.
func (s *Sync) onParams(kind syncconfig.Kind, decls []syncconfig.Declaration) func(map[string]string) {
	return func(params map[string]string) {
		if err := s.applyInflow(kind, decls, params); err != nil {
			s.onError(err)
		}
	}
}
