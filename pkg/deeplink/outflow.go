package deeplink

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/deeplink/pkg/coerce"
	"github.com/vango-dev/deeplink/pkg/syncconfig"
	"github.com/vango-dev/deeplink/pkg/urltemplate"
)

// Rewrite returns the URL that shows value for declaration d, starting from
// the current URL.
//
// A path parameter is substituted into the template-aligned path segment and
// the query string is carried over. A query parameter is set when value is
// truthy and removed otherwise; absent values never appear as empty query
// entries. Rewrite fails with urltemplate.ErrNoTemplate when a path
// parameter is rewritten without a template.
func Rewrite(current string, tmpl urltemplate.Template, d syncconfig.Declaration, value any) (string, error) {
	split := urltemplate.SplitURL(current)

	switch d.Kind {
	case syncconfig.Path:
		path, err := urltemplate.ReplacePathParam(split.Path, tmpl, d.Name, coerce.ToString(value))
		if err != nil {
			return "", err
		}
		split.Path = path
	default:
		if coerce.Truthy(value) {
			split.Query.Set(d.Name, coerce.ToString(value))
		} else {
			split.Query.Delete(d.Name)
		}
	}
	return split.String(), nil
}

func (s *Sync) subscribeOutflow(d syncconfig.Declaration) {
	n, ok := s.fields[d.Name].(Notifier)
	if !ok {
		s.logger.Debug("field has no change notification, inflow only", "param", d.Name)
		return
	}

	s.mu.Lock()
	s.streams[d.Name] = &stream{}
	s.mu.Unlock()

	cancel := n.OnChange(func(v any) {
		s.onChange(d, v)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		cancel()
		return
	}
	s.unsubscribe = append(s.unsubscribe, cancel)
	s.logger.Debug("subscribed", "param", d.Name, "event", ChangeName(d.Name))
}

// onChange starts the navigation for a user edit, superseding the field's
// pending navigation if there is one.
func (s *Sync) onChange(d syncconfig.Declaration, v any) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	st, ok := s.streams[d.Name]
	if !ok {
		s.mu.Unlock()
		return
	}
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	st.gen++
	gen := st.gen

	var tmpl urltemplate.Template
	if d.Kind == syncconfig.Path {
		if t, ok := s.host.Location.Template(); ok {
			tmpl = t
		}
	}
	target, err := Rewrite(s.host.Location.URL(), tmpl, d, v)
	if err != nil {
		s.mu.Unlock()
		s.metrics.recordNavigation(d.Kind, ResultSkipped, 0)
		if errors.Is(err, urltemplate.ErrNoTemplate) {
			s.logger.Debug("navigation skipped, no route template", "param", d.Name)
		} else {
			s.logger.Warn("navigation skipped", "param", d.Name, "error", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	st.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.navigate(ctx, cancel, d, gen, target)
}

func (s *Sync) navigate(ctx context.Context, cancel context.CancelFunc, d syncconfig.Declaration, gen uint64, target string) {
	defer s.wg.Done()
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "deeplink.navigate",
		trace.WithAttributes(
			attribute.String("deeplink.param", d.Name),
			attribute.String("deeplink.kind", string(d.Kind)),
			attribute.String("deeplink.url", target),
			attribute.String("deeplink.activation_id", s.id),
		),
	)
	defer span.End()

	start := time.Now()
	err := s.host.Navigator.Navigate(ctx, target)
	elapsed := time.Since(start)

	s.mu.Lock()
	st := s.streams[d.Name]
	latest := st.gen == gen
	if latest {
		st.cancel = nil
	}
	closed := s.closed
	s.mu.Unlock()

	var result string
	switch {
	case closed:
		result = ResultCancelled
		span.AddEvent("cancelled")
	case !latest:
		result = ResultSuperseded
		span.AddEvent("superseded")
		s.logger.Debug("navigation superseded", "param", d.Name, "url", target)
	case err != nil:
		result = ResultFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("navigation rejected", "param", d.Name, "url", target, "error", err)
	default:
		result = ResultCompleted
		s.logger.Debug("navigated", "param", d.Name, "url", target, "duration", elapsed)
	}
	s.metrics.recordNavigation(d.Kind, result, elapsed)
}
