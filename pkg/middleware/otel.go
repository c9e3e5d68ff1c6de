package middleware

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingOption configures the tracing middleware.
type TracingOption func(*tracingConfig)

type tracingConfig struct {
	filter func(r *http.Request) bool
}

// WithRequestFilter sets which requests are traced. Return false to skip a
// request. If unset, all requests are traced.
func WithRequestFilter(filter func(r *http.Request) bool) TracingOption {
	return func(c *tracingConfig) {
		c.filter = filter
	}
}

// Tracing creates middleware that starts a server span for every request.
//
// The span is named after the chi route pattern once routing has run, so
// /users/42/detail and /users/7/detail share the span name
// "GET /users/{id}/detail". Responses with a 5xx status mark the span as
// failed.
//
// The tracer usually comes from the global provider. Configure it in main()
// before starting the server:
//
//	otel.SetTracerProvider(tp)
//	r.Use(middleware.Tracing(otel.Tracer("deeplink")))
func Tracing(tracer trace.Tracer, opts ...TracingOption) func(http.Handler) http.Handler {
	var config tracingConfig
	for _, opt := range opts {
		opt(&config)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.filter != nil && !config.filter(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.RequestURI()),
				),
			)
			defer span.End()

			if id := chimw.GetReqID(r.Context()); id != "" {
				span.SetAttributes(attribute.String("http.request_id", id))
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := statusOf(ww)
			if route := routePattern(r); route != "" {
				span.SetName(r.Method + " " + route)
				span.SetAttributes(attribute.String("http.route", route))
			}
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// routePattern returns the chi route pattern that served r, or "" when the
// request did not go through a chi router.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

// statusOf returns the response status, 200 when the handler never wrote a
// header.
func statusOf(ww chimw.WrapResponseWriter) int {
	if status := ww.Status(); status != 0 {
		return status
	}
	return http.StatusOK
}
