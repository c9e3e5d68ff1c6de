// Package middleware provides HTTP middleware for the deep-link server.
//
// It includes:
//   - OpenTelemetry tracing, one server span per request
//   - Prometheus request metrics
//   - Structured request logging with slog
//
// All middleware has the func(http.Handler) http.Handler shape and is meant
// to be installed on a chi router. Route labels use the chi route pattern,
// not the raw path, so metric cardinality stays bounded.
//
//	r := chi.NewRouter()
//	r.Use(chimw.RequestID)
//	r.Use(middleware.Tracing(otel.Tracer("deeplink")))
//	r.Use(middleware.NewHTTPMetrics(middleware.WithRegistry(reg)).Handler)
//	r.Use(middleware.Logger(slog.Default()))
//
// # Context Propagation
//
// Tracing stores the request span in the request context, so handlers and
// the WebSocket sessions they start inherit the trace:
//
//	func page(w http.ResponseWriter, r *http.Request) {
//	    span := trace.SpanFromContext(r.Context())
//	    span.SetAttributes(attribute.String("deeplink.view", view))
//	}
package middleware
