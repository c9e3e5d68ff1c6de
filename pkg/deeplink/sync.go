package deeplink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/deeplink/internal/errors"
	"github.com/vango-dev/deeplink/pkg/syncconfig"
)

const tracerName = "github.com/vango-dev/deeplink"

// Option configures a Sync.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	onError func(error)
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records synchronization metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer for navigation spans.
// Default: the global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithErrorHandler receives inflow errors raised by parameter change
// notifications after activation. Default: log at warn level.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// Sync is the synchronization of one activated view. It owns every
// subscription and pending navigation made for the view until Close.
type Sync struct {
	id      string
	config  *syncconfig.Config
	fields  map[string]Field
	host    Host
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	onError func(error)

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	unsubscribe []func()
	streams     map[string]*stream

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// stream tracks the latest outflow navigation of one field.
type stream struct {
	gen    uint64
	cancel context.CancelFunc
}

// Activate resolves the route's configuration from src, copies the current
// URL into the view, and starts synchronizing in both directions.
//
// Activation fails without side effects when the configuration is missing
// or invalid, when the view lacks a declared field, or when a URL value
// cannot be coerced (for example malformed json). The caller must Close
// the returned Sync when the view goes away.
func Activate(ctx context.Context, src syncconfig.Source, view View, host Host, opts ...Option) (*Sync, error) {
	if err := host.validate(); err != nil {
		return nil, err
	}
	if src == nil || view == nil {
		return nil, errors.New(errors.CodeMissingConfig).WithRoute(host.Route)
	}

	cfg, err := src.Resolve(ctx, host.Route)
	if err != nil {
		return nil, err
	}

	fields := view.Fields()
	for _, d := range cfg.Declarations() {
		if f, ok := fields[d.Name]; !ok || f == nil {
			return nil, errors.New(errors.CodeInvalidDeclaration).
				WithRoute(host.Route).
				WithParam(d.Name).
				WithDetail(fmt.Sprintf("View %q has no field for the parameter.", cfg.View))
		}
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	id := uuid.NewString()
	s := &Sync{
		id:      id,
		config:  cfg,
		fields:  fields,
		host:    host,
		metrics: o.metrics,
		tracer:  o.tracer,
		streams: make(map[string]*stream),
		logger: o.logger.With(
			"activation_id", id,
			"view", cfg.View,
			"route", host.Route,
		),
	}
	s.onError = o.onError
	if s.onError == nil {
		s.onError = func(err error) {
			s.logger.Warn("failed to apply url parameters", "error", err)
		}
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if err := s.applyInflow(syncconfig.Path, cfg.Params, host.PathParams.Snapshot()); err != nil {
		s.cancel()
		return nil, err
	}
	if err := s.applyInflow(syncconfig.Query, cfg.QueryParams, host.QueryParams.Snapshot()); err != nil {
		s.cancel()
		return nil, err
	}

	s.mu.Lock()
	if len(cfg.Params) > 0 {
		s.unsubscribe = append(s.unsubscribe,
			host.PathParams.Subscribe(s.onParams(syncconfig.Path, cfg.Params)))
	}
	if len(cfg.QueryParams) > 0 {
		s.unsubscribe = append(s.unsubscribe,
			host.QueryParams.Subscribe(s.onParams(syncconfig.Query, cfg.QueryParams)))
	}
	s.mu.Unlock()

	for _, d := range cfg.Declarations() {
		s.subscribeOutflow(d)
	}

	s.metrics.syncOpened()
	s.logger.Info("deep link sync activated",
		"path_params", len(cfg.Params),
		"query_params", len(cfg.QueryParams))
	return s, nil
}

// ID returns the activation ID used in logs.
func (s *Sync) ID() string {
	return s.id
}

// Config returns the resolved configuration. It must not be modified.
func (s *Sync) Config() *syncconfig.Config {
	return s.config
}

// Done returns a channel that's closed when the sync is closed.
func (s *Sync) Done() <-chan struct{} {
	return s.ctx.Done()
}

// IsClosed returns whether Close has been called.
func (s *Sync) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Pending reports whether a navigation for the named field is in flight.
func (s *Sync) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[name]
	return ok && st.cancel != nil
}

// Close ends the synchronization. It releases every subscription, cancels
// pending navigations and waits for them to return. Close is idempotent and
// must not be called from a Navigator.
func (s *Sync) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		unsubscribe := s.unsubscribe
		s.unsubscribe = nil
		s.mu.Unlock()

		for i := len(unsubscribe) - 1; i >= 0; i-- {
			unsubscribe[i]()
		}
		s.cancel()
		s.wg.Wait()

		s.metrics.syncClosed()
		s.logger.Info("deep link sync closed")
	})
}
