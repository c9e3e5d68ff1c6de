package wshost

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/deeplink/pkg/chihost"
	"github.com/vango-dev/deeplink/pkg/deeplink"
	"github.com/vango-dev/deeplink/pkg/syncconfig"
)

// Config configures the WebSocket host.
type Config struct {
	// Router resolves browser URLs to routes. Required.
	Router *chihost.Router

	// Source provides the synchronization config per route. Required.
	Source syncconfig.Source

	// Logger is the base logger. Default: slog.Default().
	Logger *slog.Logger

	// Metrics records synchronization metrics. Optional.
	Metrics *deeplink.Metrics

	// Tracer traces navigations. Optional.
	Tracer trace.Tracer

	// ReadTimeout is how long a connection may stay silent. Pings are sent
	// at half this interval. Default: 60s.
	ReadTimeout time.Duration

	// WriteTimeout bounds each write. Default: 10s.
	WriteTimeout time.Duration

	// QueueSize is the per-session message queue capacity.
	// Default: deeplink.DefaultQueueSize.
	QueueSize int

	// CheckOrigin validates the Origin header of upgrade requests.
	// Default: same origin only.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns a Config with default timeouts.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		QueueSize:    deeplink.DefaultQueueSize,
	}
}

// Handler upgrades HTTP requests and serves one Session per connection.
type Handler struct {
	config   *Config
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHandler creates a handler. Zero fields of config take their defaults.
func NewHandler(config *Config) *Handler {
	c := *DefaultConfig()
	if config != nil {
		c.Router = config.Router
		c.Source = config.Source
		c.Logger = config.Logger
		c.Metrics = config.Metrics
		c.Tracer = config.Tracer
		c.CheckOrigin = config.CheckOrigin
		if config.ReadTimeout > 0 {
			c.ReadTimeout = config.ReadTimeout
		}
		if config.WriteTimeout > 0 {
			c.WriteTimeout = config.WriteTimeout
		}
		if config.QueueSize > 0 {
			c.QueueSize = config.QueueSize
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return &Handler{
		config: &c,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     c.CheckOrigin,
		},
		sessions: make(map[string]*Session),
	}
}

// ServeHTTP implements http.Handler. It blocks until the session ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.config.Logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	s := newSession(conn, h.config)
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.sessions, s.id)
		h.mu.Unlock()
	}()

	s.Serve(r.Context())
}

// SessionCount returns the number of connected sessions.
func (h *Handler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close closes every connected session.
func (h *Handler) Close() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
