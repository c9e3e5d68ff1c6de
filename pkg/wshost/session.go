package wshost

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/vango-dev/deeplink/internal/errors"
	"github.com/vango-dev/deeplink/pkg/chihost"
	"github.com/vango-dev/deeplink/pkg/deeplink"
	"github.com/vango-dev/deeplink/pkg/routepath"
	"github.com/vango-dev/deeplink/pkg/syncconfig"
)

// ErrSessionClosed is returned by navigations that were pending when the
// connection went away.
var ErrSessionClosed = stderrors.New("wshost: session closed")

// Session is one browser connection.
//
// Client messages run one at a time on the session's loop. Navigations run
// on their own goroutines and wait for the browser's ack.
type Session struct {
	id     string
	conn   *websocket.Conn
	config *Config
	loop   *deeplink.Loop
	logger *slog.Logger

	writeMu sync.Mutex

	navMu   sync.Mutex
	pending map[string]*pendingNavigation

	// Owned by the loop. syncMu guards writes to sync so Close can reach it
	// when the loop is stuck.
	loc    *chihost.Location
	view   *FieldSet
	sync   *deeplink.Sync
	syncMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

type pendingNavigation struct {
	url    string
	result chan error
}

func newSession(conn *websocket.Conn, config *Config) *Session {
	id := ulid.Make().String()
	logger := config.Logger.With("session_id", id)
	return &Session{
		id:      id,
		conn:    conn,
		config:  config,
		loop:    deeplink.NewLoop(config.QueueSize, logger),
		logger:  logger,
		pending: make(map[string]*pendingNavigation),
		done:    make(chan struct{}),
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Done returns a channel that's closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Serve runs the session until the connection closes or ctx is done.
func (s *Session) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		_ = s.loop.Run(ctx)
	}()
	go s.heartbeat(ctx)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-s.done:
		}
	}()

	s.logger.Info("session started")
	s.readLoop()
	s.Close()
}

// readLoop reads client messages and queues them on the loop.
func (s *Session) readLoop() {
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(errors.New(errors.CodeProtocol).Wrap(err))
			continue
		}

		if err := s.loop.Dispatch(func() { s.handle(msg) }); err != nil {
			s.sendError(errors.New(errors.CodeProtocol).Wrap(err))
		}
	}
}

func (s *Session) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.config.ReadTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

// handle runs on the loop.
func (s *Session) handle(msg ClientMessage) {
	switch msg.Type {
	case TypeLocation:
		if err := s.moveTo(msg.URL); err != nil {
			s.sendError(err)
			return
		}
	case TypeEdit:
		if s.view == nil {
			s.sendError(errors.New(errors.CodeProtocol).
				WithParam(msg.Field).
				WithDetail("The current route has no deep-linked view."))
			return
		}
		v, err := decodeValue(msg.Value)
		if err != nil {
			s.sendError(errors.New(errors.CodeProtocol).WithParam(msg.Field).Wrap(err))
			return
		}
		if err := s.view.Edit(msg.Field, v); err != nil {
			s.sendError(err)
			return
		}
	case TypeAck:
		s.acknowledge(msg)
	default:
		s.sendError(errors.New(errors.CodeProtocol).
			WithDetail("Unknown message type " + msg.Type + "."))
		return
	}
	s.sendState()
}

// moveTo makes url the location shown, activating a new sync when the route
// changes.
func (s *Session) moveTo(url string) error {
	clean, err := routepath.Clean(url)
	if err != nil {
		return errors.New(errors.CodeProtocol).
			WithDetail("Location " + strconv.Quote(url) + " was refused.").
			Wrap(err)
	}
	url = clean.URL

	if s.loc == nil {
		loc, err := s.config.Router.Locate(url)
		if err != nil {
			return err
		}
		s.loc = loc
		return s.activate()
	}

	changed, err := s.loc.Peek(url)
	if err != nil {
		return err
	}
	if changed {
		s.deactivate()
	}
	if _, err := s.loc.Set(url); err != nil {
		return err
	}
	if changed {
		return s.activate()
	}
	return nil
}

// activate starts synchronizing the current route's view. Routes without
// configuration are shown without a view.
func (s *Session) activate() error {
	ctx := context.Background()
	route := s.loc.Route()

	cfg, err := s.config.Source.Resolve(ctx, route)
	if errors.HasCode(err, errors.CodeMissingConfig) {
		s.logger.Debug("route is not deep linked", "route", route)
		return nil
	}
	if err != nil {
		return err
	}

	view := NewFieldSet(cfg)
	resolved := syncconfig.SourceFunc(func(context.Context, string) (*syncconfig.Config, error) {
		return cfg, nil
	})
	opts := []deeplink.Option{
		deeplink.WithLogger(s.logger),
		deeplink.WithMetrics(s.config.Metrics),
		deeplink.WithErrorHandler(s.inflowFailed),
	}
	if s.config.Tracer != nil {
		opts = append(opts, deeplink.WithTracer(s.config.Tracer))
	}
	ds, err := deeplink.Activate(ctx, resolved, view, s.loc.Host(s), opts...)
	if err != nil {
		return errors.FromError(err, errors.CodeInflowFailed)
	}

	s.syncMu.Lock()
	select {
	case <-s.done:
		s.syncMu.Unlock()
		ds.Close()
		return ErrSessionClosed
	default:
	}
	s.view = view
	s.sync = ds
	s.syncMu.Unlock()
	return nil
}

// closeSync closes the sync from outside the loop. It is used when the loop
// can no longer run deactivate.
func (s *Session) closeSync() {
	s.syncMu.Lock()
	ds := s.sync
	s.syncMu.Unlock()
	if ds != nil {
		ds.Close()
	}
}

func (s *Session) deactivate() {
	s.syncMu.Lock()
	ds := s.sync
	s.sync = nil
	s.view = nil
	s.syncMu.Unlock()
	if ds != nil {
		ds.Close()
	}
}

// inflowFailed reports an inflow error raised after activation.
func (s *Session) inflowFailed(err error) {
	s.sendError(errors.FromError(err, errors.CodeInflowFailed))
}

// Navigate implements deeplink.Navigator. It asks the browser to show url
// and waits for the ack.
func (s *Session) Navigate(ctx context.Context, url string) error {
	id := ulid.Make().String()
	p := &pendingNavigation{url: url, result: make(chan error, 1)}

	s.navMu.Lock()
	s.pending[id] = p
	s.navMu.Unlock()
	defer func() {
		s.navMu.Lock()
		delete(s.pending, id)
		s.navMu.Unlock()
	}()

	if err := s.send(ServerMessage{Type: TypeNavigate, ID: id, URL: url}); err != nil {
		return err
	}

	select {
	case err := <-p.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}
}

// acknowledge completes a pending navigation. Acks for navigations that were
// superseded or cancelled are ignored; the browser shows the newer URL once
// it has processed the later navigate.
func (s *Session) acknowledge(msg ClientMessage) {
	s.navMu.Lock()
	p, ok := s.pending[msg.ID]
	if ok {
		delete(s.pending, msg.ID)
	}
	s.navMu.Unlock()

	if !ok {
		s.logger.Debug("ack for unknown navigation", "id", msg.ID)
		return
	}
	if msg.Error != "" {
		p.result <- errors.New(errors.CodeNavigationRejected).WithDetail(msg.Error)
		return
	}
	// Release the navigation before moving: a route change closes the sync,
	// which waits for its navigations to return.
	p.result <- nil
	if err := s.moveTo(p.url); err != nil {
		s.sendError(err)
	}
}

// PendingNavigations returns the number of navigations awaiting an ack.
func (s *Session) PendingNavigations() int {
	s.navMu.Lock()
	defer s.navMu.Unlock()
	return len(s.pending)
}

func (s *Session) sendState() {
	msg := ServerMessage{Type: TypeState}
	if s.loc != nil {
		msg.URL = s.loc.URL()
		msg.Route = s.loc.Route()
	}
	if s.sync != nil {
		msg.View = s.sync.Config().View
		msg.Fields = s.view.Snapshot()
		msg.Types = s.view.Types()
	}
	if err := s.send(msg); err != nil {
		s.logger.Debug("failed to send state", "error", err)
	}
}

func (s *Session) sendError(err error) {
	e := errors.FromError(err, errors.CodeProtocol)
	s.logger.Warn("client error", "code", e.Code, "error", err)
	if err := s.send(ServerMessage{Type: TypeError, Code: e.Code, Message: e.Error()}); err != nil {
		s.logger.Debug("failed to send error", "error", err)
	}
}

func (s *Session) send(msg ServerMessage) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteJSON(msg)
}

// Close ends the session: the sync is closed on the loop, pending
// navigations are released and the connection is closed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		err := s.loop.Do(ctx, s.deactivate)
		cancel()
		s.loop.Close()
		if err != nil {
			if !stderrors.Is(err, deeplink.ErrLoopClosed) {
				s.logger.Warn("loop busy, closing sync outside it", "error", err)
			}
			s.closeSync()
		}

		s.writeMu.Lock()
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()
		s.conn.Close()

		s.logger.Info("session closed")
	})
}
