package wshost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-dev/deeplink/internal/errors"
	"github.com/vango-dev/deeplink/pkg/chihost"
	"github.com/vango-dev/deeplink/pkg/coerce"
	"github.com/vango-dev/deeplink/pkg/deeplink"
	"github.com/vango-dev/deeplink/pkg/syncconfig"
)

func testConfig() *Config {
	r := chi.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.Get("/users/{id}/detail", noop)
	r.Get("/search", noop)
	r.Get("/about", noop)

	return &Config{
		Router: chihost.New(r),
		Source: syncconfig.Static{
			"/users/:id/detail": {
				View:        "userDetail",
				Params:      []syncconfig.Declaration{{Name: "id", Type: coerce.Number}},
				QueryParams: []syncconfig.Declaration{{Name: "tab"}},
			},
			"/search": {
				View:        "search",
				QueryParams: []syncconfig.Declaration{{Name: "q"}, {Name: "filter", Type: coerce.JSON}},
			},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func startServer(t *testing.T) (*Handler, *testClient) {
	t.Helper()
	return startServerWith(t, testConfig())
}

func startServerWith(t *testing.T, config *Config) (*Handler, *testClient) {
	t.Helper()
	h := NewHandler(config)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return h, &testClient{t: t, conn: conn}
}

func (c *testClient) send(msg ClientMessage) {
	c.t.Helper()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("WriteJSON failed: %v", err)
	}
}

func (c *testClient) sendRaw(data string) {
	c.t.Helper()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
		c.t.Fatalf("WriteMessage failed: %v", err)
	}
}

// next reads messages until match accepts one.
func (c *testClient) next(match func(ServerMessage) bool) ServerMessage {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = c.conn.SetReadDeadline(deadline)
		var msg ServerMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.t.Fatalf("ReadJSON failed: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func (c *testClient) nextType(typ string) ServerMessage {
	c.t.Helper()
	return c.next(func(m ServerMessage) bool { return m.Type == typ })
}

func (c *testClient) stateAt(url string) ServerMessage {
	c.t.Helper()
	return c.next(func(m ServerMessage) bool { return m.Type == TypeState && m.URL == url })
}

func editValue(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestInitialLocation(t *testing.T) {
	_, c := startServer(t)

	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail?tab=profile"})
	state := c.nextType(TypeState)

	if state.Route != "/users/{id}/detail" || state.View != "userDetail" {
		t.Errorf("state = %+v", state)
	}
	if state.Fields["id"] != 42.0 || state.Fields["tab"] != "profile" {
		t.Errorf("fields = %v", state.Fields)
	}
}

func TestEditNavigates(t *testing.T) {
	_, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail?tab=profile"})
	c.nextType(TypeState)

	c.send(ClientMessage{Type: TypeEdit, Field: "tab", Value: editValue(t, "settings")})
	nav := c.nextType(TypeNavigate)
	if nav.URL != "/users/42/detail?tab=settings" {
		t.Fatalf("navigate URL = %q", nav.URL)
	}
	if nav.ID == "" {
		t.Fatal("navigate without id")
	}

	c.send(ClientMessage{Type: TypeAck, ID: nav.ID})
	state := c.stateAt("/users/42/detail?tab=settings")
	if state.Fields["tab"] != "settings" || state.Fields["id"] != 42.0 {
		t.Errorf("fields after ack = %v", state.Fields)
	}
}

func TestEditPathParam(t *testing.T) {
	_, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail?tab=profile"})
	c.nextType(TypeState)

	c.send(ClientMessage{Type: TypeEdit, Field: "id", Value: editValue(t, 99)})
	nav := c.nextType(TypeNavigate)
	if nav.URL != "/users/99/detail?tab=profile" {
		t.Fatalf("navigate URL = %q", nav.URL)
	}
	c.send(ClientMessage{Type: TypeAck, ID: nav.ID})
	c.stateAt("/users/99/detail?tab=profile")
}

func TestRejectedNavigation(t *testing.T) {
	_, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail?tab=profile"})
	c.nextType(TypeState)

	c.send(ClientMessage{Type: TypeEdit, Field: "tab", Value: editValue(t, "secret")})
	nav := c.nextType(TypeNavigate)
	c.send(ClientMessage{Type: TypeAck, ID: nav.ID, Error: "blocked by guard"})

	// The location stays; the field keeps the user's edit.
	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail?tab=profile"})
	state := c.stateAt("/users/42/detail?tab=profile")
	if state.Fields["tab"] != "secret" {
		t.Errorf("tab = %v, want the unapplied edit", state.Fields["tab"])
	}
}

func TestBrowserNavigation(t *testing.T) {
	_, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail?tab=profile"})
	c.nextType(TypeState)

	c.send(ClientMessage{Type: TypeLocation, URL: "/users/7/detail"})
	state := c.stateAt("/users/7/detail")
	if state.Fields["id"] != 7.0 {
		t.Errorf("id = %v", state.Fields["id"])
	}
	if _, ok := state.Fields["tab"]; ok {
		t.Errorf("tab should be absent, got %v", state.Fields["tab"])
	}
}

func TestRouteChange(t *testing.T) {
	_, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail"})
	c.nextType(TypeState)

	c.send(ClientMessage{Type: TypeLocation, URL: "/search?q=go"})
	state := c.stateAt("/search?q=go")
	if state.View != "search" || state.Fields["q"] != "go" {
		t.Errorf("state = %+v", state)
	}
	if m, ok := state.Fields["filter"].(map[string]any); !ok || len(m) != 0 {
		t.Errorf("absent json filter = %#v, want {}", state.Fields["filter"])
	}

	c.send(ClientMessage{Type: TypeEdit, Field: "filter", Value: editValue(t, map[string]any{"lang": "go"})})
	nav := c.nextType(TypeNavigate)
	if nav.URL != "/search?q=go&filter=%7B%22lang%22%3A%22go%22%7D" {
		t.Errorf("navigate URL = %q", nav.URL)
	}
}

func TestRouteWithoutConfig(t *testing.T) {
	_, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/about"})
	state := c.nextType(TypeState)
	if state.View != "" || len(state.Fields) != 0 {
		t.Errorf("state = %+v, want no view", state)
	}

	c.send(ClientMessage{Type: TypeEdit, Field: "tab", Value: editValue(t, "x")})
	msg := c.nextType(TypeError)
	if msg.Code != errors.CodeProtocol {
		t.Errorf("code = %q", msg.Code)
	}
}

func TestMalformedURLValue(t *testing.T) {
	_, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/search?filter=%7Bbad"})
	msg := c.nextType(TypeError)
	if msg.Code != errors.CodeInflowFailed || !strings.Contains(msg.Message, "{bad") {
		t.Errorf("error = %+v", msg)
	}
}

func TestInflowErrorAfterActivation(t *testing.T) {
	_, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/search?q=a"})
	c.nextType(TypeState)

	c.send(ClientMessage{Type: TypeLocation, URL: "/search?filter=%7Bbad"})
	msg := c.nextType(TypeError)
	if msg.Code != errors.CodeInflowFailed {
		t.Errorf("code = %q, want %s", msg.Code, errors.CodeInflowFailed)
	}
}

func TestProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		send func(c *testClient)
	}{
		{"MalformedJSON", func(c *testClient) { c.sendRaw("{not json") }},
		{"UnknownType", func(c *testClient) { c.send(ClientMessage{Type: "teleport"}) }},
		{"UnknownRoute", func(c *testClient) { c.send(ClientMessage{Type: TypeLocation, URL: "/nowhere"}) }},
		{"AbsoluteLocation", func(c *testClient) { c.send(ClientMessage{Type: TypeLocation, URL: "https://evil.example/"}) }},
		{"LocationEscapesRoot", func(c *testClient) { c.send(ClientMessage{Type: TypeLocation, URL: "/../search"}) }},
		{"UnknownField", func(c *testClient) {
			c.send(ClientMessage{Type: TypeLocation, URL: "/search"})
			c.nextType(TypeState)
			c.send(ClientMessage{Type: TypeEdit, Field: "nope", Value: editValue(c.t, 1)})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := startServer(t)
			tt.send(c)
			msg := c.nextType(TypeError)
			if msg.Code == "" || msg.Message == "" {
				t.Errorf("error message = %+v", msg)
			}
		})
	}
}

func TestLocationCleaned(t *testing.T) {
	_, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/users//42/./detail/?tab=profile"})
	state := c.nextType(TypeState)
	if state.URL != "/users/42/detail?tab=profile" {
		t.Errorf("url = %q", state.URL)
	}
	if state.View != "userDetail" || state.Fields["id"] != 42.0 {
		t.Errorf("state = %+v", state)
	}
}

func TestStaleAckIgnored(t *testing.T) {
	_, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail?tab=profile"})
	c.nextType(TypeState)

	c.send(ClientMessage{Type: TypeAck, ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"})
	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail?tab=profile"})
	state := c.stateAt("/users/42/detail?tab=profile")
	if state.Fields["tab"] != "profile" {
		t.Errorf("fields = %v", state.Fields)
	}
}

func TestHandlerClose(t *testing.T) {
	h, c := startServer(t)
	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail"})
	c.nextType(TypeState)

	if h.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", h.SessionCount())
	}

	c.send(ClientMessage{Type: TypeEdit, Field: "tab", Value: editValue(t, "x")})
	c.nextType(TypeNavigate)

	h.Close()

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not removed after Close")
		}
		time.Sleep(time.Millisecond)
	}
}

func expectActiveSyncs(t *testing.T, reg *prometheus.Registry, n int) {
	t.Helper()
	expected := fmt.Sprintf(`
# HELP deeplink_active_syncs Number of activated views being synchronized
# TYPE deeplink_active_syncs gauge
deeplink_active_syncs %d
`, n)
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "deeplink_active_syncs"); err != nil {
		t.Error(err)
	}
}

func TestCloseWithBusyLoop(t *testing.T) {
	reg := prometheus.NewRegistry()
	config := testConfig()
	config.Metrics = deeplink.NewMetrics(deeplink.WithRegistry(reg))
	config.WriteTimeout = 50 * time.Millisecond
	h, c := startServerWith(t, config)

	c.send(ClientMessage{Type: TypeLocation, URL: "/users/42/detail"})
	c.nextType(TypeState)
	expectActiveSyncs(t, reg, 1)

	h.mu.Lock()
	var s *Session
	for _, session := range h.sessions {
		s = session
	}
	h.mu.Unlock()
	if s == nil {
		t.Fatal("no session")
	}

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	if err := s.loop.Dispatch(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatal(err)
	}
	<-started

	s.Close()
	expectActiveSyncs(t, reg, 0)
}

func TestSessionServeStopsOnContext(t *testing.T) {
	config := NewHandler(testConfig()).config
	ctx, cancel := context.WithCancel(context.Background())
	sessions := make(chan *Session, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := newSession(conn, config)
		sessions <- s
		s.Serve(ctx)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	s := <-sessions
	if s.ID() == "" {
		t.Error("session without id")
	}
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop when its context was cancelled")
	}
}

func TestFieldSet(t *testing.T) {
	cfg, err := syncconfig.Normalize(&syncconfig.Config{
		View:        "v",
		QueryParams: []syncconfig.Declaration{{Name: "s"}, {Name: "n", Type: coerce.Number}, {Name: "j", Type: coerce.JSON}},
	})
	if err != nil {
		t.Fatal(err)
	}
	fs := NewFieldSet(cfg)

	if len(fs.Fields()) != 3 {
		t.Fatalf("Fields = %v", fs.Fields())
	}
	if len(fs.Snapshot()) != 0 {
		t.Errorf("new field set should be empty, got %v", fs.Snapshot())
	}
	wantTypes := map[string]string{"s": "string", "n": "number", "j": "json"}
	if got := fs.Types(); !reflect.DeepEqual(got, wantTypes) {
		t.Errorf("Types = %v, want %v", got, wantTypes)
	}

	if err := fs.Edit("n", 2.5); err != nil {
		t.Fatal(err)
	}
	if err := fs.Edit("s", "x"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Edit("j", []any{1.0}); err != nil {
		t.Fatal(err)
	}
	snap := fs.Snapshot()
	if snap["n"] != 2.5 || snap["s"] != "x" {
		t.Errorf("Snapshot = %v", snap)
	}

	if err := fs.Edit("n", "abc"); !errors.HasCode(err, errors.CodeProtocol) {
		t.Errorf("bad edit err = %v", err)
	}
	if err := fs.Edit("missing", 1); !errors.HasCode(err, errors.CodeProtocol) {
		t.Errorf("unknown field err = %v", err)
	}

	if err := fs.Edit("n", math.NaN()); err != nil {
		t.Fatal(err)
	}
	if got := fs.Snapshot()["n"]; got != "NaN" {
		t.Errorf("NaN snapshot = %v", got)
	}
}

func TestDecodeValue(t *testing.T) {
	if v, err := decodeValue(nil); v != nil || err != nil {
		t.Errorf("empty = %v, %v", v, err)
	}
	if v, err := decodeValue(json.RawMessage("null")); v != nil || err != nil {
		t.Errorf("null = %v, %v", v, err)
	}
	if _, err := decodeValue(json.RawMessage("{")); err == nil {
		t.Error("expected decode error")
	}
}
