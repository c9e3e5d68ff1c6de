// Package wshost hosts deep-linked views for browsers connected over a
// WebSocket.
//
// The browser owns the address bar; the server owns the view. Each
// connection is a Session with its own chihost.Location and, while the
// current route declares synchronization, one deeplink.Sync. Messages are
// JSON objects with a "type" field.
//
// Client to server:
//
//	{"type":"location","url":"/users/42/detail?tab=profile"}  address bar changed
//	{"type":"edit","field":"tab","value":"settings"}          user edited a field
//	{"type":"ack","id":"01H...","error":""}                   navigation answered
//
// Server to client:
//
//	{"type":"navigate","id":"01H...","url":"/users/42/detail?tab=settings"}
//	{"type":"state","url":"...","route":"...","view":"...","fields":{...},"types":{...}}
//	{"type":"error","code":"E301","message":"..."}
//
// The browser answers every navigate with an ack carrying the same id once
// it has pushed the URL, or an error when it refused. Only then does the
// server treat the URL as shown and feed it back into the view.
package wshost

import "encoding/json"

// Client message types.
const (
	TypeLocation = "location"
	TypeEdit     = "edit"
	TypeAck      = "ack"
)

// Server message types.
const (
	TypeNavigate = "navigate"
	TypeState    = "state"
	TypeError    = "error"
)

// ClientMessage is a message sent by the browser.
type ClientMessage struct {
	Type  string          `json:"type"`
	URL   string          `json:"url,omitempty"`
	ID    string          `json:"id,omitempty"`
	Field string          `json:"field,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ServerMessage is a message sent to the browser.
type ServerMessage struct {
	Type    string            `json:"type"`
	ID      string            `json:"id,omitempty"`
	URL     string            `json:"url,omitempty"`
	Route   string            `json:"route,omitempty"`
	View    string            `json:"view,omitempty"`
	Fields  map[string]any    `json:"fields,omitempty"`
	Types   map[string]string `json:"types,omitempty"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
}

// decodeValue decodes an edit value. A missing value is nil.
func decodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
