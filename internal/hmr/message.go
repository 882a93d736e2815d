// Package hmr implements the websocket message channel between the dev
// server and the browser client runtime: connection upgrade, a typed
// JSON wire protocol, and per-connection message ordering.
//
// Connection bookkeeping keeps a map of *websocket.Conn to per-connection
// state, guarded by a RWMutex, with a background goroutine pushing
// updates over a tagged JSON union so the browser runtime can dispatch
// on a real Type field.
package hmr

// MessageType tags the wire payload's shape.
type MessageType string

const (
	TypeConnected  MessageType = "connected"
	TypeUpdate     MessageType = "update"
	TypeFullReload MessageType = "full-reload"
	TypePrune      MessageType = "prune"
	TypeError      MessageType = "error"
	TypeCustom     MessageType = "custom"
	TypePing       MessageType = "ping"
)

// UpdateKind distinguishes a boundary update that needs an inline
// replacement module fetched (js) from one satisfied by swapping a
// stylesheet's href (css).
type UpdateKind string

const (
	UpdateJS  UpdateKind = "js-update"
	UpdateCSS UpdateKind = "css-update"
)

// Update describes one HMR boundary replacement within an "update" message.
type Update struct {
	Kind         UpdateKind `json:"type"`
	Path         string     `json:"path"`
	AcceptedPath string     `json:"acceptedPath"`
	Timestamp    int64      `json:"timestamp"`
}

// ErrorPayload is the shape the client runtime's overlay expects.
type ErrorPayload struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	Frame   string `json:"frame,omitempty"`
	Id      string `json:"id,omitempty"`
}

// Message is the envelope sent over the wire in both directions. Only
// the fields relevant to Type are populated.
type Message struct {
	Type    MessageType   `json:"type"`
	Updates []Update      `json:"updates,omitempty"`
	Paths   []string      `json:"paths,omitempty"`
	Err     *ErrorPayload `json:"err,omitempty"`
	Event   string        `json:"event,omitempty"`
	Data    any           `json:"data,omitempty"`
}

// Connected builds the greeting sent immediately after a client upgrades.
func Connected() *Message {
	return &Message{Type: TypeConnected}
}

// UpdateMessage builds an "update" message for one or more boundaries.
func UpdateMessage(updates []Update) *Message {
	return &Message{Type: TypeUpdate, Updates: updates}
}

// FullReload builds a "full-reload" message. A non-empty path is carried
// in Paths; the client runtime does not read Paths, so every full-reload
// reloads whatever page the client is on.
func FullReload(path string) *Message {
	m := &Message{Type: TypeFullReload}
	if path != "" {
		m.Paths = []string{path}
	}
	return m
}

// Prune builds a "prune" message listing module URLs no longer reachable
// from any importer.
func Prune(urls []string) *Message {
	return &Message{Type: TypePrune, Paths: urls}
}

// ErrorMessage builds an "error" message carrying the overlay payload.
func ErrorMessage(p *ErrorPayload) *Message {
	return &Message{Type: TypeError, Err: p}
}

// Ping builds a keep-alive message.
func Ping() *Message {
	return &Message{Type: TypePing}
}
