package hmr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startTestServer(t *testing.T, h *Channel) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.Upgrade(w, r); err != nil {
			t.Errorf("upgrade: %v", err)
		}
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{Subprotocols: []string{Subprotocol}}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &m
}

func TestClientReceivesConnectedGreeting(t *testing.T) {
	h := NewChannel()
	srv, wsURL := startTestServer(t, h)
	defer srv.Close()

	conn := dial(t, wsURL)
	defer conn.Close()

	m := readMessage(t, conn)
	if m.Type != TypeConnected {
		t.Fatalf("expected connected greeting, got %v", m.Type)
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h := NewChannel()
	srv, wsURL := startTestServer(t, h)
	defer srv.Close()

	conn1 := dial(t, wsURL)
	defer conn1.Close()
	conn2 := dial(t, wsURL)
	defer conn2.Close()

	readMessage(t, conn1)
	readMessage(t, conn2)

	h.Broadcast(FullReload(""))

	m1 := readMessage(t, conn1)
	m2 := readMessage(t, conn2)
	if m1.Type != TypeFullReload || m2.Type != TypeFullReload {
		t.Fatalf("expected full-reload on both, got %v %v", m1.Type, m2.Type)
	}
}

func TestErrorBufferedUntilClientConnects(t *testing.T) {
	h := NewChannel()
	h.Broadcast(ErrorMessage(&ErrorPayload{Message: "boom"}))

	srv, wsURL := startTestServer(t, h)
	defer srv.Close()
	conn := dial(t, wsURL)
	defer conn.Close()

	greeting := readMessage(t, conn)
	if greeting.Type != TypeConnected {
		t.Fatalf("expected greeting first, got %v", greeting.Type)
	}
	errMsg := readMessage(t, conn)
	if errMsg.Type != TypeError || errMsg.Err == nil || errMsg.Err.Message != "boom" {
		t.Fatalf("expected buffered error replay, got %+v", errMsg)
	}
}
