package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// assert fails the test if the condition is false.
func assert(tb testing.TB, condition bool, msg string, v ...interface{}) {
	if !condition {
		_, file, line, _ := runtime.Caller(1)
		fmt.Printf("%s:%d: "+msg+"\n\n", append([]interface{}{file, line}, v...)...)
		tb.FailNow()
	}
}

func errNil(tb testing.TB, err error) {
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		fmt.Printf("%s:%d: unexpected error: %s\n\n", file, line, err.Error())
		tb.FailNow()
	}
}

func waitFor(cond func() bool) bool {
	for i := 0; i < 200; i++ {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	errNil(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	errNil(t, err)
	var msg Message
	errNil(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(func() interface{} { return []string{"plant-7"} })
	go hub.Run(ctx)

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	assert(t, waitFor(func() bool { return hub.ClientCount() == 1 }), "client registered")

	snapshot := readMessage(t, conn)
	assert(t, snapshot.Type == "snapshot", "snapshot first, got %s", snapshot.Type)

	hub.Broadcast("evaluation", map[string]interface{}{"chart": "plant-7", "points": 2})
	msg := readMessage(t, conn)
	assert(t, msg.Type == "evaluation", "evaluation message, got %s", msg.Type)
	payload := msg.Payload.(map[string]interface{})
	assert(t, payload["chart"] == "plant-7", "chart payload %v", payload)
	assert(t, payload["points"] == float64(2), "points payload %v", payload)

	conn.Close()
	assert(t, waitFor(func() bool { return hub.ClientCount() == 0 }), "client unregistered")
}

func TestBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	// the hub is not running, broadcasts must not block
	for i := 0; i < 100; i++ {
		hub.Broadcast("evaluation", i)
	}
	assert(t, hub.ClientCount() == 0, "no clients")

	hub.Broadcast("evaluation", func() {})
}

func TestHubShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	server := httptest.NewServer(hub)
	defer server.Close()
	conn := dial(t, server)
	defer conn.Close()
	assert(t, waitFor(func() bool { return hub.ClientCount() == 1 }), "client registered")

	cancel()
	assert(t, waitFor(func() bool { return hub.ClientCount() == 0 }), "clients dropped on shutdown")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert(t, err != nil, "connection closed by the hub")
}
