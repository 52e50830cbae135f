package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gonet "github.com/l1jgo/nety/internal/net"
	"go.uber.org/zap"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocketRoundTrip(t *testing.T) {
	log := zap.NewNop()
	h := NewHandler(gonet.DefaultOptions(), log)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { h.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := Dial(context.Background(), url, gonet.DefaultOptions(), log)

	var client gonet.Socket
	waitFor(t, "dial", func() bool {
		st, s := c.Status()
		if st == gonet.StatusFailed {
			t.Fatal("dial failed")
		}
		client = s
		return st == gonet.StatusConnected
	})
	t.Cleanup(client.Disconnect)

	var server gonet.Socket
	waitFor(t, "accept", func() bool {
		s, ok := h.Accept()
		server = s
		return ok
	})

	client.Send([]byte{1, 2, 3})
	var got []byte
	waitFor(t, "message", func() bool {
		var ok bool
		got, ok = server.Receive()
		return ok
	})
	if len(got) != 3 || got[2] != 3 {
		t.Fatalf("server got %v", got)
	}

	server.Disconnect()
	waitFor(t, "client notices close", func() bool { return !client.Connected() })
}

func TestWebsocketDialFailure(t *testing.T) {
	c := Dial(context.Background(), "ws://127.0.0.1:1/none", gonet.DefaultOptions(), zap.NewNop())
	waitFor(t, "failure", func() bool {
		st, _ := c.Status()
		return st == gonet.StatusFailed
	})
}
