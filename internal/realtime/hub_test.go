package realtime

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

type fakeConn struct {
	written  []Envelope
	writeErr error
	closed   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, v.(Envelope))
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPushToConnectedUser(t *testing.T) {
	h := testHub()
	conn := &fakeConn{}
	h.Register(7, conn)

	if !h.PushToUser(7, "new-notification", "payload") {
		t.Fatal("push to connected user should succeed")
	}
	if len(conn.written) != 1 {
		t.Fatalf("written = %d, want 1", len(conn.written))
	}
	if env := conn.written[0]; env.Event != "new-notification" || env.Payload != "payload" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestPushToDisconnectedUser(t *testing.T) {
	h := testHub()
	if h.PushToUser(7, "new-notification", nil) {
		t.Fatal("push to absent user should report undelivered")
	}
}

func TestRegisterReplacesPreviousConnection(t *testing.T) {
	h := testHub()
	first := &fakeConn{}
	second := &fakeConn{}

	h.Register(7, first)
	h.Register(7, second)

	if !first.closed {
		t.Error("replaced connection should be closed")
	}
	h.PushToUser(7, "event", nil)
	if len(first.written) != 0 || len(second.written) != 1 {
		t.Errorf("pushes went to the wrong connection: first=%d second=%d",
			len(first.written), len(second.written))
	}
}

func TestUnregisterOnlyRemovesOwnConnection(t *testing.T) {
	h := testHub()
	first := &fakeConn{}
	second := &fakeConn{}

	h.Register(7, first)
	h.Register(7, second)
	// The stale goroutine of the replaced connection unregisters late.
	h.Unregister(7, first)

	if !h.PushToUser(7, "event", nil) {
		t.Fatal("current connection should still be registered")
	}
}

func TestWriteFailureDropsConnection(t *testing.T) {
	h := testHub()
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	h.Register(7, conn)

	if h.PushToUser(7, "event", nil) {
		t.Fatal("failed write should report undelivered")
	}
	if !conn.closed {
		t.Error("failed connection should be closed")
	}
	if ids := h.ConnectedUserIDs(); len(ids) != 0 {
		t.Errorf("connected users = %v, want none", ids)
	}
}

func TestConnectedUserIDs(t *testing.T) {
	h := testHub()
	h.Register(1, &fakeConn{})
	h.Register(2, &fakeConn{})

	ids := h.ConnectedUserIDs()
	if len(ids) != 2 {
		t.Fatalf("connected users = %v, want 2 entries", ids)
	}
	seen := map[int64]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[1] || !seen[2] {
		t.Errorf("connected users = %v, want both 1 and 2", ids)
	}
}
