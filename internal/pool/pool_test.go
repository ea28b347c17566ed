package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeConn struct {
	events   []Event
	writeErr error
	closed   bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.events = append(c.events, v.(Event))
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestSendToUserDeliversToAllConnections(t *testing.T) {
	p := NewPool()
	first := &fakeConn{}
	second := &fakeConn{}
	p.AddClient(7, first)
	p.AddClient(7, second)

	if !p.SendToUser(7, "unread_badge", map[string]int{"total": 3}) {
		t.Fatal("expected delivery to a connected user")
	}
	for i, conn := range []*fakeConn{first, second} {
		if len(conn.events) != 1 {
			t.Fatalf("connection %d: expected 1 event, got %d", i, len(conn.events))
		}
		if conn.events[0].Event != "unread_badge" {
			t.Fatalf("connection %d: unexpected event %q", i, conn.events[0].Event)
		}
	}
}

func TestSendToUserAbsentUser(t *testing.T) {
	p := NewPool()
	if p.SendToUser(42, "private_message", nil) {
		t.Fatal("expected no delivery for a user with no connections")
	}
}

func TestSendToUserEvictsFailedConnection(t *testing.T) {
	p := NewPool()
	good := &fakeConn{}
	bad := &fakeConn{writeErr: errors.New("broken pipe")}
	p.AddClient(7, good)
	p.AddClient(7, bad)

	if !p.SendToUser(7, "group_message", nil) {
		t.Fatal("expected delivery through the healthy connection")
	}
	if !bad.closed {
		t.Fatal("failed connection must be closed")
	}

	// the evicted connection is gone; only the healthy one remains
	if !p.SendToUser(7, "group_message", nil) {
		t.Fatal("expected delivery after eviction")
	}
	if len(good.events) != 2 {
		t.Fatalf("expected 2 events on the healthy connection, got %d", len(good.events))
	}
	p.mu.Lock()
	remaining := len(p.clients[7])
	p.mu.Unlock()
	if remaining != 1 {
		t.Fatalf("expected 1 remaining connection, got %d", remaining)
	}
}

func TestRemoveClient(t *testing.T) {
	p := NewPool()
	conn := &fakeConn{}
	client := p.AddClient(7, conn)

	p.RemoveClient(client)
	if p.SendToUser(7, "unread_badge", nil) {
		t.Fatal("expected no delivery after removal")
	}

	// removing twice is harmless
	p.RemoveClient(client)
}

func TestSendToClient(t *testing.T) {
	p := NewPool()
	first := &fakeConn{}
	second := &fakeConn{}
	client := p.AddClient(7, first)
	p.AddClient(7, second)

	if !p.SendToClient(client, "error", map[string]string{"message": "bad request"}) {
		t.Fatal("expected delivery to the live connection")
	}
	if len(first.events) != 1 || first.events[0].Event != "error" {
		t.Fatalf("expected the error event on the target connection, got %v", first.events)
	}
	if len(second.events) != 0 {
		t.Fatal("other connections of the same user must not receive the event")
	}
}

func TestSendToClientEvictsOnFailure(t *testing.T) {
	p := NewPool()
	bad := &fakeConn{writeErr: errors.New("broken pipe")}
	client := p.AddClient(7, bad)

	if p.SendToClient(client, "error", nil) {
		t.Fatal("expected failure on a broken connection")
	}
	if !bad.closed {
		t.Fatal("failed connection must be closed")
	}
	if p.SendToUser(7, "unread_badge", nil) {
		t.Fatal("evicted connection must be gone from the pool")
	}
}

// overlapConn flags any two writers inside WriteJSON at the same time.
type overlapConn struct {
	inFlight int32
	overlaps int32
}

func (c *overlapConn) WriteJSON(v interface{}) error {
	if atomic.AddInt32(&c.inFlight, 1) > 1 {
		atomic.AddInt32(&c.overlaps, 1)
	}
	time.Sleep(time.Millisecond)
	atomic.AddInt32(&c.inFlight, -1)
	return nil
}

func (c *overlapConn) Close() error { return nil }

// A connection is written both by user-targeted pushes and by direct acks
// to that connection; the two paths must never write it concurrently.
func TestWritePathsAreSerialized(t *testing.T) {
	p := NewPool()
	conn := &overlapConn{}
	client := p.AddClient(7, conn)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				p.SendToUser(7, "unread_badge", j)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				p.SendToClient(client, "error", map[string]string{"message": "nope"})
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&conn.overlaps); n != 0 {
		t.Fatalf("detected %d concurrent writes on one connection", n)
	}
}

func TestSendToUsers(t *testing.T) {
	p := NewPool()
	first := &fakeConn{}
	second := &fakeConn{}
	p.AddClient(1, first)
	p.AddClient(2, second)

	p.SendToUsers([]int{1, 2, 3}, "group_messages_read", map[string]int{"group_chat_id": 5})

	for i, conn := range []*fakeConn{first, second} {
		if len(conn.events) != 1 {
			t.Fatalf("connection %d: expected 1 event, got %d", i, len(conn.events))
		}
	}
}
