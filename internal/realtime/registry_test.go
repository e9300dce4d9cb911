package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeSocket struct {
	mu       sync.Mutex
	frames   [][]byte
	writeErr error
	closed   bool
}

func (s *fakeSocket) WriteMessage(_ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// lastFrame decodes the most recent frame written to the socket.
func (s *fakeSocket) lastFrame(t *testing.T) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		t.Fatal("no frames written")
	}
	var m map[string]any
	if err := json.Unmarshal(s.frames[len(s.frames)-1], &m); err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	return m
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistrySendToMultipleConnections(t *testing.T) {
	r := NewRegistry("realtime", testLogger())

	s1, s2 := &fakeSocket{}, &fakeSocket{}
	r.Add("u1", s1)
	r.Add("u1", s2)

	if got := r.SendTo("u1", "test", Message{Type: "test"}); got != 2 {
		t.Fatalf("SendTo wrote %d sockets, want 2", got)
	}
	if s1.frameCount() != 1 || s2.frameCount() != 1 {
		t.Fatalf("frames = %d/%d, want 1/1", s1.frameCount(), s2.frameCount())
	}
}

func TestRegistrySendToUnknownUser(t *testing.T) {
	r := NewRegistry("realtime", testLogger())
	if got := r.SendTo("nobody", "test", Message{Type: "test"}); got != 0 {
		t.Fatalf("SendTo = %d, want 0", got)
	}
}

func TestRegistrySendToAll(t *testing.T) {
	r := NewRegistry("realtime", testLogger())
	s1, s2, s3 := &fakeSocket{}, &fakeSocket{}, &fakeSocket{}
	r.Add("u1", s1)
	r.Add("u2", s2)
	r.Add("u2", s3)

	if got := r.SendToAll("test", Message{Type: "test"}); got != 3 {
		t.Fatalf("SendToAll = %d, want 3", got)
	}
}

func TestRegistryWriteFailureDropsConnection(t *testing.T) {
	r := NewRegistry("realtime", testLogger())

	bad := &fakeSocket{writeErr: errors.New("broken pipe")}
	good := &fakeSocket{}
	r.Add("u1", bad)
	r.Add("u1", good)

	if got := r.SendTo("u1", "test", Message{Type: "test"}); got != 1 {
		t.Fatalf("SendTo = %d, want 1", got)
	}
	if !bad.isClosed() {
		t.Error("failed socket was not closed")
	}
	if got := r.ConnectionCount(); got != 1 {
		t.Errorf("ConnectionCount = %d, want 1", got)
	}

	// The surviving socket still receives.
	if got := r.SendTo("u1", "test", Message{Type: "test"}); got != 1 {
		t.Fatalf("SendTo after drop = %d, want 1", got)
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry("realtime", testLogger())

	removed := 0
	r.OnRemove(func(*Conn, bool) { removed++ })

	c := r.Add("u1", &fakeSocket{})
	r.Remove(c)
	r.Remove(c)

	if removed != 1 {
		t.Errorf("OnRemove fired %d times, want 1", removed)
	}
	if got := r.ConnectionCount(); got != 0 {
		t.Errorf("ConnectionCount = %d, want 0", got)
	}
}

func TestRegistryHookFirstAndLastFlags(t *testing.T) {
	r := NewRegistry("realtime", testLogger())

	var adds, removes []bool
	r.OnAdd(func(_ *Conn, first bool) { adds = append(adds, first) })
	r.OnRemove(func(_ *Conn, last bool) { removes = append(removes, last) })

	c1 := r.Add("u1", &fakeSocket{})
	c2 := r.Add("u1", &fakeSocket{})
	r.Remove(c1)
	r.Remove(c2)

	wantAdds := []bool{true, false}
	wantRemoves := []bool{false, true}
	for i := range wantAdds {
		if adds[i] != wantAdds[i] {
			t.Errorf("onAdd[%d] first = %v, want %v", i, adds[i], wantAdds[i])
		}
	}
	for i := range wantRemoves {
		if removes[i] != wantRemoves[i] {
			t.Errorf("onRemove[%d] last = %v, want %v", i, removes[i], wantRemoves[i])
		}
	}
}

func TestRegistrySweepReapsStale(t *testing.T) {
	r := NewRegistry("realtime", testLogger())
	clock := time.Now()
	r.now = func() time.Time { return clock }

	stale := &fakeSocket{}
	fresh := &fakeSocket{}
	r.Add("u1", stale)
	clock = clock.Add(45 * time.Second)
	c2 := r.Add("u2", fresh)
	clock = clock.Add(30 * time.Second)

	// u1 is 75s old, u2 is 30s old.
	if got := r.Sweep(60 * time.Second); got != 1 {
		t.Fatalf("Sweep = %d, want 1", got)
	}
	if !stale.isClosed() {
		t.Error("stale socket was not closed")
	}
	if fresh.isClosed() {
		t.Error("fresh socket was closed")
	}

	// A heartbeat keeps u2 alive through the next sweep.
	clock = clock.Add(45 * time.Second)
	r.Touch(c2)
	clock = clock.Add(30 * time.Second)
	if got := r.Sweep(60 * time.Second); got != 0 {
		t.Fatalf("Sweep after touch = %d, want 0", got)
	}
}

func TestRegistryConnectedUsers(t *testing.T) {
	r := NewRegistry("realtime", testLogger())
	r.Add("u1", &fakeSocket{})
	r.Add("u1", &fakeSocket{})
	c := r.Add("u2", &fakeSocket{})

	if got := len(r.ConnectedUsers()); got != 2 {
		t.Fatalf("ConnectedUsers = %d, want 2", got)
	}
	r.Remove(c)
	users := r.ConnectedUsers()
	if len(users) != 1 || users[0] != "u1" {
		t.Fatalf("ConnectedUsers = %v, want [u1]", users)
	}
}

func TestRegistryConcurrentSendAndRemove(t *testing.T) {
	r := NewRegistry("realtime", testLogger())

	conns := make([]*Conn, 0, 20)
	for i := 0; i < 20; i++ {
		conns = append(conns, r.Add("u1", &fakeSocket{}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.SendTo("u1", "test", Message{Type: "test"})
		}()
		c := conns[i]
		go func() {
			defer wg.Done()
			r.Remove(c)
		}()
	}
	wg.Wait()

	if got := r.ConnectionCount(); got != 10 {
		t.Fatalf("ConnectionCount = %d, want 10", got)
	}
}
