package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"betlive/internal/metrics"
)

const writeWait = 10 * time.Second

// Socket is the subset of *websocket.Conn the registry writes to.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const textMessage = 1 // websocket.TextMessage, kept here so fakes need no gorilla import

// Conn is one authenticated live socket belonging to a user. A user may hold
// any number of simultaneous connections (multi-device); each is registered
// and torn down independently.
type Conn struct {
	id     string
	userID string
	sock   Socket

	// writeMu serializes socket writes; gorilla allows one writer at a time.
	writeMu sync.Mutex

	// lastLive is guarded by the owning registry's mutex.
	lastLive time.Time

	closed atomic.Bool
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// UserID returns the verified identity this connection belongs to.
func (c *Conn) UserID() string { return c.userID }

func (c *Conn) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
	return c.sock.WriteMessage(textMessage, payload)
}

// Registry tracks live connections keyed by user identity. It is shared by
// the topic channel and the notification channel; all map mutations go
// through its mutex so the two reader/writer goroutines per socket and the
// sweeper never race.
type Registry struct {
	channel string // metrics/log label: "realtime" or "notifications"
	log     *slog.Logger

	mu     sync.Mutex
	byUser map[string]map[*Conn]struct{}

	// onRemove hooks run after a connection leaves the registry. The hub uses
	// one to cascade subscription teardown; server wiring adds presence.
	onRemove []func(c *Conn, lastForUser bool)
	onAdd    []func(c *Conn, firstForUser bool)

	now func() time.Time
}

// NewRegistry creates an empty registry for the named channel.
func NewRegistry(channel string, log *slog.Logger) *Registry {
	return &Registry{
		channel: channel,
		log:     log,
		byUser:  make(map[string]map[*Conn]struct{}),
		now:     time.Now,
	}
}

// OnAdd appends a hook invoked after each successful registration.
// Hooks must be installed before the registry starts serving connections.
func (r *Registry) OnAdd(fn func(c *Conn, firstForUser bool)) {
	r.onAdd = append(r.onAdd, fn)
}

// OnRemove appends a hook invoked after each removal.
func (r *Registry) OnRemove(fn func(c *Conn, lastForUser bool)) {
	r.onRemove = append(r.onRemove, fn)
}

// Add registers a new connection for userID. Registration never fails;
// repeated registrations for the same user create independent entries.
func (r *Registry) Add(userID string, sock Socket) *Conn {
	c := &Conn{
		id:     uuid.New().String(),
		userID: userID,
		sock:   sock,
	}

	r.mu.Lock()
	c.lastLive = r.now()
	conns := r.byUser[userID]
	if conns == nil {
		conns = make(map[*Conn]struct{})
		r.byUser[userID] = conns
	}
	first := len(conns) == 0
	conns[c] = struct{}{}
	r.mu.Unlock()

	metrics.Connections.WithLabelValues(r.channel).Inc()
	r.log.Info("connection registered", "channel", r.channel, "connID", c.id, "userID", userID)
	for _, fn := range r.onAdd {
		fn(c, first)
	}
	return c
}

// Touch records a heartbeat for c. No-op once the connection is removed.
func (r *Registry) Touch(c *Conn) {
	if c.closed.Load() {
		return
	}
	r.mu.Lock()
	c.lastLive = r.now()
	r.mu.Unlock()
}

// SendTo serializes payload once and writes it to every live socket owned by
// userID. A user with zero connections is a no-op. A failed write tears the
// connection down immediately; write failure is a stronger disconnect signal
// than the heartbeat timeout. Returns the number of sockets written.
func (r *Registry) SendTo(userID string, kind string, payload any) int {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.byUser[userID]))
	for c := range r.byUser[userID] {
		conns = append(conns, c)
	}
	r.mu.Unlock()
	return r.writeAll(conns, kind, payload)
}

// SendToAll writes payload to every connection on this channel.
func (r *Registry) SendToAll(kind string, payload any) int {
	r.mu.Lock()
	var conns []*Conn
	for _, set := range r.byUser {
		for c := range set {
			conns = append(conns, c)
		}
	}
	r.mu.Unlock()
	return r.writeAll(conns, kind, payload)
}

func (r *Registry) writeAll(conns []*Conn, kind string, payload any) int {
	if len(conns) == 0 {
		return 0
	}
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Error("marshal outbound message", "channel", r.channel, "type", kind, "error", err)
		return 0
	}
	sent := 0
	for _, c := range conns {
		if c.closed.Load() {
			continue // already dead, the sweep or close path owns it
		}
		if err := c.write(data); err != nil {
			r.log.Warn("send failed, dropping connection",
				"channel", r.channel, "connID", c.id, "userID", c.userID, "error", err)
			metrics.SendFailures.WithLabelValues(r.channel).Inc()
			r.Remove(c)
			continue
		}
		sent++
	}
	if sent > 0 {
		metrics.MessagesSent.WithLabelValues(r.channel, kind).Add(float64(sent))
	}
	return sent
}

// Remove closes the socket and drops the connection from the registry.
// Idempotent; safe to call from the read loop, a failed write, and the
// sweeper at once.
func (r *Registry) Remove(c *Conn) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	r.mu.Lock()
	conns := r.byUser[c.userID]
	delete(conns, c)
	last := len(conns) == 0
	if last {
		delete(r.byUser, c.userID)
	}
	r.mu.Unlock()

	_ = c.sock.Close()
	metrics.Connections.WithLabelValues(r.channel).Dec()
	r.log.Info("connection removed", "channel", r.channel, "connID", c.id, "userID", c.userID)
	for _, fn := range r.onRemove {
		fn(c, last)
	}
}

// Sweep removes every connection whose last heartbeat is older than
// staleTimeout. This is the only mechanism that reclaims connections whose
// close event was lost. Returns the number reclaimed.
func (r *Registry) Sweep(staleTimeout time.Duration) int {
	cutoff := r.now().Add(-staleTimeout)

	r.mu.Lock()
	var stale []*Conn
	for _, set := range r.byUser {
		for c := range set {
			if c.lastLive.Before(cutoff) {
				stale = append(stale, c)
			}
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		r.log.Info("reaping stale connection", "channel", r.channel, "connID", c.id, "userID", c.userID)
		r.Remove(c)
	}
	if n := len(stale); n > 0 {
		metrics.StaleReaped.WithLabelValues(r.channel).Add(float64(n))
		return n
	}
	return 0
}

// Run sweeps on a fixed interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, staleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(staleTimeout)
		}
	}
}

// ConnectionCount returns the number of live connections.
func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, set := range r.byUser {
		n += len(set)
	}
	return n
}

// ConnectedUsers returns the identities with at least one live connection.
func (r *Registry) ConnectedUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		users = append(users, u)
	}
	return users
}
