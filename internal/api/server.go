// Package api implements the HTTP and WebSocket surface of the realtime
// service: the two client-facing socket endpoints, the service-facing event
// ingest API, and diagnostics.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	redis "github.com/redis/go-redis/v9"

	"betlive/internal/auth"
	"betlive/internal/config"
	"betlive/internal/metrics"
	"betlive/internal/presence"
	"betlive/internal/realtime"
)

// Server wires the realtime core to its transport. The hub and notifier own
// all connection state; handlers only translate between the wire and their
// public methods.
type Server struct {
	Cfg      *config.Config
	Log      *slog.Logger
	Auth     *auth.Verifier
	Hub      *realtime.Hub
	Notifier *realtime.Notifier
	Presence *presence.Tracker

	upgrader websocket.Upgrader
}

// NewServer builds a fully wired server. rdb may be nil; presence is then
// disabled.
func NewServer(cfg *config.Config, log *slog.Logger, rdb *redis.Client) (*Server, error) {
	verifier, err := auth.NewVerifier(cfg.AuthMode, cfg.AuthHMACSecret)
	if err != nil {
		return nil, fmt.Errorf("configuring auth: %w", err)
	}
	metrics.RegisterDefault()

	s := &Server{
		Cfg:      cfg,
		Log:      log,
		Auth:     verifier,
		Hub:      realtime.NewHub(log),
		Notifier: realtime.NewNotifier(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowOrigins),
		},
	}

	if rdb != nil {
		// Presence TTL outlives the stale cutoff so keys never expire under a
		// live connection between refresh ticks.
		s.Presence = presence.New(rdb, cfg.StaleTimeout+cfg.SweepInterval, log)
		for _, reg := range []*realtime.Registry{s.Hub.Registry(), s.Notifier.Registry()} {
			reg.OnAdd(func(c *realtime.Conn, first bool) {
				if first {
					s.Presence.Online(c.UserID())
				}
			})
			reg.OnRemove(func(c *realtime.Conn, last bool) {
				if last && !s.connectedAnywhere(c.UserID()) {
					s.Presence.Offline(c.UserID())
				}
			})
		}
	}
	return s, nil
}

// connectedAnywhere reports whether userID still holds a connection on
// either channel.
func (s *Server) connectedAnywhere(userID string) bool {
	for _, u := range s.Hub.Stats().ConnectedUsers {
		if u == userID {
			return true
		}
	}
	for _, u := range s.Notifier.ConnectedUsers() {
		if u == userID {
			return true
		}
	}
	return false
}

// connectedUserIDs returns the union of connected users across channels,
// for the presence refresh loop.
func (s *Server) connectedUserIDs() []string {
	seen := map[string]struct{}{}
	for _, u := range s.Hub.Stats().ConnectedUsers {
		seen[u] = struct{}{}
	}
	for _, u := range s.Notifier.ConnectedUsers() {
		seen[u] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	return out
}

// PresenceRefresh runs the presence TTL refresh loop; no-op without redis.
func (s *Server) PresenceRefresh() (func() []string, bool) {
	if s.Presence == nil {
		return nil, false
	}
	return s.connectedUserIDs, true
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients
		}
		_, ok := set[origin]
		return ok
	}
}
