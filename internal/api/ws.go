package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"betlive/internal/auth"
	"betlive/internal/realtime"
)

const (
	maxControlMessageSize = 4096
	controlWriteWait      = 10 * time.Second
)

// RealtimeWSHandler serves /ws/realtime, the topic-subscription channel.
// The socket is upgraded before verification so an auth failure can be
// reported with a proper close frame (1008 + reason), matching what clients
// of the platform already expect.
func (s *Server) RealtimeWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, pr, ok := s.upgradeAuthenticated(w, r)
	if !ok {
		return
	}

	c := s.Hub.Register(pr.UserID, conn)
	defer s.Hub.Remove(c)

	conn.SetReadLimit(maxControlMessageSize)
	conn.SetPongHandler(func(string) error {
		s.Hub.Touch(c)
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		s.Hub.Touch(c)
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteWait))
	})

	// Inbound budget per connection; a chat flood gets errors, not fan-out.
	lim := rate.NewLimiter(rate.Limit(s.Cfg.ControlRate), s.Cfg.ControlBurst)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.Log.Warn("realtime read error", "userID", pr.UserID, "error", err)
			}
			return
		}
		if !lim.Allow() {
			s.Hub.Notify(pr.UserID, realtime.Message{Type: realtime.TypeError,
				Data: map[string]any{"message": "rate limit exceeded"}})
			continue
		}
		s.Hub.HandleControl(c, raw)
	}
}

// NotificationsWSHandler serves /ws/notifications, the server-push-only
// channel. Client frames are drained solely to observe liveness and close.
func (s *Server) NotificationsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, pr, ok := s.upgradeAuthenticated(w, r)
	if !ok {
		return
	}

	c := s.Notifier.Register(pr.UserID, conn)
	defer s.Notifier.Remove(c)

	conn.SetReadLimit(maxControlMessageSize)
	conn.SetPongHandler(func(string) error {
		s.Notifier.Touch(c)
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		s.Notifier.Touch(c)
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.Log.Warn("notifications read error", "userID", pr.UserID, "error", err)
			}
			return
		}
		// Anything a client sends here counts as a heartbeat.
		s.Notifier.Touch(c)
	}
}

// upgradeAuthenticated upgrades the request and verifies the credential.
// On failure the socket is closed with 1008 and nothing is registered.
func (s *Server) upgradeAuthenticated(w http.ResponseWriter, r *http.Request) (*websocket.Conn, auth.Principal, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return nil, auth.Principal{}, false
	}

	token := bearerToken(r)
	pr, err := s.Auth.Verify(token)
	if err != nil {
		reason := "Invalid token"
		if errors.Is(err, auth.ErrNoToken) {
			reason = "No token provided"
		}
		s.Log.Warn("websocket auth failed", "path", r.URL.Path, "reason", reason)
		closePolicyViolation(conn, reason)
		return nil, auth.Principal{}, false
	}
	return conn, pr, true
}

func closePolicyViolation(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait))
	_ = conn.Close()
}
