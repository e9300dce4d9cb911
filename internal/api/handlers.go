package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"betlive/internal/realtime"
)

// HealthHandler reports process liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports readiness; checks redis when presence is configured.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Presence.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// StatsHandler serves the aggregate diagnostics snapshot: hub stats,
// notification-channel counts, and online users from presence if enabled.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.Hub.Stats()
	out := map[string]any{
		"realtime": stats,
		"notifications": map[string]any{
			"connections":    s.Notifier.ConnectionCount(),
			"connectedUsers": s.Notifier.ConnectedUsers(),
		},
	}
	if s.Presence != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if online, err := s.Presence.OnlineUsers(ctx); err == nil {
			out["onlineUsers"] = online
		} else {
			s.Log.Warn("presence scan failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type betEventRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BetEventsHandler lets the settlement/odds service push a bet event to
// subscribers: POST /v1/bets/{betID}/events {type, data}.
func (s *Server) BetEventsHandler(w http.ResponseWriter, r *http.Request) {
	betID := chi.URLParam(r, "betID")
	var req betEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error(), r.URL.Path)
		return
	}
	if !realtime.ValidBetEvent(req.Type) {
		writeProblem(w, http.StatusBadRequest, "Unknown event type", req.Type, r.URL.Path)
		return
	}

	switch req.Type {
	case realtime.BetEventOddsChange:
		var data struct {
			NewOdds json.RawMessage `json:"newOdds"`
		}
		if err := json.Unmarshal(req.Data, &data); err != nil || len(data.NewOdds) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid data", "newOdds required", r.URL.Path)
			return
		}
		s.Hub.NotifyBetOddsChange(betID, data.NewOdds)
	case realtime.BetEventNewEntry:
		var data struct {
			Entry json.RawMessage `json:"entry"`
		}
		if err := json.Unmarshal(req.Data, &data); err != nil || len(data.Entry) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid data", "entry required", r.URL.Path)
			return
		}
		s.Hub.NotifyNewBetEntry(betID, data.Entry)
	case realtime.BetEventPoolUpdate:
		var data struct {
			PoolTotal *float64 `json:"poolTotal"`
		}
		if err := json.Unmarshal(req.Data, &data); err != nil || data.PoolTotal == nil {
			writeProblem(w, http.StatusBadRequest, "Invalid data", "poolTotal required", r.URL.Path)
			return
		}
		s.Hub.NotifyPoolUpdate(betID, *data.PoolTotal)
	case realtime.BetEventStatusChange:
		var data struct {
			NewStatus string `json:"newStatus"`
		}
		if err := json.Unmarshal(req.Data, &data); err != nil || data.NewStatus == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid data", "newStatus required", r.URL.Path)
			return
		}
		s.Hub.NotifyBetStatusChange(betID, data.NewStatus)
	case realtime.BetEventResult:
		var data struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(req.Data, &data); err != nil || len(data.Result) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid data", "result required", r.URL.Path)
			return
		}
		s.Hub.NotifyBetResult(betID, data.Result)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type activityRequest struct {
	UserID string          `json:"userId"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

// ActivityHandler publishes a user action to the public activity feed.
func (s *Server) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error(), r.URL.Path)
		return
	}
	if req.UserID == "" || req.Type == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "userId and type required", r.URL.Path)
		return
	}
	s.Hub.NotifyUserActivity(req.UserID, req.Type, req.Data)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type notificationRequest struct {
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// UserNotificationHandler pushes a typed notification to one user on the
// notification channel.
func (s *Server) UserNotificationHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error(), r.URL.Path)
		return
	}
	if !realtime.ValidNotificationType(req.Type) {
		writeProblem(w, http.StatusBadRequest, "Unknown notification type", req.Type, r.URL.Path)
		return
	}

	switch req.Type {
	case realtime.NotificationBetUpdate:
		betID, _ := req.Data["betId"].(string)
		if betID == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid data", "data.betId required", r.URL.Path)
			return
		}
		s.Notifier.SendBetUpdate(userID, betID, req.Message, req.Data)
	case realtime.NotificationClubInvite:
		clubID, _ := req.Data["clubId"].(string)
		clubName, _ := req.Data["clubName"].(string)
		inviter, _ := req.Data["inviterName"].(string)
		if clubID == "" || clubName == "" || inviter == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid data",
				"data.clubId, data.clubName and data.inviterName required", r.URL.Path)
			return
		}
		s.Notifier.SendClubInvite(userID, clubID, clubName, inviter)
	case realtime.NotificationWalletTransaction:
		amount, ok := req.Data["amount"].(float64)
		txType, _ := req.Data["type"].(string)
		if !ok || txType == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid data",
				"data.amount and data.type required", r.URL.Path)
			return
		}
		s.Notifier.SendWalletTransaction(userID, amount, txType, req.Message)
	case realtime.NotificationSystem:
		if req.Title == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid data", "title required", r.URL.Path)
			return
		}
		s.Notifier.SendSystemNotification(userID, req.Title, req.Message)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// BroadcastNotificationHandler pushes a system announcement to every
// connected user on the notification channel.
func (s *Server) BroadcastNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error(), r.URL.Path)
		return
	}
	if req.Title == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "title required", r.URL.Path)
		return
	}
	s.Notifier.SendToAll(realtime.Notification{
		Type:    realtime.NotificationSystem,
		Title:   req.Title,
		Message: req.Message,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
