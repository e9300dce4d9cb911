package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"betlive/internal/metrics"
)

// Hub is the topic-subscription channel: it owns a connection registry and a
// subscription index and fans domain events out to interested users. External
// services drive it through the Notify* helpers and never touch the maps.
type Hub struct {
	reg  *Registry
	subs *SubscriptionIndex
	log  *slog.Logger
	now  func() time.Time
}

// NewHub creates a hub whose registry cascades subscription teardown on
// every connection removal.
func NewHub(log *slog.Logger) *Hub {
	h := &Hub{
		reg:  NewRegistry("realtime", log),
		subs: NewSubscriptionIndex(),
		log:  log,
		now:  time.Now,
	}
	h.reg.OnRemove(func(c *Conn, _ bool) { h.subs.DropAll(c) })
	return h
}

// Registry exposes the underlying registry for lifecycle wiring (presence
// hooks, sweeping). The maps themselves stay private to this package.
func (h *Hub) Registry() *Registry { return h.reg }

// Register adds an authenticated socket and sends the welcome message.
func (h *Hub) Register(userID string, sock Socket) *Conn {
	c := h.reg.Add(userID, sock)
	h.reg.SendTo(userID, TypeConnectionEstablished, Message{
		Type: TypeConnectionEstablished,
		Data: map[string]any{"userId": userID, "timestamp": h.now().UnixMilli()},
	})
	return c
}

// Touch records a heartbeat for c.
func (h *Hub) Touch(c *Conn) { h.reg.Touch(c) }

// Remove tears down c and its subscriptions.
func (h *Hub) Remove(c *Conn) { h.reg.Remove(c) }

// Run sweeps stale connections until ctx is done.
func (h *Hub) Run(ctx context.Context, interval, staleTimeout time.Duration) {
	h.reg.Run(ctx, interval, staleTimeout)
}

// HandleControl processes one client control frame. Malformed or unknown
// frames are logged and ignored; the connection stays open. Only a chat send
// with missing fields is answered with an explicit error message.
func (h *Hub) HandleControl(c *Conn, raw []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.log.Warn("unparsable control message", "connID", c.id, "userID", c.userID, "error", err)
		return
	}

	switch msg.Type {
	case ctlSubscribeBet:
		if msg.BetID == "" {
			h.log.Warn("subscribe_bet without betId", "userID", c.userID)
			return
		}
		h.subs.Subscribe(c, BetTopic(msg.BetID))
		h.notifyConn(c, Message{Type: TypeSubscriptionConfirmed,
			Data: map[string]any{"betId": msg.BetID, "subscription": "bet"}})
	case ctlUnsubscribeBet:
		if msg.BetID == "" {
			return
		}
		h.subs.Unsubscribe(c, BetTopic(msg.BetID))
		h.notifyConn(c, Message{Type: TypeUnsubscriptionConfirmed,
			Data: map[string]any{"betId": msg.BetID, "subscription": "bet"}})
	case ctlSubscribeClub:
		if msg.ClubID == "" {
			h.log.Warn("subscribe_club without clubId", "userID", c.userID)
			return
		}
		h.subs.Subscribe(c, ClubTopic(msg.ClubID))
		h.notifyConn(c, Message{Type: TypeSubscriptionConfirmed,
			Data: map[string]any{"clubId": msg.ClubID, "subscription": "club"}})
	case ctlUnsubscribeClub:
		if msg.ClubID == "" {
			return
		}
		h.subs.Unsubscribe(c, ClubTopic(msg.ClubID))
		h.notifyConn(c, Message{Type: TypeUnsubscriptionConfirmed,
			Data: map[string]any{"clubId": msg.ClubID, "subscription": "club"}})
	case ctlSubscribeActivity:
		h.subs.Subscribe(c, TopicActivity)
		h.notifyConn(c, Message{Type: TypeSubscriptionConfirmed,
			Data: map[string]any{"subscription": "activity"}})
	case ctlUnsubscribeActivity:
		h.subs.Unsubscribe(c, TopicActivity)
		h.notifyConn(c, Message{Type: TypeUnsubscriptionConfirmed,
			Data: map[string]any{"subscription": "activity"}})
	case ctlSendChatMessage:
		h.handleChat(c, msg)
	case ctlPing:
		h.reg.Touch(c)
		h.notifyConn(c, Message{Type: TypePong, Timestamp: h.now().UnixMilli()})
	default:
		h.log.Warn("unknown control message type", "type", msg.Type, "userID", c.userID)
	}
}

// handleChat builds a chat message and fans it out to the club topic.
// Fire-and-forget: nothing is stored, late subscribers see nothing.
func (h *Hub) handleChat(c *Conn, msg ControlMessage) {
	if msg.ClubID == "" || msg.Content == "" {
		h.notifyConn(c, newErrorMessage("Missing clubId or content"))
		return
	}
	h.Broadcast(ClubTopic(msg.ClubID), newChatMessage(msg.ClubID, c.userID, msg.Content, h.now()))
}

// notifyConn writes to a single connection rather than all of the user's
// sockets; confirmations belong to the connection that asked.
func (h *Hub) notifyConn(c *Conn, msg Message) {
	h.reg.writeAll([]*Conn{c}, msg.Type, msg)
}

// Notify sends a message directly to every socket of one user.
func (h *Hub) Notify(userID string, msg Message) {
	h.reg.SendTo(userID, msg.Type, msg)
}

// Broadcast fans msg out to every current subscriber of topic. Delivery
// order across subscribers is unspecified; a topic with no subscribers is a
// no-op. Returns the number of users the message was addressed to.
func (h *Hub) Broadcast(topic string, msg Message) int {
	users := h.subs.SubscribersOf(topic)
	for _, userID := range users {
		h.reg.SendTo(userID, msg.Type, msg)
	}
	metrics.BroadcastFanout.WithLabelValues(topicKind(topic)).Observe(float64(len(users)))
	return len(users)
}

func topicKind(topic string) string {
	switch {
	case topic == TopicActivity:
		return "activity"
	case len(topic) > len(betTopicPrefix) && topic[:len(betTopicPrefix)] == betTopicPrefix:
		return "bet"
	default:
		return "club"
	}
}

// NotifyBetOddsChange broadcasts new odds to a bet's subscribers.
func (h *Hub) NotifyBetOddsChange(betID string, newOdds any) {
	h.Broadcast(BetTopic(betID), newBetUpdateMessage(betID, BetEventOddsChange,
		map[string]any{"newOdds": newOdds}, h.now()))
}

// NotifyNewBetEntry broadcasts a newly placed entry to a bet's subscribers.
func (h *Hub) NotifyNewBetEntry(betID string, entry any) {
	h.Broadcast(BetTopic(betID), newBetUpdateMessage(betID, BetEventNewEntry,
		map[string]any{"entry": entry}, h.now()))
}

// NotifyPoolUpdate broadcasts the bet's new pool total.
func (h *Hub) NotifyPoolUpdate(betID string, poolTotal float64) {
	h.Broadcast(BetTopic(betID), newBetUpdateMessage(betID, BetEventPoolUpdate,
		map[string]any{"poolTotal": poolTotal}, h.now()))
}

// NotifyBetStatusChange broadcasts a bet status transition.
func (h *Hub) NotifyBetStatusChange(betID, newStatus string) {
	h.Broadcast(BetTopic(betID), newBetUpdateMessage(betID, BetEventStatusChange,
		map[string]any{"newStatus": newStatus}, h.now()))
}

// NotifyBetResult broadcasts a settled bet's result.
func (h *Hub) NotifyBetResult(betID string, result any) {
	h.Broadcast(BetTopic(betID), newBetUpdateMessage(betID, BetEventResult,
		map[string]any{"result": result}, h.now()))
}

// NotifyUserActivity broadcasts one user's action to every activity
// subscriber. There is no per-user filtering on the activity feed.
func (h *Hub) NotifyUserActivity(userID, eventType string, data any) {
	h.Broadcast(TopicActivity, newActivityMessage(userID, eventType, data, h.now()))
}

// Stats is the aggregate snapshot read by the diagnostics endpoint.
type Stats struct {
	TotalConnections    int      `json:"totalConnections"`
	BetSubscriptions    int      `json:"betSubscriptions"`
	ClubSubscriptions   int      `json:"clubSubscriptions"`
	ActivitySubscribers int      `json:"activitySubscribers"`
	ConnectedUsers      []string `json:"connectedUsers"`
}

// Stats returns a point-in-time snapshot of hub state.
func (h *Hub) Stats() Stats {
	return Stats{
		TotalConnections:    h.reg.ConnectionCount(),
		BetSubscriptions:    h.subs.TopicCount(betTopicPrefix),
		ClubSubscriptions:   h.subs.TopicCount(clubTopicPrefix),
		ActivitySubscribers: h.subs.SubscriberCount(TopicActivity),
		ConnectedUsers:      h.reg.ConnectedUsers(),
	}
}
