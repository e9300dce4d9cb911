// Package realtime implements the in-memory realtime tier: a connection
// registry shared by both WebSocket channels, the topic subscription index,
// the broadcasting hub, and the per-user notification channel.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Server-to-client message types on the realtime (topic) channel.
const (
	TypeConnectionEstablished   = "connection_established"
	TypeSubscriptionConfirmed   = "subscription_confirmed"
	TypeUnsubscriptionConfirmed = "unsubscription_confirmed"
	TypeBetUpdate               = "bet_update"
	TypeChatMessage             = "chat_message"
	TypeActivityUpdate          = "activity_update"
	TypePong                    = "pong"
	TypeError                   = "error"
)

// Client-to-server control message types.
const (
	ctlSubscribeBet        = "subscribe_bet"
	ctlUnsubscribeBet      = "unsubscribe_bet"
	ctlSubscribeClub       = "subscribe_club"
	ctlUnsubscribeClub     = "unsubscribe_club"
	ctlSubscribeActivity   = "subscribe_activity"
	ctlUnsubscribeActivity = "unsubscribe_activity"
	ctlSendChatMessage     = "send_chat_message"
	ctlPing                = "ping"
)

// Bet update subtypes.
const (
	BetEventOddsChange   = "odds_change"
	BetEventNewEntry     = "new_entry"
	BetEventPoolUpdate   = "pool_update"
	BetEventStatusChange = "status_change"
	BetEventResult       = "result"
)

// Notification types on the per-user push channel.
const (
	NotificationBetUpdate         = "bet_update"
	NotificationClubInvite        = "club_invite"
	NotificationWalletTransaction = "wallet_transaction"
	NotificationSystem            = "system"
)

// Message is the envelope for everything sent on the realtime channel.
// Timestamp is only set on pong replies; every other type carries its
// timestamp inside Data.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ControlMessage is a client-sent control frame on the realtime channel.
type ControlMessage struct {
	Type    string `json:"type"`
	BetID   string `json:"betId,omitempty"`
	ClubID  string `json:"clubId,omitempty"`
	Content string `json:"content,omitempty"`
}

// BetUpdate is the payload of a bet_update message.
type BetUpdate struct {
	BetID     string `json:"betId"`
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// ChatMessage is the payload of a chat_message fan-out. Messages are never
// persisted; a client that is offline when one is sent misses it for good.
type ChatMessage struct {
	ID        string `json:"id"`
	ClubID    string `json:"clubId"`
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ActivityEvent is the payload of an activity_update message. The activity
// feed is public: every subscriber sees every user's events.
type ActivityEvent struct {
	UserID    string `json:"userId"`
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// Notification is the single message shape of the per-user push channel.
// Unlike the realtime channel it uses RFC3339 timestamps.
type Notification struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// ValidBetEvent reports whether t is a known bet update subtype. Unknown
// subtypes are rejected at the boundary instead of forwarded blindly.
func ValidBetEvent(t string) bool {
	switch t {
	case BetEventOddsChange, BetEventNewEntry, BetEventPoolUpdate, BetEventStatusChange, BetEventResult:
		return true
	}
	return false
}

// ValidNotificationType reports whether t is a known push notification type.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationBetUpdate, NotificationClubInvite, NotificationWalletTransaction, NotificationSystem:
		return true
	}
	return false
}

func newBetUpdateMessage(betID, subtype string, data any, at time.Time) Message {
	return Message{Type: TypeBetUpdate, Data: BetUpdate{
		BetID:     betID,
		Type:      subtype,
		Data:      data,
		Timestamp: at.UnixMilli(),
	}}
}

func newChatMessage(clubID, userID, content string, at time.Time) Message {
	return Message{Type: TypeChatMessage, Data: ChatMessage{
		ID:        uuid.New().String(),
		ClubID:    clubID,
		UserID:    userID,
		Message:   content,
		Timestamp: at.UnixMilli(),
	}}
}

func newActivityMessage(userID, eventType string, data any, at time.Time) Message {
	return Message{Type: TypeActivityUpdate, Data: ActivityEvent{
		UserID:    userID,
		Type:      eventType,
		Data:      data,
		Timestamp: at.UnixMilli(),
	}}
}

func newErrorMessage(detail string) Message {
	return Message{Type: TypeError, Data: map[string]any{"message": detail}}
}
