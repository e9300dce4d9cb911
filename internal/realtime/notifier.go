package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Notifier is the per-user push channel: same connection lifecycle as the
// hub, no topic layer. Every registered socket of a user receives every
// notification sent to that user. It serves a distinct WebSocket endpoint
// and keeps its own registry so the two channels stay observably separate.
type Notifier struct {
	reg *Registry
	log *slog.Logger
	now func() time.Time
}

// NewNotifier creates the push channel.
func NewNotifier(log *slog.Logger) *Notifier {
	return &Notifier{
		reg: NewRegistry("notifications", log),
		log: log,
		now: time.Now,
	}
}

// Registry exposes the underlying registry for lifecycle wiring.
func (n *Notifier) Registry() *Registry { return n.reg }

// Register adds an authenticated socket and sends the welcome notification.
func (n *Notifier) Register(userID string, sock Socket) *Conn {
	c := n.reg.Add(userID, sock)
	n.SendToUser(userID, Notification{
		Type:      NotificationSystem,
		Title:     "Connected",
		Message:   "Real-time notifications enabled",
		Timestamp: n.timestamp(),
	})
	return c
}

// Touch records a heartbeat for c.
func (n *Notifier) Touch(c *Conn) { n.reg.Touch(c) }

// Remove tears down c.
func (n *Notifier) Remove(c *Conn) { n.reg.Remove(c) }

// Run sweeps stale connections until ctx is done.
func (n *Notifier) Run(ctx context.Context, interval, staleTimeout time.Duration) {
	n.reg.Run(ctx, interval, staleTimeout)
}

// SendToUser pushes a notification to every live socket of userID.
// Fire-and-forget: an offline user receives nothing, ever.
func (n *Notifier) SendToUser(userID string, note Notification) {
	if note.Timestamp == "" {
		note.Timestamp = n.timestamp()
	}
	n.reg.SendTo(userID, note.Type, note)
}

// SendToAll pushes a notification to every connected user. Used sparingly,
// for broadcast announcements.
func (n *Notifier) SendToAll(note Notification) {
	if note.Timestamp == "" {
		note.Timestamp = n.timestamp()
	}
	n.reg.SendToAll(note.Type, note)
}

// SendBetUpdate notifies one user about a bet they have a stake in.
func (n *Notifier) SendBetUpdate(userID, betID, message string, data map[string]any) {
	payload := map[string]any{"betId": betID}
	for k, v := range data {
		payload[k] = v
	}
	n.SendToUser(userID, Notification{
		Type:      NotificationBetUpdate,
		Title:     "Bet Update",
		Message:   message,
		Data:      payload,
		Timestamp: n.timestamp(),
	})
}

// SendClubInvite notifies a user they were invited to a club.
func (n *Notifier) SendClubInvite(userID, clubID, clubName, inviterName string) {
	n.SendToUser(userID, Notification{
		Type:      NotificationClubInvite,
		Title:     "Club Invitation",
		Message:   fmt.Sprintf("%s invited you to join %s", inviterName, clubName),
		Data:      map[string]any{"clubId": clubID, "clubName": clubName, "inviterName": inviterName},
		Timestamp: n.timestamp(),
	})
}

// SendWalletTransaction notifies a user about a ledger movement.
func (n *Notifier) SendWalletTransaction(userID string, amount float64, txType, description string) {
	n.SendToUser(userID, Notification{
		Type:      NotificationWalletTransaction,
		Title:     "Wallet Update",
		Message:   description,
		Data:      map[string]any{"amount": amount, "type": txType, "description": description},
		Timestamp: n.timestamp(),
	})
}

// SendSystemNotification pushes a plain system message to one user.
func (n *Notifier) SendSystemNotification(userID, title, message string) {
	n.SendToUser(userID, Notification{
		Type:      NotificationSystem,
		Title:     title,
		Message:   message,
		Timestamp: n.timestamp(),
	})
}

// ConnectedUsers returns the identities with at least one live socket.
func (n *Notifier) ConnectedUsers() []string { return n.reg.ConnectedUsers() }

// ConnectionCount returns the number of live sockets on this channel.
func (n *Notifier) ConnectionCount() int { return n.reg.ConnectionCount() }

func (n *Notifier) timestamp() string {
	return n.now().UTC().Format(time.RFC3339)
}
