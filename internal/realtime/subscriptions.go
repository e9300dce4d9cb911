package realtime

import (
	"strings"
	"sync"
)

// Topic keys. A topic is an opaque subscription key: bet:<id>, club:<id>,
// or the singleton activity feed.
const (
	TopicActivity   = "activity"
	betTopicPrefix  = "bet:"
	clubTopicPrefix = "club:"
)

// BetTopic returns the topic key for a bet's update stream.
func BetTopic(betID string) string { return betTopicPrefix + betID }

// ClubTopic returns the topic key for a club's chat/update stream.
func ClubTopic(clubID string) string { return clubTopicPrefix + clubID }

// SubscriptionIndex maintains topic -> subscriber-set mappings plus a mirror
// of each connection's own subscriptions so teardown is symmetric. Subscriber
// sets hold user identities, not connections: delivery to every socket of a
// user is the registry's job.
type SubscriptionIndex struct {
	mu      sync.Mutex
	byTopic map[string]map[string]struct{} // topic -> set of userID
	byConn  map[*Conn]map[string]struct{}  // conn -> set of topic
}

// NewSubscriptionIndex creates an empty index.
func NewSubscriptionIndex() *SubscriptionIndex {
	return &SubscriptionIndex{
		byTopic: make(map[string]map[string]struct{}),
		byConn:  make(map[*Conn]map[string]struct{}),
	}
}

// Subscribe adds c's user to topic. Re-subscribing is idempotent.
func (x *SubscriptionIndex) Subscribe(c *Conn, topic string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	subs := x.byTopic[topic]
	if subs == nil {
		subs = make(map[string]struct{})
		x.byTopic[topic] = subs
	}
	subs[c.userID] = struct{}{}

	topics := x.byConn[c]
	if topics == nil {
		topics = make(map[string]struct{})
		x.byConn[c] = topics
	}
	topics[topic] = struct{}{}
}

// Unsubscribe removes c's user from topic. A topic left with no subscribers
// is deleted outright so the index never holds empty sets. Unsubscribing
// from a topic never subscribed to is a no-op, not an error.
func (x *SubscriptionIndex) Unsubscribe(c *Conn, topic string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.unsubscribeLocked(c, topic)
}

func (x *SubscriptionIndex) unsubscribeLocked(c *Conn, topic string) {
	if subs := x.byTopic[topic]; subs != nil {
		delete(subs, c.userID)
		if len(subs) == 0 {
			delete(x.byTopic, topic)
		}
	}
	if topics := x.byConn[c]; topics != nil {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(x.byConn, c)
		}
	}
}

// SubscribersOf returns the identities subscribed to topic. Unknown topics
// yield an empty slice.
func (x *SubscriptionIndex) SubscribersOf(topic string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	subs := x.byTopic[topic]
	out := make([]string, 0, len(subs))
	for u := range subs {
		out = append(out, u)
	}
	return out
}

// DropAll unsubscribes c from every topic it holds. Called on connection
// removal so no orphaned interest survives a dead connection.
func (x *SubscriptionIndex) DropAll(c *Conn) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for topic := range x.byConn[c] {
		x.unsubscribeLocked(c, topic)
	}
	delete(x.byConn, c)
}

// TopicCount returns the number of active topics with the given prefix.
func (x *SubscriptionIndex) TopicCount(prefix string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := 0
	for topic := range x.byTopic {
		if strings.HasPrefix(topic, prefix) {
			n++
		}
	}
	return n
}

// SubscriberCount returns the number of subscribers of topic.
func (x *SubscriptionIndex) SubscriberCount(topic string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.byTopic[topic])
}
