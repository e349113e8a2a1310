// Package broadcast fans state-change events out to subscribed connections.
package broadcast

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Event is a typed payload delivered to clients.
type Event interface {
	EventType() string
}

// Message is one event addressed to a topic. Seq increases by one per
// published message on that topic.
type Message struct {
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Seq     uint64 `json:"seq"`
	Payload Event  `json:"payload"`
}

const (
	queuePrefix = "queue:"
	lobbyPrefix = "lobby:"
)

// QueueTopic names the topic carrying updates for a queue.
func QueueTopic(queueID string) string { return queuePrefix + queueID }

// LobbyTopic names the topic carrying updates for a lobby.
func LobbyTopic(lobbyID string) string { return lobbyPrefix + lobbyID }

type topicKind int

const (
	kindQueue topicKind = iota
	kindLobby
)

func kindOf(topic string) (topicKind, error) {
	switch {
	case strings.HasPrefix(topic, queuePrefix) && len(topic) > len(queuePrefix):
		return kindQueue, nil
	case strings.HasPrefix(topic, lobbyPrefix) && len(topic) > len(lobbyPrefix):
		return kindLobby, nil
	}
	return 0, fmt.Errorf("invalid topic %q", topic)
}

type conn struct {
	id     string
	out    chan Message
	topics [2]string
}

// Hub tracks connections and their topic subscriptions. All sends are
// non-blocking: a connection whose buffer is full is disconnected and has to
// reconnect and resync from a snapshot.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]*conn
	topics map[string]map[string]*conn
	seq    map[string]uint64
	taps   []chan Message
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*conn),
		topics: make(map[string]map[string]*conn),
		seq:    make(map[string]uint64),
	}
}

// Register adds a connection and returns the channel its messages arrive on.
// Registering an id again replaces (and closes) the previous channel.
func (h *Hub) Register(connID string, buffer int) <-chan Message {
	if buffer < 1 {
		buffer = 1
	}
	c := &conn{id: connID, out: make(chan Message, buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.conns[connID]; ok {
		h.dropLocked(old)
	}
	h.conns[connID] = c
	return c.out
}

// Unregister removes a connection and closes its channel.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[connID]; ok {
		h.dropLocked(c)
	}
}

// Subscribe attaches connID to topic. A connection holds at most one queue
// and one lobby topic; a new topic of the same kind replaces the old one.
func (h *Hub) Subscribe(connID, topic string) error {
	kind, err := kindOf(topic)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return fmt.Errorf("connection %s is not registered", connID)
	}
	if prev := c.topics[kind]; prev != "" && prev != topic {
		h.removeSubscriberLocked(prev, connID)
	}
	c.topics[kind] = topic
	subs := h.topics[topic]
	if subs == nil {
		subs = make(map[string]*conn)
		h.topics[topic] = subs
	}
	subs[connID] = c
	return nil
}

// Unsubscribe detaches connID from topic if subscribed.
func (h *Hub) Unsubscribe(connID, topic string) {
	kind, err := kindOf(topic)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok || c.topics[kind] != topic {
		return
	}
	c.topics[kind] = ""
	h.removeSubscriberLocked(topic, connID)
}

// Publish delivers event to every subscriber of topic and to every tap.
// Messages are enqueued under the hub lock so each subscriber sees a topic's
// messages in publish order.
func (h *Hub) Publish(topic string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq[topic]++
	msg := Message{Type: event.EventType(), Topic: topic, Seq: h.seq[topic], Payload: event}

	for id, c := range h.topics[topic] {
		select {
		case c.out <- msg:
		default:
			log.WithFields(log.Fields{"conn": id, "topic": topic}).Warn("Dropping slow subscriber")
			h.dropLocked(c)
		}
	}
	for _, tap := range h.taps {
		select {
		case tap <- msg:
		default:
			log.WithField("type", msg.Type).Warn("Tap channel full, dropping event")
		}
	}
}

// SendTo delivers event to a single connection, outside topic sequencing.
// It reports whether the message was enqueued.
func (h *Hub) SendTo(connID, topic string, event Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	msg := Message{Type: event.EventType(), Topic: topic, Seq: h.seq[topic], Payload: event}
	select {
	case c.out <- msg:
		return true
	default:
		log.WithField("conn", connID).Warn("Dropping slow connection on direct send")
		h.dropLocked(c)
		return false
	}
}

// Reject reports a refused command to the connection that sent it.
func (h *Hub) Reject(connID string, err error) bool {
	return h.SendTo(connID, "", NewActionRejected(err))
}

// Tap returns a channel receiving every published message. Taps never get
// disconnected; a full tap misses messages instead.
func (h *Hub) Tap(buffer int) <-chan Message {
	ch := make(chan Message, buffer)
	h.mu.Lock()
	h.taps = append(h.taps, ch)
	h.mu.Unlock()
	return ch
}

// ForgetTopic drops the sequence counter and subscriptions of a topic that
// will not be published to again.
func (h *Hub) ForgetTopic(topic string) {
	kind, err := kindOf(topic)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.topics[topic] {
		c.topics[kind] = ""
	}
	delete(h.topics, topic)
	delete(h.seq, topic)
}

// Subscribers returns the number of connections subscribed to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) dropLocked(c *conn) {
	for _, topic := range c.topics {
		if topic != "" {
			h.removeSubscriberLocked(topic, c.id)
		}
	}
	if h.conns[c.id] == c {
		delete(h.conns, c.id)
	}
	close(c.out)
}

func (h *Hub) removeSubscriberLocked(topic, connID string) {
	subs := h.topics[topic]
	delete(subs, connID)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}
