package services

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types pushed to clients.
const (
	EventMessageCreated      = "message.created"
	EventConversationUpdated = "conversation.updated"
	EventPresenceChanged     = "presence.changed"
	EventNotificationCreated = "notification.created"
)

type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// Subscription is one live client stream.
type Subscription struct {
	UserID uint
	Events <-chan Event

	ch chan Event
}

// Broker fans events out to the subscriptions of each user. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Broker struct {
	log    *zap.Logger
	buffer int

	mu   sync.RWMutex
	subs map[uint]map[*Subscription]struct{}
}

func NewBroker(log *zap.Logger, buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{
		log:    log,
		buffer: buffer,
		subs:   make(map[uint]map[*Subscription]struct{}),
	}
}

func (b *Broker) Subscribe(userID uint) *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{UserID: userID, Events: ch, ch: ch}

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*Subscription]struct{})
	}
	b.subs[userID][sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[sub.UserID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.UserID)
	}
	close(sub.ch)
}

// Publish delivers an event to every stream of userID.
func (b *Broker) Publish(userID uint, eventType string, data any) {
	ev := Event{Type: eventType, Data: data, At: time.Now()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[userID] {
		b.deliver(sub, ev)
	}
}

// Broadcast delivers an event to every connected stream.
func (b *Broker) Broadcast(eventType string, data any) {
	ev := Event{Type: eventType, Data: data, At: time.Now()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, set := range b.subs {
		for sub := range set {
			b.deliver(sub, ev)
		}
	}
}

func (b *Broker) deliver(sub *Subscription, ev Event) {
	select {
	case sub.ch <- ev:
	default:
		b.log.Warn("dropping realtime event for slow subscriber",
			zap.Uint("user_id", sub.UserID), zap.String("type", ev.Type))
	}
}

// Presence counts open streams per user and announces transitions between
// offline and online.
type Presence struct {
	broker *Broker

	mu    sync.Mutex
	conns map[uint]int
}

type PresenceChange struct {
	UserID uint `json:"user_id"`
	Online bool `json:"online"`
}

func NewPresence(broker *Broker) *Presence {
	return &Presence{broker: broker, conns: make(map[uint]int)}
}

func (p *Presence) Connect(userID uint) {
	p.mu.Lock()
	p.conns[userID]++
	first := p.conns[userID] == 1
	p.mu.Unlock()

	if first {
		p.broker.Broadcast(EventPresenceChanged, PresenceChange{UserID: userID, Online: true})
	}
}

func (p *Presence) Disconnect(userID uint) {
	p.mu.Lock()
	n, ok := p.conns[userID]
	if !ok {
		p.mu.Unlock()
		return
	}
	last := n <= 1
	if last {
		delete(p.conns, userID)
	} else {
		p.conns[userID] = n - 1
	}
	p.mu.Unlock()

	if last {
		p.broker.Broadcast(EventPresenceChanged, PresenceChange{UserID: userID, Online: false})
	}
}

// Online reports which of ids currently have at least one open stream.
func (p *Presence) Online(ids []uint) map[uint]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = p.conns[id] > 0
	}
	return out
}
