package services

import (
	"sync"

	"github.com/sirupsen/logrus"

	"miniapp-games/internal/models"
)

// Broadcaster receives state-change notifications from the game core.
// Publish must not block.
type Broadcaster interface {
	Publish(event models.Event)
}

type NopBroadcaster struct{}

func (NopBroadcaster) Publish(models.Event) {}

// EventBus fans events out to per-user subscribers, typically websocket
// connections. Slow subscribers lose events instead of stalling a round.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[int64]map[*Subscription]struct{}
	bufferSize int
	log        logrus.FieldLogger
}

type Subscription struct {
	C      <-chan models.Event
	ch     chan models.Event
	userID int64
	bus    *EventBus
	once   sync.Once
}

func NewEventBus(bufferSize int, log logrus.FieldLogger) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &EventBus{
		subs:       make(map[int64]map[*Subscription]struct{}),
		bufferSize: bufferSize,
		log:        log,
	}
}

func (b *EventBus) Subscribe(userID int64) *Subscription {
	ch := make(chan models.Event, b.bufferSize)
	sub := &Subscription{C: ch, ch: ch, userID: userID, bus: b}

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*Subscription]struct{})
	}
	b.subs[userID][sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

func (b *EventBus) Publish(event models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[event.UserID] {
		select {
		case sub.ch <- event:
		default:
			b.log.WithFields(logrus.Fields{
				"user_id": event.UserID,
				"event":   event.Type,
			}).Debug("Subscriber buffer full, dropping event")
		}
	}
}

func (b *EventBus) Subscribers(userID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		delete(b.subs[s.userID], s)
		if len(b.subs[s.userID]) == 0 {
			delete(b.subs, s.userID)
		}
		b.mu.Unlock()
		close(s.ch)
	})
}
