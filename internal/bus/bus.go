package bus

import (
	"sync"

	"github.com/mnordin/composite-hass/internal/ha"
	"github.com/sirupsen/logrus"
)

// Bus provides fan-out pub/sub semantics for *ha.Entity* source updates.
// Each Subscribe call gets its own channel that receives every future
// publication. Past messages are not replayed. The implementation is safe for
// concurrent publishers and subscribers; the MQTT client delivers messages
// from its own goroutines.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan *ha.Entity
	logger      *logrus.Logger
}

// New creates a ready-to-use Bus.
func New(logger *logrus.Logger) *Bus { return &Bus{logger: logger} }

// Subscribe returns a channel that will receive all future source updates.
// The buffer absorbs bursts from the MQTT callback while the consumer routes
// the previous update.
func (b *Bus) Subscribe() <-chan *ha.Entity {
	ch := make(chan *ha.Entity, 64)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers the update to all subscribers in a best-effort,
// non-blocking way. If a subscriber's buffer is full the update is skipped
// for that subscriber to keep the MQTT callback quick.
func (b *Bus) Publish(e *ha.Entity) {
	b.mu.RLock()
	subs := make([]chan *ha.Entity, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			// The subscriber will catch up from its next update; the loss
			// should at least be visible.
			b.logger.WithField("entity_id", e.EntityID).Debug("Subscriber backlog full, dropping source update")
			continue
		}
	}
}
