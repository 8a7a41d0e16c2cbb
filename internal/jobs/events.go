package jobs

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"survey-insights/internal/shared/telemetry"
)

const defaultEventBuffer = 64

// Bus fans job events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full loses the event and the drop is counted.
// Each job is processed by a single worker, so events for one job arrive
// at every subscriber in emission order.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	buffer      int
	dropped     atomic.Uint64
}

// NewBus returns a bus whose subscriber channels buffer up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Bus{subscribers: make(map[string]chan Event), buffer: buffer}
}

// Subscribe registers a new subscriber and returns its ID and channel.
func (b *Bus) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish delivers the event to every subscriber that has buffer room.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			telemetry.Warn("jobs.event_dropped", map[string]any{
				"subscriber_id": id,
				"job_id":        ev.JobID,
				"chunk_type":    ev.ChunkType,
			})
		}
	}
}

// Dropped reports how many events were lost to slow subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
