package telemetry

import (
	"sync"
	"time"
)

// Event is one telemetry event with a monotonic ID.
type Event struct {
	ID   int64                  `json:"id"`
	Type string                 `json:"type"`
	TS   time.Time              `json:"ts"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// sendTimeout bounds delivery to a slow subscriber before the event is
// dropped for that subscriber. Dropped events remain replayable from the
// ring buffer.
const sendTimeout = 100 * time.Millisecond

// Hub distributes events to subscribers with ring-buffer replay.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]*Subscription
	nextSub int
	nextID  int64

	buffer   []Event
	capacity int

	heartbeat time.Duration
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// Subscription is one subscriber's view of the hub. Events stays open for
// the life of the process so a publish in flight can never hit a closed
// channel; consumers select on Done alongside Events to detect shutdown.
type Subscription struct {
	id     int
	hub    *Hub
	Events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewHub creates a hub buffering the last bufferSize events. A positive
// heartbeat interval starts a ticker publishing heartbeat events.
func NewHub(bufferSize int, heartbeat time.Duration) *Hub {
	if bufferSize < 1 {
		bufferSize = 1
	}

	h := &Hub{
		subs:      make(map[int]*Subscription),
		buffer:    make([]Event, 0, bufferSize),
		capacity:  bufferSize,
		heartbeat: heartbeat,
		done:      make(chan struct{}),
	}

	if heartbeat > 0 {
		h.wg.Add(1)
		go h.heartbeatLoop()
	}

	return h
}

// Publish assigns the next event ID, buffers the event, and delivers it
// to every subscriber. Returns the assigned ID.
func (h *Hub) Publish(eventType string, data map[string]interface{}) int64 {
	h.mu.Lock()
	h.nextID++
	ev := Event{
		ID:   h.nextID,
		Type: eventType,
		TS:   time.Now().UTC(),
		Data: data,
	}

	h.buffer = append(h.buffer, ev)
	if len(h.buffer) > h.capacity {
		h.buffer = h.buffer[1:]
	}

	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.Events <- ev:
		case <-s.done:
			// Subscriber closed while this publish was in flight.
		case <-h.done:
			return ev.ID
		case <-time.After(sendTimeout):
			// Slow subscriber; it can resume from the buffer.
		}
	}

	return ev.ID
}

// Subscribe registers a subscriber. Buffered events with ID greater than
// sinceID are replayed into the channel before live delivery begins.
func (h *Hub) Subscribe(sinceID int64) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSub++
	s := &Subscription{
		id:     h.nextSub,
		hub:    h,
		Events: make(chan Event, h.capacity+16),
		done:   make(chan struct{}),
	}

	for _, ev := range h.buffer {
		if ev.ID > sinceID {
			s.Events <- ev
		}
	}

	h.subs[s.id] = s
	return s
}

// Done is closed when the subscription or the hub shuts down.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the subscription and signals Done. The Events channel
// is never closed: a publisher holding a snapshot of this subscription
// may still be mid-send.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()

	s.once.Do(func() { close(s.done) })
}

// LastID returns the most recently assigned event ID.
func (h *Hub) LastID() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.nextID
}

// heartbeatLoop publishes periodic heartbeat events until Stop.
func (h *Hub) heartbeatLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Publish("heartbeat", nil)
		case <-h.done:
			return
		}
	}
}

// Stop shuts the hub down and signals Done on every subscription.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		for id, s := range h.subs {
			s.once.Do(func() { close(s.done) })
			delete(h.subs, id)
		}
		h.mu.Unlock()
	})
}
