package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"` // JSON payload
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Hub is an in-memory pub/sub with a small ring buffer for late clients.
//
// Channel subscribers are buffered and lose events when they fall behind.
// Func subscribers are called synchronously on the publishing goroutine, in
// publish order, and never miss an event.
type Hub struct {
	nextID atomic.Int64

	// pubMu serializes Publish so func subscribers observe a total order.
	pubMu sync.Mutex

	mu    sync.Mutex
	ring  []Event
	start int
	size  int

	subs      map[int]chan Event
	funcs     map[int]func(Event)
	nextSubID int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring:  make([]Event, capacity),
		subs:  make(map[int]chan Event),
		funcs: make(map[int]func(Event)),
	}
}

func (h *Hub) Publish(eventType string, data any) Event {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	ev := Event{
		ID:   h.nextID.Add(1),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}

	h.mu.Lock()
	h.pushLocked(ev)
	for _, ch := range h.subs {
		// Don't let slow clients block producers.
		select {
		case ch <- ev:
		default:
		}
	}
	handlers := make([]func(Event), 0, len(h.funcs))
	for _, fn := range h.funcs {
		handlers = append(handlers, fn)
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
	return ev
}

// Subscribe returns a buffered channel of future events and a cancel func that
// closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	return h.SubscribeBuffered(128)
}

func (h *Hub) SubscribeBuffered(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, buffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SubscribeFunc registers fn for every future event. fn must not call Publish.
func (h *Hub) SubscribeFunc(fn func(Event)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	h.funcs[id] = fn

	return func() {
		h.mu.Lock()
		delete(h.funcs, id)
		h.mu.Unlock()
	}
}

// SnapshotSince returns buffered events with ID > lastID, oldest-first.
// If lastID is 0, the full ring buffer snapshot is returned.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if lastID == 0 || ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if capacity == 0 {
		return
	}

	if h.size < capacity {
		idx := (h.start + h.size) % capacity
		h.ring[idx] = ev
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}
