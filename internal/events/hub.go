package events

import (
	"sync"
	"time"
)

// Record is the serialized form of a published event, kept for late readers
// and streamed to watchers.
type Record struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"` // JSON payload
}

// hub keeps a small ring buffer of records and fans them out to channel
// watchers without ever blocking the publisher.
type hub struct {
	mu    sync.Mutex
	ring  []Record
	start int
	size  int

	subs      map[int]chan Record
	nextSubID int
}

func newHub(capacity int) *hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &hub{
		ring: make([]Record, capacity),
		subs: make(map[int]chan Record),
	}
}

func (h *hub) push(rec Record) {
	h.mu.Lock()
	h.pushLocked(rec)
	for _, ch := range h.subs {
		// Don't let slow watchers block producers.
		select {
		case ch <- rec:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *hub) watch() (<-chan Record, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Record, 128)
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

// since returns buffered records with ID > lastID, oldest-first.
// If lastID is 0, the full ring buffer snapshot is returned.
func (h *hub) since(lastID int64) []Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Record, 0, h.size)
	for i := 0; i < h.size; i++ {
		rec := h.ring[(h.start+i)%len(h.ring)]
		if lastID == 0 || rec.ID > lastID {
			out = append(out, rec)
		}
	}
	return out
}

func (h *hub) pushLocked(rec Record) {
	capacity := len(h.ring)
	if h.size < capacity {
		idx := (h.start + h.size) % capacity
		h.ring[idx] = rec
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = rec
	h.start = (h.start + 1) % capacity
}
