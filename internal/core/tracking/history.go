package tracking

import "github.com/99minutos/courier-tracking/internal/core/domain"

// DefaultHistoryCapacity is the number of retained positions kept per session.
const DefaultHistoryCapacity = 50

// History is a bounded, insertion-ordered buffer of retained positions. The
// oldest entry is evicted when a new one would exceed the capacity.
//
// History is not safe for concurrent use; the owning session mutates and
// reads it from its loop goroutine only.
type History struct {
	capacity int
	entries  []domain.Position
}

// NewHistory returns an empty history. A non-positive capacity uses
// DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity, entries: make([]domain.Position, 0, capacity)}
}

// Append adds p, evicting the oldest entry when full.
func (h *History) Append(p domain.Position) {
	if len(h.entries) == h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = p
		return
	}
	h.entries = append(h.entries, p)
}

// All returns a copy of the entries, oldest first.
func (h *History) All() []domain.Position {
	out := make([]domain.Position, len(h.entries))
	copy(out, h.entries)
	return out
}

// Last returns the most recently retained position.
func (h *History) Last() (domain.Position, bool) {
	if len(h.entries) == 0 {
		return domain.Position{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Len returns the number of retained positions.
func (h *History) Len() int {
	return len(h.entries)
}

// Capacity returns the maximum number of retained positions.
func (h *History) Capacity() int {
	return h.capacity
}
