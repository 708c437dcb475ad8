// Package conversation holds the bounded window of prior turns that is
// replayed to the model with every new frame.
package conversation

import (
	"sync"

	"github.com/eleven-am/overlord/internal/vision"
)

const DefaultLength = 2

// Turn is one completed exchange: the frame that was sent and the text that
// came back for it.
type Turn struct {
	Message string
	Image   vision.Frame
}

// History is an ordered FIFO of at most Cap() turns. Appending to a full
// history evicts the oldest turn; reads never reorder.
type History struct {
	mu    sync.RWMutex
	turns []Turn
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultLength
	}
	return &History{
		turns: make([]Turn, 0, limit),
		limit: limit,
	}
}

func (h *History) Cap() int {
	return h.limit
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendLocked(t)
}

// AppendIf appends t only when keep reports true. keep runs under the same
// lock as the append, so a cancellation made through WithLock is either seen
// by keep or ordered after the append.
func (h *History) AppendIf(t Turn, keep func() bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !keep() {
		return false
	}
	h.appendLocked(t)
	return true
}

// WithLock runs fn while no append can be in progress.
func (h *History) WithLock(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn()
}

func (h *History) appendLocked(t Turn) {
	if len(h.turns) >= h.limit {
		drop := len(h.turns) - h.limit + 1
		kept := make([]Turn, 0, h.limit)
		kept = append(kept, h.turns[drop:]...)
		h.turns = kept
	}
	h.turns = append(h.turns, t)
}

// Recent returns a copy of the last n turns, oldest first.
func (h *History) Recent(n int) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(h.turns) {
		n = len(h.turns)
	}
	out := make([]Turn, n)
	copy(out, h.turns[len(h.turns)-n:])
	return out
}

func (h *History) Snapshot() []Turn {
	return h.Recent(h.limit)
}

func (h *History) Reset() {
	h.mu.Lock()
	h.turns = make([]Turn, 0, h.limit)
	h.mu.Unlock()
}
