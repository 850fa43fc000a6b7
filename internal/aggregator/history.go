package aggregator

import (
	"sync"
	"time"

	"water-monitor/internal/models"
)

// DefaultHistorySize matches the number of points the chart shows.
const DefaultHistorySize = 100

// HistoryPoint is one entry of the rolling window.
type HistoryPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     float64         `json:"value"`
	Severity  models.Severity `json:"severity"`
}

// History is a fixed-capacity FIFO of recent readings, safe for concurrent use.
type History struct {
	mu     sync.RWMutex
	points []HistoryPoint
	head   int // index of the oldest point once full
	full   bool
}

// NewHistory returns an empty buffer. Non-positive sizes fall back to
// DefaultHistorySize.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{points: make([]HistoryPoint, 0, size)}
}

// Capacity returns the maximum number of points retained.
func (h *History) Capacity() int {
	return cap(h.points)
}

// Append adds p, evicting the oldest point when full.
func (h *History) Append(p HistoryPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		h.points = append(h.points, p)
		h.full = len(h.points) == cap(h.points)
		return
	}
	h.points[h.head] = p
	h.head = (h.head + 1) % len(h.points)
}

// Len returns the number of points held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.points)
}

// Snapshot returns a copy ordered oldest first.
func (h *History) Snapshot() []HistoryPoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryPoint, 0, len(h.points))
	out = append(out, h.points[h.head:]...)
	out = append(out, h.points[:h.head]...)
	return out
}

// Latest returns the newest point.
func (h *History) Latest() (HistoryPoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.points) == 0 {
		return HistoryPoint{}, false
	}
	i := h.head - 1
	if i < 0 {
		i = len(h.points) - 1
	}
	return h.points[i], true
}

// Reset drops every point.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.points = h.points[:0]
	h.head = 0
	h.full = false
}
