// Package dedup provides a bounded in-memory record of already seen item
// identifiers. The window lives for the lifetime of the poll loop that owns
// it and is not persisted.
package dedup

import (
	"fmt"
	"time"

	"newswatch/internal/model"
)

// Default capacity policy: once more than Cap identifiers are tracked, the
// EvictBatch oldest entries are dropped in one step. This is an amortized
// FIFO policy, not LRU: an evicted identifier that resurfaces in a feed is
// reported as new again.
const (
	Cap        = 1000
	EvictBatch = 200
)

// Window tracks identifiers in insertion order with a bounded capacity.
// It is not safe for concurrent use; each poll loop owns its own window.
type Window struct {
	capacity   int
	evictBatch int
	seen       map[string]struct{}
	order      []string
}

// NewWindow creates a window with the given capacity and eviction batch
// size. Non-positive arguments fall back to the package defaults.
func NewWindow(capacity, evictBatch int) *Window {
	if capacity <= 0 {
		capacity = Cap
	}
	if evictBatch <= 0 || evictBatch > capacity {
		evictBatch = EvictBatch
	}
	return &Window{
		capacity:   capacity,
		evictBatch: evictBatch,
		seen:       make(map[string]struct{}, capacity),
	}
}

// Add records the identifier and reports whether it was new. Adding an
// already tracked identifier is a no-op returning false.
func (w *Window) Add(id string) bool {
	if _, ok := w.seen[id]; ok {
		return false
	}
	w.seen[id] = struct{}{}
	w.order = append(w.order, id)

	if len(w.seen) > w.capacity {
		for _, old := range w.order[:w.evictBatch] {
			delete(w.seen, old)
		}
		w.order = append(w.order[:0:0], w.order[w.evictBatch:]...)
	}
	return true
}

// Contains reports whether the identifier is currently tracked.
func (w *Window) Contains(id string) bool {
	_, ok := w.seen[id]
	return ok
}

// Len returns the number of tracked identifiers.
func (w *Window) Len() int {
	return len(w.seen)
}

// Identity returns the dedup identifier for a news item: its link, or a
// title+timestamp composite when the feed carries no link.
func Identity(item model.NewsItem) string {
	if item.Link != "" {
		return item.Link
	}
	return fmt.Sprintf("%s|%d", item.Title, item.PubDate.Unix())
}

// BucketKey returns the per-task minute-bucket key used by measurement
// loops that must fire at most once per task per minute.
func BucketKey(taskID int64, t time.Time) string {
	return fmt.Sprintf("%d_%s", taskID, t.UTC().Format("2006-01-02 15:04"))
}
