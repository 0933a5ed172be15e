// Package dedupe keeps snapshot capture idempotent: at most one snapshot per
// student per calendar day.
package dedupe

import (
	"context"
	"sync"
	"time"
)

const defaultMaxSize = 50_000

// Deduper records seen keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets a key so a failed capture can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// DayKey builds the key for a student's snapshot on the UTC day of at.
func DayKey(studentID string, at time.Time) string {
	return studentID + "|" + at.UTC().Format(time.DateOnly)
}

// inMemoryDeduper is a bounded set with first-in-first-out eviction.
// A non-positive maxSize makes it unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // ring of keys in insertion order, bounded mode only
	next    int
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{})
	if d.maxSize > 0 {
		d.order = make([]string, 0, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	if d.maxSize <= 0 {
		return false
	}
	if len(d.order) < d.maxSize {
		d.order = append(d.order, key)
		return false
	}
	// Ring is full: the slot at next holds the oldest key.
	if old := d.order[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.order[d.next] = key
	d.next = (d.next + 1) % d.maxSize
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; !ok {
		return
	}
	delete(d.seen, key)
	// Blank the ring slot so eviction does not delete a re-recorded key.
	for i, k := range d.order {
		if k == key {
			d.order[i] = ""
			break
		}
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
