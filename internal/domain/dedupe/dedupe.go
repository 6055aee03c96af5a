// Package dedupe tracks submitted trial ids so a resubmitted trial is
// acknowledged without being analyzed twice.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 100_000

// Deduper records seen trial IDs to ensure at-most-once analysis.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so the trial can be submitted again. Used when a
	// recorded trial was rejected by the queue or failed analysis.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id  string
	seq uint64
}

// inMemoryDeduper keeps ids in a map. In bounded mode a FIFO of entries
// tracks insertion order and the oldest id is evicted first. Unrecorded ids
// leave stale entries behind; they are recognised by sequence number and
// skipped on eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64
	fifo    []entry
	head    int
	seq     uint64
	maxSize int // <= 0 is unbounded
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seq++
	d.seen[id] = d.seq
	if d.maxSize > 0 {
		if len(d.seen) > d.maxSize {
			d.evictOldest()
		}
		d.fifo = append(d.fifo, entry{id: id, seq: d.seq})
	}
	d.size.Store(int64(len(d.seen)))
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; !ok {
		return
	}
	delete(d.seen, id)
	d.size.Store(int64(len(d.seen)))
}

// evictOldest drops the oldest live id. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	for d.head < len(d.fifo) {
		e := d.fifo[d.head]
		d.fifo[d.head] = entry{}
		d.head++
		if seq, ok := d.seen[e.id]; ok && seq == e.seq {
			delete(d.seen, e.id)
			break
		}
	}
	if d.head > len(d.fifo)/2 {
		d.fifo = append(d.fifo[:0], d.fifo[d.head:]...)
		d.head = 0
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
