package marketdata

import (
	"sync"

	"github.com/midastrader/midas/symbol"
)

// OrderBook maintains the most recent Record per instrument plus a
// monotonic time cursor. Writes come from a single writer (the data
// engine); reads come from many readers (strategy, execution) and may be
// stale relative to the writer's in-flight record — that staleness is a
// deliberate design choice per spec.md §4.3, since strategy logic only
// ever reasons about the one record it is currently handling.
type OrderBook struct {
	mu            sync.RWMutex
	latest        map[symbol.InstrumentId]Record
	lastUpdatedNs int64
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		latest: make(map[symbol.InstrumentId]Record),
	}
}

// Update atomically replaces the stored record for its instrument and
// advances the cursor. Returns the previous record, if any, for callers
// that need the pre-update state (none currently do, but this mirrors the
// feed-simulator book's compare-and-update shape).
func (b *OrderBook) Update(r Record) (previous Record, hadPrevious bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous, hadPrevious = b.latest[r.InstrumentId]
	b.latest[r.InstrumentId] = r
	if r.TsEvent > b.lastUpdatedNs {
		b.lastUpdatedNs = r.TsEvent
	}
	return previous, hadPrevious
}

// Snapshot returns the most recently known record for an instrument.
func (b *OrderBook) Snapshot(id symbol.InstrumentId) (Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.latest[id]
	return r, ok
}

// Cursor returns the timestamp, in UTC nanoseconds, of the most recent
// record processed by the book across all instruments.
func (b *OrderBook) Cursor() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdatedNs
}

// Len returns the number of instruments the book currently has a record
// for.
func (b *OrderBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.latest)
}
