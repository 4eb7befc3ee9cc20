package symbol

import (
	"fmt"
	"sync"
)

// Map is the immutable-after-construction instrument registry. Two lookup
// tables are populated at init time (by InstrumentId and by MidasTicker);
// both are read-only thereafter. Lookups still take the read lock, which
// is uncontended once construction via Register has finished.
//
// Each data adaptor additionally keeps its own ticker-convention cache
// (BrokerTicker/DataTicker -> InstrumentId) via TickerIndex, since the
// adaptor's native id space differs from the Map's assigned InstrumentId.
type Map struct {
	mu       sync.RWMutex
	byID     map[InstrumentId]Symbol
	byTicker map[string]Symbol
	nextID   InstrumentId
	sealed   bool
}

// NewMap creates an empty, unsealed symbol map ready for Register calls.
func NewMap() *Map {
	return &Map{
		byID:     make(map[InstrumentId]Symbol),
		byTicker: make(map[string]Symbol),
		nextID:   1,
	}
}

// Register validates and adds a symbol to the map, assigning it a fresh
// InstrumentId. Registration is only valid before the map is sealed.
func (m *Map) Register(s Symbol) (InstrumentId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return 0, fmt.Errorf("symbol map: cannot register %s after Seal", s.MidasTicker)
	}
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if _, exists := m.byTicker[s.MidasTicker]; exists {
		return 0, fmt.Errorf("symbol map: midas_ticker %s already registered", s.MidasTicker)
	}

	id := m.nextID
	m.nextID++
	s.InstrumentId = id

	m.byID[id] = s
	m.byTicker[s.MidasTicker] = s
	return id, nil
}

// Seal freezes the map: no further Register calls are accepted. Every run
// seals its map immediately after loading config's [[symbols]] section;
// the read paths below take only the read lock.
func (m *Map) Seal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sealed = true
}

// ByID looks up a symbol by InstrumentId.
func (m *Map) ByID(id InstrumentId) (Symbol, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

// ByTicker looks up a symbol by its canonical midas_ticker.
func (m *Map) ByTicker(ticker string) (Symbol, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byTicker[ticker]
	return s, ok
}

// All returns a snapshot slice of every registered symbol.
func (m *Map) All() []Symbol {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Symbol, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s)
	}
	return out
}

// TickerIndex is a per-adaptor cache mapping the adaptor's native ticker
// convention (broker_ticker or data_ticker) to the Map's assigned
// InstrumentId. The HistoricalAdaptor uses this to rewrite a record's
// native instrument id into the Map's id before republishing, per
// spec.md §4.2.
type TickerIndex struct {
	byNative map[string]InstrumentId
}

// NewTickerIndex builds a ticker index from a symbol map, keyed by the
// given selector (BrokerTicker or DataTicker depending on the adaptor).
func NewTickerIndex(m *Map, selector func(Symbol) string) *TickerIndex {
	idx := &TickerIndex{byNative: make(map[string]InstrumentId)}
	for _, s := range m.All() {
		key := selector(s)
		if key != "" {
			idx.byNative[key] = s.InstrumentId
		}
	}
	return idx
}

// Resolve maps a native ticker to its registered InstrumentId.
func (t *TickerIndex) Resolve(native string) (InstrumentId, bool) {
	id, ok := t.byNative[native]
	return id, ok
}
