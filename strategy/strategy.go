// Package strategy defines the Strategy capability set a strategy must
// implement to be hosted by the core engine, plus a small set of
// concrete strategies. It narrows the retrieved sherwood Strategy
// interface (Name/Description/Init/OnData/Validate/Timeframe/
// GetParameters, designed for a pull-based backtest over a batch of
// OHLCV bars) to the push-based, one-event-at-a-time capability set
// spec.md's Glossary names: {handle_event(MarketEvent),
// get_strategy_data() -> table}.
package strategy

import (
	"github.com/midastrader/midas/marketdata"
	"github.com/midastrader/midas/symbol"
)

// Action mirrors portfolio.Action without importing package portfolio,
// since a strategy must not depend on portfolio internals — only on the
// instruction shape it emits.
type Action int

const (
	ActionLong Action = iota
	ActionCover
	ActionShort
	ActionSell
)

// Instruction is one leg of a signal: the instrument, the desired
// action, and either an explicit quantity or a portfolio weight for the
// OrderManager to size from trade_capital = capital * Weight.
type Instruction struct {
	InstrumentId symbol.InstrumentId
	Action       Action
	Weight       float64 // fraction of capital to allocate; 0 if Quantity set
	Quantity     float64 // explicit share/contract count; 0 if Weight set
}

// Signal is the full set of instructions a strategy emits from one call
// to HandleEvent, tagged with a monotonic id the core engine uses to
// track in-flight orders for the UPDATE_SYSTEM barrier.
type Signal struct {
	SignalID     uint64
	TsNs         int64
	Instructions []Instruction
}

// Strategy is the capability set the core engine's host dispatches
// ORDER_BOOK events to. Implementations are stateful: they own whatever
// buffers or counters they need across calls, since the engine never
// suspends a call mid-flight (spec.md §9's "coroutine-ish control flow
// becomes message-driven state machines").
type Strategy interface {
	// Name identifies the strategy for logging and the plugin registry.
	Name() string

	// HandleEvent processes one market record and optionally returns a
	// Signal. A nil Signal means "no action this event."
	HandleEvent(rec marketdata.Record) (*Signal, error)

	// StrategyData returns arbitrary strategy-internal state for
	// diagnostics/session-artifact inclusion (indicator values, counters).
	StrategyData() map[string]interface{}
}

// Base provides the bookkeeping every concrete strategy needs (name,
// config, monotonic signal-id counter), following the retrieved
// BaseStrategy's role of holding shared fields so concrete strategies
// only implement the decision logic.
type Base struct {
	name      string
	config    map[string]interface{}
	signalSeq uint64
}

// NewBase constructs a Base with the given name and config.
func NewBase(name string, config map[string]interface{}) Base {
	if config == nil {
		config = make(map[string]interface{})
	}
	return Base{name: name, config: config}
}

func (b *Base) Name() string { return b.name }

// NextSignalID returns a fresh monotonic signal id for this strategy
// instance.
func (b *Base) NextSignalID() uint64 {
	b.signalSeq++
	return b.signalSeq
}

// ConfigFloat reads a float64 config value with a default, matching the
// retrieved BaseStrategy.GetConfigFloat coercion rules (accepts int or
// float64 from a TOML-decoded map).
func (b *Base) ConfigFloat(key string, def float64) float64 {
	v, ok := b.config[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// ConfigInt reads an int config value with a default.
func (b *Base) ConfigInt(key string, def int) int {
	v, ok := b.config[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
