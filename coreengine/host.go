// Package coreengine hosts a single Strategy against the live ORDER_BOOK
// topic and drives the SIGNAL -> ORDER -> UPDATE_SYSTEM pipeline,
// generalizing the retrieved sherwood TradingEngine's per-tick strategy
// dispatch loop from a direct OnData([]OHLCV) call into the bus-mediated,
// barrier-gated flow of spec.md §4.7.
package coreengine

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/marketdata"
	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/strategy"
)

// SignalUpdate reports, for one SignalID, how many orders the
// OrderManager produced from it — zero means no orders resulted and the
// UPDATE_SYSTEM barrier was released immediately.
type SignalUpdate struct {
	SignalID   uint64
	OrderCount int
}

// Host runs one strategy's event loop: every ORDER_BOOK record is handed
// to the strategy, any resulting signal passes through the optional
// RiskModel and is sized into orders by the OrderManager, and the
// UPDATE_SYSTEM flag is held low until every order that signal produced
// reaches a terminal ORDER_UPDATE (Filled or Cancelled).
type Host struct {
	b        *bus.Bus
	strategy strategy.Strategy
	om       *OrderManager
	risk     RiskModel
	log      zerolog.Logger

	orderBookSub   *bus.Subscriber
	orderUpdateSub *bus.Subscriber

	onQuarantine func(tsNs int64, reason string)

	mu          sync.Mutex
	inFlight    map[uint64]int
	quarantined bool
}

// OnQuarantine registers a callback invoked once, the first time the
// hosted strategy errors out of HandleEvent, with the record timestamp
// and the error that caused quarantine. The session writer uses this to
// record the quarantine reason in the session artifact (spec.md §8's S5
// scenario) without coreengine needing to import the performance
// package directly.
func (h *Host) OnQuarantine(fn func(tsNs int64, reason string)) {
	h.onQuarantine = fn
}

// NewHost wires a Host to its bus, strategy, and OrderManager. risk may
// be nil, in which case every signal's instructions pass through
// unmodified. NewHost subscribes to ORDER_BOOK and ORDER_UPDATE
// immediately (rather than when Run starts) so that any event published
// after construction is guaranteed not to be missed, regardless of when
// the caller gets around to invoking Run in its own goroutine.
func NewHost(b *bus.Bus, s strategy.Strategy, om *OrderManager, risk RiskModel, log zerolog.Logger) *Host {
	return &Host{
		b:              b,
		strategy:       s,
		om:             om,
		risk:           risk,
		log:            log.With().Str("component", "coreengine").Str("strategy", s.Name()).Logger(),
		orderBookSub:   b.Subscribe(bus.TopicOrderBook),
		orderUpdateSub: b.Subscribe(bus.TopicOrderUpdate),
		inFlight:       make(map[uint64]int),
	}
}

// Run drives the ORDER_BOOK dispatch loop and the ORDER_UPDATE
// in-flight tracker concurrently until the bus shuts down. It blocks
// until both subscriptions drain.
func (h *Host) Run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); h.watchOrderBook() }()
	go func() { defer wg.Done(); h.watchOrderUpdates() }()
	wg.Wait()
}

func (h *Host) watchOrderBook() {
	for {
		evt, ok := h.orderBookSub.Next()
		if !ok {
			return
		}
		rec, ok := evt.Payload.(marketdata.Record)
		if !ok {
			continue
		}
		h.handleRecord(rec)
	}
}

// handleRecord dispatches one record to the strategy and drives the rest
// of the signal pipeline synchronously. A strategy error quarantines the
// strategy (it stops being dispatched to, but the engine keeps running)
// per spec.md §7's fault-containment rule, rather than taking down the
// whole process.
func (h *Host) handleRecord(rec marketdata.Record) {
	h.mu.Lock()
	quarantined := h.quarantined
	h.mu.Unlock()
	if quarantined {
		h.b.SetFlag(bus.FlagUpdateSystem, true)
		return
	}

	sig, err := h.strategy.HandleEvent(rec)
	if err != nil {
		h.log.Error().Err(err).Msg("strategy raised an error; quarantining for remainder of run")
		h.mu.Lock()
		h.quarantined = true
		h.mu.Unlock()
		if h.onQuarantine != nil {
			h.onQuarantine(rec.TsEvent, err.Error())
		}
		h.b.SetFlag(bus.FlagUpdateSystem, true)
		return
	}
	if sig == nil {
		h.b.SetFlag(bus.FlagUpdateSystem, true)
		return
	}

	instructions := sig.Instructions
	if h.risk != nil {
		instructions = h.risk.Evaluate(instructions, h.om.Snapshot())
	}
	sig.Instructions = instructions

	h.b.Publish(bus.TopicSignal, *sig)

	orders := h.om.BuildOrders(*sig)
	h.b.Publish(bus.TopicSignalUpdate, SignalUpdate{SignalID: sig.SignalID, OrderCount: len(orders)})

	if len(orders) == 0 {
		h.b.SetFlag(bus.FlagUpdateSystem, true)
		return
	}

	h.mu.Lock()
	h.inFlight[sig.SignalID] = len(orders)
	h.mu.Unlock()

	for _, o := range orders {
		h.b.Publish(bus.TopicOrder, o)
	}
}

func (h *Host) watchOrderUpdates() {
	for {
		evt, ok := h.orderUpdateSub.Next()
		if !ok {
			return
		}
		order, ok := evt.Payload.(portfolio.ActiveOrder)
		if !ok {
			continue
		}
		if order.Status != portfolio.OrderStatusFilled && order.Status != portfolio.OrderStatusCancelled {
			continue
		}
		h.settleOrder(order.SignalID)
	}
}

func (h *Host) settleOrder(signalID uint64) {
	h.mu.Lock()
	remaining, tracked := h.inFlight[signalID]
	if !tracked {
		h.mu.Unlock()
		return
	}
	remaining--
	if remaining <= 0 {
		delete(h.inFlight, signalID)
	} else {
		h.inFlight[signalID] = remaining
	}
	h.mu.Unlock()

	if remaining <= 0 {
		h.b.SetFlag(bus.FlagUpdateSystem, true)
	}
}
