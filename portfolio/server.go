package portfolio

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/symbol"
)

// Server is the authoritative, single-writer portfolio state: positions,
// the active-order ledger, and the account snapshot. Fills, commissions
// and marks reach it through direct calls from the execution engine
// (ApplyTrade, ApplyCommission, MarkPosition); of the bus topics it
// subscribes only to ORDER_UPDATE (see Run). It exposes read-locked
// accessors for everyone else (order manager, execution engine).
//
// The single-writer-many-readers shape follows the teacher's PaperBroker
// (mu sync.RWMutex guarding positions/orders/balance maps).
type Server struct {
	mu        sync.RWMutex
	positions map[symbol.InstrumentId]Position
	orders    map[uint64]ActiveOrder
	account   Account
	log       zerolog.Logger
}

// New creates a Server seeded with initialCash and zeroed positions.
func New(initialCash decimal.Decimal, currency symbol.Currency, log zerolog.Logger) *Server {
	return &Server{
		positions: make(map[symbol.InstrumentId]Position),
		orders:    make(map[uint64]ActiveOrder),
		account: Account{
			Cash:        initialCash,
			BuyingPower: initialCash,
			Equity:      initialCash,
			Currency:    currency,
		},
		log: log.With().Str("component", "portfolio").Logger(),
	}
}

// ApplyTrade updates the position book and cash for a single fill,
// following spec.md §4.4: deduct signed_trade_value + fees from cash,
// apply the position-update algorithm, then recompute equity.
//
// Called directly by the execution engine rather than purely via bus
// subscription, since the engine needs the resulting Position/Account
// synchronously to decide whether to publish POSITION_UPDATE/
// ACCOUNT_UPDATE — the bus topics here communicate the resulting state to
// OTHER subscribers (strategy, performance writer), not back to Server
// itself.
func (s *Server) ApplyTrade(trade Trade, mult Multipliers) (Position, Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.positions[trade.InstrumentId]
	pos.InstrumentId = trade.InstrumentId
	pos = ApplyFill(pos, trade.Action, trade.Quantity, trade.Price, mult, trade.TsNs)

	if pos.Quantity.IsZero() {
		delete(s.positions, trade.InstrumentId)
	} else {
		s.positions[trade.InstrumentId] = pos
	}

	signedValue := trade.Action.signedDelta(trade.Quantity).Mul(trade.Price).Mul(mult.PriceMultiplier).Mul(mult.QuantityMultiplier)
	s.account.Cash = s.account.Cash.Sub(signedValue).Sub(trade.Fees)
	s.recomputeAccountLocked(trade.TsNs)

	s.log.Debug().
		Uint32("instrument_id", uint32(trade.InstrumentId)).
		Str("quantity", pos.Quantity.String()).
		Str("realized_pnl", pos.RealizedPnl.String()).
		Msg("position updated")

	return pos, s.account
}

// MarkPosition applies mark-to-market to a single instrument's position
// on a new reference price and recomputes account equity. Called only by
// DummyBroker.HandleEndOfDay; positions are not marked on intermediate
// bars.
func (s *Server) MarkPosition(id symbol.InstrumentId, marketPrice decimal.Decimal, mult Multipliers, nowNs int64) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[id]
	if !ok {
		return Position{}, false
	}
	pos = MarkToMarket(pos, marketPrice, mult, nowNs)
	s.positions[id] = pos
	s.recomputeAccountLocked(nowNs)
	return pos, true
}

// ApplyCommission deducts amount from cash for a commission confirmation
// that arrives separately from the fill that incurred it — live mode's
// TRADE_COMMISSION event, per spec.md §9 ("commission arrives as a
// separate TRADE_COMMISSION event in live mode but inline in backtest").
// Reconciliation lands on the account's cash/equity rather than rewriting
// the already-published Trade record, since Trade is emitted once at
// fill time; the gross cash effect still holds the equity invariant of
// spec.md §8 property 1.
func (s *Server) ApplyCommission(amount decimal.Decimal, nowNs int64) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account.Cash = s.account.Cash.Sub(amount)
	s.recomputeAccountLocked(nowNs)
	return s.account
}

// recomputeAccountLocked restores the equity invariant: equity == cash +
// Σ position.market_value. Caller must hold s.mu.
func (s *Server) recomputeAccountLocked(nowNs int64) {
	totalValue := decimal.Zero
	totalUnrealized := decimal.Zero
	totalMargin := decimal.Zero
	for _, pos := range s.positions {
		totalValue = totalValue.Add(pos.MarketValue)
		totalUnrealized = totalUnrealized.Add(pos.UnrealizedPnl)
		totalMargin = totalMargin.Add(pos.MarginRequired)
	}
	s.account.Equity = s.account.Cash.Add(totalValue)
	s.account.UnrealizedPnl = totalUnrealized
	s.account.FullInitMargin = totalMargin
	s.account.BuyingPower = s.account.Cash.Sub(totalMargin).Add(totalUnrealized)
	s.account.TimestampNs = nowNs
}

// Positions returns a snapshot slice of every currently open position.
func (s *Server) Positions() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// Position returns the current position for an instrument, if any.
func (s *Server) Position(id symbol.InstrumentId) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	return p, ok
}

// Account returns a snapshot of the current account state.
func (s *Server) Account() Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// PutActiveOrder inserts or updates an order in the active-order ledger.
func (s *Server) PutActiveOrder(o ActiveOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Status == OrderStatusFilled || o.Status == OrderStatusCancelled {
		delete(s.orders, o.OrderID)
		return
	}
	s.orders[o.OrderID] = o
}

// ActiveOrders returns a snapshot slice of every order still working.
func (s *Server) ActiveOrders() []ActiveOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ActiveOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out
}

// AvailableForMargin reports cash plus available unrealized P&L, the
// buying-power test the execution engine runs before accepting an order:
// initial_margin * qty <= cash + sum(unrealized_pnl_available).
func (s *Server) AvailableForMargin() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := s.account.Cash
	for _, p := range s.positions {
		total = total.Add(p.UnrealizedPnl)
	}
	return total
}

// Run drains ORDER_UPDATE events off the bus purely to refresh the
// active-order ledger for subscribers that only observe the bus (e.g. a
// session writer running in a different goroutine than the execution
// engine that calls ApplyTrade/PutActiveOrder directly). It exits when
// ctx is cancelled or the bus signals shutdown.
//
// Server does not additionally subscribe to TRADE/TRADE_COMMISSION/
// POSITION_UPDATE/ACCOUNT_UPDATE: both DummyBroker and LiveBroker hold a
// direct reference to this Server and call ApplyTrade/ApplyCommission/
// MarkPosition themselves before publishing those topics, so the
// authoritative state is already current by the time a subscriber
// observes the corresponding bus event. A Server-side subscription to
// the same topics would double-apply every fill the brokers already
// applied synchronously.
func (s *Server) Run(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe(bus.TopicOrderUpdate)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		evt, ok := sub.Next()
		if !ok {
			return
		}
		order, ok := evt.Payload.(ActiveOrder)
		if !ok {
			continue
		}
		s.PutActiveOrder(order)
	}
}
