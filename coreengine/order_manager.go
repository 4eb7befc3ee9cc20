// Package coreengine hosts a strategy against the ORDER_BOOK topic and
// converts its signals into sized orders, generalizing the retrieved
// sherwood OrderManager (validate → risk-check → broker.PlaceOrder) from
// a direct-call API into the bus-mediated SIGNAL → ORDER pipeline of
// spec.md §4.7, with the in-flight signal→order counter that gates the
// UPDATE_SYSTEM barrier.
package coreengine

import (
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/midastrader/midas/execution"
	"github.com/midastrader/midas/marketdata"
	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/strategy"
	"github.com/midastrader/midas/symbol"
)

// OrderManager sizes each Instruction of a Signal into a typed Order,
// following the retrieved order_manager.go's validate-then-build shape
// (here sizing takes the place of validation, since quantity *is* the
// thing being computed).
type OrderManager struct {
	symbols  *symbol.Map
	book     *marketdata.OrderBook
	pf       *portfolio.Server
	orderSeq atomic.Uint64
}

// NewOrderManager constructs an OrderManager bound to the run's shared
// symbol map, order book, and portfolio state.
func NewOrderManager(symbols *symbol.Map, book *marketdata.OrderBook, pf *portfolio.Server) *OrderManager {
	return &OrderManager{symbols: symbols, book: book, pf: pf}
}

// Snapshot returns the current account state for a RiskModel's
// portfolio_snapshot parameter.
func (om *OrderManager) Snapshot() portfolio.Account {
	return om.pf.Account()
}

// toExecutionAction maps a strategy.Action to its portfolio.Action
// equivalent; the two enums are intentionally identical in ordering, but
// distinct types, since package strategy must not import package
// portfolio.
func toExecutionAction(a strategy.Action) portfolio.Action {
	switch a {
	case strategy.ActionLong:
		return portfolio.ActionLong
	case strategy.ActionCover:
		return portfolio.ActionCover
	case strategy.ActionShort:
		return portfolio.ActionShort
	default:
		return portfolio.ActionSell
	}
}

// BuildOrders converts every Instruction in sig into an execution.Order,
// using the explicit Quantity when it is positive, and otherwise computing
// quantity from `trade_capital = capital * weight` (capital being the
// account's current equity) divided by current price and multipliers.
// Instructions for an unknown instrument, weight-sized instructions whose
// instrument has no current market price, and instructions that size to
// zero are dropped without logging; the caller only sees a shorter
// returned slice, since BuildOrders itself stays error-free to keep signal
// processing moving per spec.md §7's strategy-fault policy.
func (om *OrderManager) BuildOrders(sig strategy.Signal) []execution.Order {
	orders := make([]execution.Order, 0, len(sig.Instructions))
	equity := om.pf.Account().Equity

	for _, ins := range sig.Instructions {
		sym, ok := om.symbols.ByID(ins.InstrumentId)
		if !ok {
			continue
		}

		var qty decimal.Decimal
		if ins.Quantity > 0 {
			qty = decimal.NewFromFloat(ins.Quantity)
		} else {
			rec, ok := om.book.Snapshot(ins.InstrumentId)
			if !ok {
				continue
			}
			price, ok := rec.Close()
			if !ok || price == 0 {
				continue
			}
			spec := sym.ContractSpec()
			tradeCapital := equity.Mul(decimal.NewFromFloat(ins.Weight))
			denom := decimal.NewFromFloat(price * spec.PriceMultiplier * spec.QuantityMultiplier)
			if denom.IsZero() {
				continue
			}
			qty = tradeCapital.Div(denom).Abs()
		}
		if qty.IsZero() {
			continue
		}

		orders = append(orders, execution.Order{
			OrderID:      om.orderSeq.Add(1),
			SignalID:     sig.SignalID,
			InstrumentId: ins.InstrumentId,
			Action:       toExecutionAction(ins.Action),
			Quantity:     qty,
			TsNs:         sig.TsNs,
		})
	}
	return orders
}
