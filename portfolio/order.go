package portfolio

import "github.com/shopspring/decimal"

// OrderStatus is the lifecycle state of an ActiveOrder, following the
// teacher's Order/OrderStatus naming (models/order.go) narrowed to the
// states this engine actually produces.
type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ActiveOrder is a working order tracked by the portfolio until it
// reaches a terminal status (Filled or Cancelled), at which point the
// server removes it from the active-order ledger.
type ActiveOrder struct {
	OrderID      uint64
	SignalID     uint64
	InstrumentId uint32
	Action       Action
	Quantity     decimal.Decimal
	Status       OrderStatus
}

// Trade is a single fill record, carrying its own monotonic trade_id so
// commission events (published separately on TRADE_COMMISSION) can be
// reconciled against the trade they belong to after the fact.
type Trade struct {
	TradeID      uint64
	OrderID      uint64
	InstrumentId uint32
	Action       Action
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	Fees         decimal.Decimal
	TsNs         int64
	IsRollover   bool
}
