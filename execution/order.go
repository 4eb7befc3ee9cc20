// Package execution implements the ExecutionEngine: the DummyBroker that
// simulates fills against recorded market data in backtest, and the
// LiveBroker that submits orders to a real venue over HTTP/WebSocket. It
// generalizes the retrieved sherwood execution package's Broker interface
// and PaperBroker fill simulation from a flat buy/sell model to signed
// quantities, multiplier-aware fees/margin, and futures rollover.
package execution

import (
	"github.com/shopspring/decimal"

	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/symbol"
)

// Order is a typed instruction produced by the OrderManager and consumed
// by a Broker. Quantity is always positive; Action carries direction.
type Order struct {
	OrderID      uint64
	SignalID     uint64
	InstrumentId symbol.InstrumentId
	Action       portfolio.Action
	Quantity     decimal.Decimal
	TsNs         int64
}

// Broker is the capability set an execution backend must implement,
// narrowing the teacher's Broker interface (Connect/Disconnect/
// PlaceOrder/CancelOrder/Get*) to the subset this engine drives directly;
// the rest (order/position/balance queries) is served by the portfolio
// package instead of re-queried from the broker on every read.
type Broker interface {
	Name() string
	Connect() error
	Disconnect() error
	IsConnected() bool

	// Submit processes an Order and returns an error describing why it
	// was rejected, if it was. DummyBroker fills synchronously and returns
	// the resulting Trade (fees included); LiveBroker returns a zero Trade
	// and publishes the fill on TRADE when the venue reports it.
	Submit(order Order) (portfolio.Trade, error)
}
