package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/midastrader/midas/symbol"
)

// Account is the run's cash/equity/margin snapshot. Equity invariant (held
// by Server.recomputeAccountLocked, never by direct mutation):
// equity == cash + Σ position.market_value.
type Account struct {
	Cash           decimal.Decimal
	BuyingPower    decimal.Decimal
	Equity         decimal.Decimal
	FullInitMargin decimal.Decimal
	UnrealizedPnl  decimal.Decimal
	Currency       symbol.Currency
	TimestampNs    int64
}

