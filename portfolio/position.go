// Package portfolio holds the authoritative position, active-order, and
// account state for a run, and implements the fill-driven position update
// algorithm. It generalizes the buy/sell bookkeeping in the retrieved
// sherwood PaperBroker (executeBuy/executeSell, average-cost position
// update) to signed quantities, opposite-side partial/full closes with
// realized P&L, and multiplier-aware mark-to-market.
package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/midastrader/midas/symbol"
)

// Action is the side of a fill, distinguishing whether it opens/adds to a
// long or closes/covers, mirroring the four-verb order model a trading
// strategy issues instructions in.
type Action int

const (
	ActionLong Action = iota
	ActionCover
	ActionShort
	ActionSell
)

// signedDelta returns the position-quantity delta a fill of this action
// and quantity contributes: positive for LONG/COVER, negative otherwise.
func (a Action) signedDelta(qtyFill decimal.Decimal) decimal.Decimal {
	switch a {
	case ActionLong, ActionCover:
		return qtyFill
	default:
		return qtyFill.Neg()
	}
}

// Position is one instrument's current holding. Invariant: Quantity == 0
// implies AvgCost == 0, and a Position is removed from the portfolio
// entirely when its quantity reaches zero.
type Position struct {
	InstrumentId    symbol.InstrumentId
	Quantity        decimal.Decimal
	AvgCost         decimal.Decimal
	MarketPrice     decimal.Decimal
	MarketValue     decimal.Decimal
	UnrealizedPnl   decimal.Decimal
	RealizedPnl     decimal.Decimal
	MarginRequired  decimal.Decimal
	LastUpdatedNs   int64
}

// Multipliers bundles the per-symbol scaling factors the position-update
// and mark-to-market formulas need, read off symbol.Symbol at fill/mark
// time rather than copied into Position itself.
type Multipliers struct {
	PriceMultiplier    decimal.Decimal
	QuantityMultiplier decimal.Decimal
	InitialMargin      decimal.Decimal
}

// ApplyFill updates pos in place for a fill of qtyFill at priceFill under
// action, per the position-update algorithm: same-sign (or flat) fills
// average the cost basis; opposite-sign fills realize P&L on the closed
// portion, partially or fully, and any excess opens a new position at
// priceFill with the new sign.
//
// Returns the position as it stands after the fill; callers drop the
// position entirely (remove from the portfolio map) when Quantity is zero.
func ApplyFill(pos Position, action Action, qtyFill, priceFill decimal.Decimal, mult Multipliers, nowNs int64) Position {
	delta := action.signedDelta(qtyFill)
	q := pos.Quantity
	avg := pos.AvgCost

	sameSignOrFlat := q.IsZero() || q.Sign() == delta.Sign()

	switch {
	case sameSignOrFlat:
		absQ := q.Abs()
		absDelta := delta.Abs()
		totalQty := absQ.Add(absDelta)
		if totalQty.IsZero() {
			pos.Quantity = decimal.Zero
			pos.AvgCost = decimal.Zero
		} else {
			newAvg := avg.Mul(absQ).Add(priceFill.Mul(absDelta)).Div(totalQty)
			pos.Quantity = q.Add(delta)
			pos.AvgCost = newAvg
		}

	case delta.Abs().LessThanOrEqual(q.Abs()):
		closedQty := decimal.Min(q.Abs(), delta.Abs())
		pos.RealizedPnl = pos.RealizedPnl.Add(signedPnl(avg, priceFill, closedQty, q.Sign()).Mul(mult.PriceMultiplier).Mul(mult.QuantityMultiplier))
		pos.Quantity = q.Add(delta)
		pos.AvgCost = avg // unchanged

	default:
		closedQty := q.Abs()
		pos.RealizedPnl = pos.RealizedPnl.Add(signedPnl(avg, priceFill, closedQty, q.Sign()).Mul(mult.PriceMultiplier).Mul(mult.QuantityMultiplier))
		residual := delta.Abs().Sub(closedQty)
		newSign := delta.Sign()
		pos.Quantity = residual.Mul(decimal.NewFromInt(int64(newSign)))
		pos.AvgCost = priceFill
	}

	pos.LastUpdatedNs = nowNs

	if pos.Quantity.IsZero() {
		pos.AvgCost = decimal.Zero
	}

	return pos
}

// signedPnl returns the realized P&L, before multipliers, on closing
// closedQty units of a position with the given avgCost, closing fill
// price, and original position sign (+1 long, -1 short).
func signedPnl(avgCost, priceFill, closedQty decimal.Decimal, posSign int) decimal.Decimal {
	diff := priceFill.Sub(avgCost)
	if posSign < 0 {
		diff = diff.Neg()
	}
	return diff.Mul(closedQty)
}

// MarkToMarket recomputes MarketValue and UnrealizedPnl from the current
// market price, per spec.md §4.4: market_value = q · market_price ·
// price_multiplier · quantity_multiplier.
func MarkToMarket(pos Position, marketPrice decimal.Decimal, mult Multipliers, nowNs int64) Position {
	pos.MarketPrice = marketPrice
	scale := mult.PriceMultiplier.Mul(mult.QuantityMultiplier)
	pos.MarketValue = pos.Quantity.Mul(marketPrice).Mul(scale)
	pos.UnrealizedPnl = marketPrice.Sub(pos.AvgCost).Mul(pos.Quantity).Mul(scale)
	pos.MarginRequired = pos.Quantity.Abs().Mul(mult.InitialMargin)
	pos.LastUpdatedNs = nowNs
	return pos
}
