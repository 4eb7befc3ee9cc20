// Package marketdata defines the market record wire model and the
// OrderBook component that tracks the latest record per instrument.
package marketdata

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/midastrader/midas/symbol"
)

// RecordType tags the variant carried by a MarketRecord.
type RecordType uint8

const (
	RecordOhlcvBar RecordType = iota
	RecordBboQuote
	RecordEndOfDay
)

// PriceScale is the fixed-point scale applied to every scaled price field
// in the wire format: one unit equals 1e-9 of the quoted currency.
const PriceScale = 1_000_000_000

// OhlcvBar carries an aggregated open/high/low/close/volume sample. Prices
// are pre-scaled by PriceScale (i.e. already integer nanounits) to match the
// wire format of spec.md §6; Float converts back for strategy
// consumption.
type OhlcvBar struct {
	Open, High, Low, Close int64
	Volume                 int64
}

// Float converts a PriceScale-scaled int64 to a float64 currency amount.
func Float(scaled int64) float64 {
	return float64(scaled) / PriceScale
}

// ToScaled converts a float64 currency amount to a PriceScale-scaled int64.
func ToScaled(price float64) int64 {
	return int64(price * PriceScale)
}

// ScaledDecimal converts a PriceScale-scaled int64 to a decimal.Decimal,
// used wherever a wire price feeds the float-free portfolio arithmetic in
// package portfolio.
func ScaledDecimal(scaled int64) decimal.Decimal {
	return decimal.NewFromInt(scaled).Div(decimal.NewFromInt(PriceScale))
}

// BookLevel is one level of market depth on one side of the book.
type BookLevel struct {
	BidPx, AskPx int64
	BidSz, AskSz uint32
	BidCt, AskCt uint32
}

// BboQuote carries a best-bid/best-offer snapshot plus up to N depth
// levels (N=10 per spec.md §6).
type BboQuote struct {
	BidPx, AskPx int64
	Size         uint32
	Side         uint8 // 0 = none, 1 = bid, 2 = ask
	Flags        uint8
	TsRecv       int64
	Sequence     uint32
	Levels       [10]BookLevel
}

// EndOfDay carries no extra payload: its presence on the DATA topic is the
// signal itself.
type EndOfDay struct{}

// Record is the tagged-variant market record. Exactly one of Bar/Quote is
// populated depending on Type; EndOfDay populates neither.
type Record struct {
	Type         RecordType
	InstrumentId symbol.InstrumentId
	TsEvent      int64 // UTC nanoseconds since epoch
	RolloverFlag bool

	Bar   OhlcvBar
	Quote BboQuote
}

// Close returns the record's closing/reference price as a float (the
// bid/ask midpoint for a BboQuote), used for end-of-day mark-to-market,
// weight-based order sizing and strategy indicators. Returns (0, false)
// for EndOfDay records.
func (r Record) Close() (float64, bool) {
	switch r.Type {
	case RecordOhlcvBar:
		return Float(r.Bar.Close), true
	case RecordBboQuote:
		mid := (r.Quote.BidPx + r.Quote.AskPx) / 2
		return Float(mid), true
	default:
		return 0, false
	}
}

func (r Record) String() string {
	switch r.Type {
	case RecordOhlcvBar:
		return fmt.Sprintf("Bar{instrument=%d ts=%d close=%.4f}", r.InstrumentId, r.TsEvent, Float(r.Bar.Close))
	case RecordBboQuote:
		return fmt.Sprintf("Bbo{instrument=%d ts=%d bid=%.4f ask=%.4f}", r.InstrumentId, r.TsEvent, Float(r.Quote.BidPx), Float(r.Quote.AskPx))
	case RecordEndOfDay:
		return fmt.Sprintf("EOD{instrument=%d ts=%d}", r.InstrumentId, r.TsEvent)
	default:
		return "Record{unknown}"
	}
}
