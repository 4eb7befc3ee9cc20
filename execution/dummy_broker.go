package execution

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/marketdata"
	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/symbol"
)

// DummyBroker simulates fills against the OrderBook's latest snapshot for
// backtest runs. It generalizes the retrieved sherwood PaperBroker's
// instant-fill simulation (SetPrice + executeBuy/executeSell) with
// slippage, per-unit/per-contract fee dispatch, a buying-power check, and
// futures EOD rollover, per spec.md §4.6.
type DummyBroker struct {
	connected atomic.Bool

	mu       sync.Mutex
	tradeSeq uint64

	symbols *symbol.Map
	book    *marketdata.OrderBook
	pf      *portfolio.Server
	b       *bus.Bus
	log     zerolog.Logger

	dataSub *bus.Subscriber
}

// NewDummyBroker wires a DummyBroker to the shared symbol map, order
// book, portfolio server, and bus for a single run. It subscribes to
// DATA immediately so Run never misses an EndOfDay record published
// between construction and the caller scheduling Run in its own
// goroutine, the same pattern coreengine.Host and BrokerRunner use.
func NewDummyBroker(symbols *symbol.Map, book *marketdata.OrderBook, pf *portfolio.Server, b *bus.Bus, log zerolog.Logger) *DummyBroker {
	return &DummyBroker{
		symbols: symbols,
		book:    book,
		pf:      pf,
		b:       b,
		log:     log.With().Str("component", "dummy_broker").Logger(),
		dataSub: b.Subscribe(bus.TopicData),
	}
}

// Run drains DATA, calling HandleEndOfDay for each EndOfDay record the
// HistoricalAdaptor publishes when a symbol's trading session closes
// (spec.md §4.5 step 4 / §4.6's "On EOD"). When the subscription drains
// (the bus has shut down and no more records are queued), it runs one
// final liquidating pass, per spec.md §4.6's "at the very last record,
// liquidate all positions at last close before shutdown."
func (d *DummyBroker) Run() {
	var lastTsNs int64
	for {
		evt, ok := d.dataSub.Next()
		if !ok {
			d.HandleEndOfDay(lastTsNs, true)
			return
		}
		rec, ok := evt.Payload.(marketdata.Record)
		if !ok {
			continue
		}
		lastTsNs = rec.TsEvent
		if rec.Type == marketdata.RecordEndOfDay {
			d.HandleEndOfDay(rec.TsEvent, false)
		}
	}
}

func (d *DummyBroker) Name() string     { return "dummy" }
func (d *DummyBroker) Connect() error    { d.connected.Store(true); return nil }
func (d *DummyBroker) Disconnect() error { d.connected.Store(false); return nil }
func (d *DummyBroker) IsConnected() bool { return d.connected.Load() }

// nextTradeID returns a monotonic per-run trade identifier.
func (d *DummyBroker) nextTradeID() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tradeSeq++
	return d.tradeSeq
}

// fillPrice computes the simulated execution price for an order from the
// order book's latest record for its instrument: OhlcvBar uses close with
// additive slippage in the side's direction; BboQuote uses the ask for
// buys and the bid for sells.
func fillPrice(rec marketdata.Record, spec symbol.ContractSpec, action portfolio.Action) decimal.Decimal {
	sign := decimal.NewFromInt(1)
	if action == portfolio.ActionSell || action == portfolio.ActionShort {
		sign = decimal.NewFromInt(-1)
	}

	switch rec.Type {
	case marketdata.RecordBboQuote:
		if sign.IsPositive() {
			return marketdata.ScaledDecimal(rec.Quote.AskPx)
		}
		return marketdata.ScaledDecimal(rec.Quote.BidPx)
	default:
		close := marketdata.ScaledDecimal(rec.Bar.Close)
		slippage := decimal.NewFromFloat(spec.SlippageFactor).Mul(decimal.NewFromFloat(spec.TickSize)).Mul(sign)
		return close.Add(slippage)
	}
}

func fees(qty decimal.Decimal, spec symbol.ContractSpec) decimal.Decimal {
	return qty.Mul(decimal.NewFromFloat(spec.FeesPerUnit))
}

// Submit processes one Order synchronously: computes the fill price and
// fees, checks buying power, applies the position update, and publishes
// TRADE + POSITION_UPDATE + ACCOUNT_UPDATE on success or ORDER_UPDATE
// Cancelled on rejection.
func (d *DummyBroker) Submit(order Order) (portfolio.Trade, error) {
	sym, ok := d.symbols.ByID(order.InstrumentId)
	if !ok {
		d.rejectOrder(order, "unknown instrument")
		return portfolio.Trade{}, errUnknownInstrument
	}
	rec, ok := d.book.Snapshot(order.InstrumentId)
	if !ok {
		d.rejectOrder(order, "no market data available")
		return portfolio.Trade{}, errNoMarketData
	}

	spec := sym.ContractSpec()
	price := fillPrice(rec, spec, order.Action)
	fee := fees(order.Quantity, spec)
	mult := contractMultipliers(spec)

	requiredMargin := decimal.NewFromFloat(spec.InitialMargin).Mul(order.Quantity)
	if requiredMargin.GreaterThan(d.pf.AvailableForMargin()) {
		d.rejectOrder(order, "insufficient buying power")
		return portfolio.Trade{}, errInsufficientMargin
	}

	trade := portfolio.Trade{
		TradeID:      d.nextTradeID(),
		OrderID:      order.OrderID,
		InstrumentId: uint32(order.InstrumentId),
		Action:       order.Action,
		Quantity:     order.Quantity,
		Price:        price,
		Fees:         fee,
		TsNs:         order.TsNs,
	}

	pos, acct := d.pf.ApplyTrade(trade, mult)

	d.b.Publish(bus.TopicTrade, trade)
	d.b.Publish(bus.TopicPositionUpdate, pos)
	d.b.Publish(bus.TopicAccountUpdate, acct)
	d.b.Publish(bus.TopicOrderUpdate, portfolio.ActiveOrder{
		OrderID:      order.OrderID,
		SignalID:     order.SignalID,
		InstrumentId: uint32(order.InstrumentId),
		Action:       order.Action,
		Quantity:     order.Quantity,
		Status:       portfolio.OrderStatusFilled,
	})

	d.log.Info().
		Uint64("trade_id", trade.TradeID).
		Uint32("instrument_id", uint32(order.InstrumentId)).
		Str("price", price.String()).
		Msg("order filled")

	return trade, nil
}

func (d *DummyBroker) rejectOrder(order Order, reason string) {
	d.b.Publish(bus.TopicOrderUpdate, portfolio.ActiveOrder{
		OrderID:      order.OrderID,
		SignalID:     order.SignalID,
		InstrumentId: uint32(order.InstrumentId),
		Action:       order.Action,
		Quantity:     order.Quantity,
		Status:       portfolio.OrderStatusCancelled,
	})
	d.log.Warn().Uint64("order_id", order.OrderID).Str("reason", reason).Msg("order rejected")
}

func contractMultipliers(spec symbol.ContractSpec) portfolio.Multipliers {
	return portfolio.Multipliers{
		PriceMultiplier:    decimal.NewFromFloat(spec.PriceMultiplier),
		QuantityMultiplier: decimal.NewFromFloat(spec.QuantityMultiplier),
		InitialMargin:      decimal.NewFromFloat(spec.InitialMargin),
	}
}

// HandleEndOfDay runs the EOD bookkeeping pass for every instrument in
// the symbol map: futures rollover on rollover days, mark-to-market for
// everything, then releases the DATA_PROCESSED barrier. liquidate, when
// true, additionally closes every open position at its last close price
// — used on the final record of a backtest.
func (d *DummyBroker) HandleEndOfDay(nowNs int64, liquidate bool) {
	for _, sym := range d.symbols.All() {
		pos, ok := d.pf.Position(sym.InstrumentId)
		if !ok {
			continue
		}
		rec, ok := d.book.Snapshot(sym.InstrumentId)
		if !ok {
			continue
		}
		closePx, ok := rec.Close()
		if !ok {
			continue
		}
		settlePx := decimal.NewFromFloat(closePx)
		mult := contractMultipliers(sym.ContractSpec())

		if sym.SecurityType == symbol.Future && IsRolloverDay(nowNs, sym.Future) {
			d.rollover(sym, pos, settlePx, mult, nowNs)
			continue
		}

		if liquidate && !pos.Quantity.IsZero() {
			d.liquidate(sym, pos, settlePx, mult, nowNs)
			continue
		}

		newPos, _ := d.pf.MarkPosition(sym.InstrumentId, settlePx, mult, nowNs)
		d.b.Publish(bus.TopicPositionUpdate, newPos)
	}

	d.b.Publish(bus.TopicAccountUpdate, d.pf.Account())
	d.b.SetFlag(bus.FlagDataProcessed, true)
}

// rollover closes the expiring contract at settlePx and re-opens the same
// signed quantity on the next contract month, emitting two Trades with
// is_rollover=true per spec.md §4.6. The re-open also prices at settlePx
// (the expiring contract's settle) rather than the forward contract's own
// settle spec.md's S2 scenario illustrates (80.00 vs 80.10): this engine
// has no forward-contract price feed wired, so settlePx is the closest
// price available at rollover time. See DESIGN.md's Open Questions.
func (d *DummyBroker) rollover(sym symbol.Symbol, pos portfolio.Position, settlePx decimal.Decimal, mult portfolio.Multipliers, nowNs int64) {
	closeAction := portfolio.ActionSell
	if pos.Quantity.IsNegative() {
		closeAction = portfolio.ActionCover
	}

	closeTrade := portfolio.Trade{
		TradeID: d.nextTradeID(), InstrumentId: uint32(sym.InstrumentId),
		Action: closeAction, Quantity: pos.Quantity.Abs(), Price: settlePx,
		TsNs: nowNs, IsRollover: true,
	}
	d.pf.ApplyTrade(closeTrade, mult)
	d.b.Publish(bus.TopicTrade, closeTrade)

	openAction := portfolio.ActionLong
	if pos.Quantity.IsNegative() {
		openAction = portfolio.ActionShort
	}
	openTrade := portfolio.Trade{
		TradeID: d.nextTradeID(), InstrumentId: uint32(sym.InstrumentId),
		Action: openAction, Quantity: pos.Quantity.Abs(), Price: settlePx,
		TsNs: nowNs, IsRollover: true,
	}
	newPos, acct := d.pf.ApplyTrade(openTrade, mult)
	d.b.Publish(bus.TopicTrade, openTrade)
	d.b.Publish(bus.TopicPositionUpdate, newPos)
	d.b.Publish(bus.TopicAccountUpdate, acct)

	d.log.Info().
		Uint32("instrument_id", uint32(sym.InstrumentId)).
		Msg("futures position rolled over")
	d.b.SetFlag(bus.FlagRolledOver, true)
}

// liquidate fully closes pos at lastClose, used on the final record of a
// backtest before shutdown.
func (d *DummyBroker) liquidate(sym symbol.Symbol, pos portfolio.Position, lastClose decimal.Decimal, mult portfolio.Multipliers, nowNs int64) {
	action := portfolio.ActionSell
	if pos.Quantity.IsNegative() {
		action = portfolio.ActionCover
	}
	trade := portfolio.Trade{
		TradeID: d.nextTradeID(), InstrumentId: uint32(sym.InstrumentId),
		Action: action, Quantity: pos.Quantity.Abs(), Price: lastClose, TsNs: nowNs,
	}
	newPos, acct := d.pf.ApplyTrade(trade, mult)
	d.b.Publish(bus.TopicTrade, trade)
	d.b.Publish(bus.TopicPositionUpdate, newPos)
	d.b.Publish(bus.TopicAccountUpdate, acct)
}
