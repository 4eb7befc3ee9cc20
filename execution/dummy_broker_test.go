package execution_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/execution"
	"github.com/midastrader/midas/marketdata"
	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/symbol"
)

func newTestSetup(t *testing.T) (*symbol.Map, *marketdata.OrderBook, *portfolio.Server, *bus.Bus, symbol.InstrumentId) {
	t.Helper()
	m := symbol.NewMap()
	id, err := m.Register(symbol.Symbol{
		MidasTicker:        "AAPL",
		SecurityType:       symbol.Stock,
		Currency:           symbol.USD,
		FeesPerUnit:        0.1,
		QuantityMultiplier: 1,
		PriceMultiplier:    1,
		SlippageFactor:     1,
		TickSize:           0.01,
		InitialMargin:      1,
	})
	require.NoError(t, err)
	m.Seal()

	book := marketdata.NewOrderBook()
	book.Update(marketdata.Record{
		Type:         marketdata.RecordOhlcvBar,
		InstrumentId: id,
		TsEvent:      1,
		Bar:          marketdata.OhlcvBar{Close: marketdata.ToScaled(100)},
	})

	b := bus.New()
	pf := portfolio.New(decimal.NewFromInt(1_000_000), symbol.USD, zerolog.Nop())
	return m, book, pf, b, id
}

func TestDummyBrokerFillsOrderWithSlippage(t *testing.T) {
	m, book, pf, b, id := newTestSetup(t)
	broker := execution.NewDummyBroker(m, book, pf, b, zerolog.Nop())

	trade, err := broker.Submit(execution.Order{
		OrderID:      1,
		InstrumentId: id,
		Action:       portfolio.ActionLong,
		Quantity:     decimal.NewFromInt(1000),
		TsNs:         1,
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromFloat(100.01).Equal(trade.Price))
	assert.True(t, decimal.NewFromFloat(100).Equal(trade.Fees))

	acct := pf.Account()
	expectedCash := decimal.NewFromInt(1_000_000).
		Sub(trade.Price.Mul(decimal.NewFromInt(1000))).
		Sub(trade.Fees)
	assert.True(t, expectedCash.Equal(acct.Cash))
}

func TestDummyBrokerRejectsInsufficientMargin(t *testing.T) {
	m := symbol.NewMap()
	id, err := m.Register(symbol.Symbol{
		MidasTicker: "ES", SecurityType: symbol.Future, Currency: symbol.USD,
		QuantityMultiplier: 1, PriceMultiplier: 1, InitialMargin: 5000,
		Future: symbol.FutureDetails{Calendar: "cme", ContractSize: 50},
	})
	require.NoError(t, err)
	m.Seal()

	book := marketdata.NewOrderBook()
	book.Update(marketdata.Record{Type: marketdata.RecordOhlcvBar, InstrumentId: id, Bar: marketdata.OhlcvBar{Close: marketdata.ToScaled(4000)}})

	b := bus.New()
	sub := b.Subscribe(bus.TopicOrderUpdate)
	pf := portfolio.New(decimal.NewFromInt(1000), symbol.USD, zerolog.Nop())
	broker := execution.NewDummyBroker(m, book, pf, b, zerolog.Nop())

	_, err = broker.Submit(execution.Order{OrderID: 1, InstrumentId: id, Action: portfolio.ActionLong, Quantity: decimal.NewFromInt(1), TsNs: 1})
	assert.Error(t, err)

	evt, ok := sub.Next()
	require.True(t, ok)
	outcome, ok := evt.Payload.(portfolio.ActiveOrder)
	require.True(t, ok)
	assert.Equal(t, portfolio.OrderStatusCancelled, outcome.Status)

	_, hasPos := pf.Position(id)
	assert.False(t, hasPos)
}

func TestDummyBrokerRunMarksToMarketOnEndOfDay(t *testing.T) {
	m, book, pf, b, id := newTestSetup(t)
	broker := execution.NewDummyBroker(m, book, pf, b, zerolog.Nop())

	_, err := broker.Submit(execution.Order{OrderID: 1, InstrumentId: id, Action: portfolio.ActionLong, Quantity: decimal.NewFromInt(10), TsNs: 1})
	require.NoError(t, err)

	acctSub := b.Subscribe(bus.TopicAccountUpdate)

	go broker.Run()

	b.Publish(bus.TopicData, marketdata.Record{Type: marketdata.RecordEndOfDay, InstrumentId: id, TsEvent: 2})
	require.True(t, b.AwaitFlag(bus.FlagDataProcessed, true))
	b.Shutdown()

	var sawAccountUpdate bool
	for {
		_, ok := acctSub.Next()
		if !ok {
			break
		}
		sawAccountUpdate = true
	}
	assert.True(t, sawAccountUpdate)
}

func TestDummyBrokerRunLiquidatesOpenPositionsAtShutdown(t *testing.T) {
	m, book, pf, b, id := newTestSetup(t)
	broker := execution.NewDummyBroker(m, book, pf, b, zerolog.Nop())

	_, err := broker.Submit(execution.Order{OrderID: 1, InstrumentId: id, Action: portfolio.ActionLong, Quantity: decimal.NewFromInt(10), TsNs: 1})
	require.NoError(t, err)
	_, hasPos := pf.Position(id)
	require.True(t, hasPos)

	tradeSub := b.Subscribe(bus.TopicTrade)

	done := make(chan struct{})
	go func() { broker.Run(); close(done) }()

	b.Publish(bus.TopicData, marketdata.Record{Type: marketdata.RecordOhlcvBar, InstrumentId: id, TsEvent: 2})
	b.Shutdown()
	<-done

	var sawLiquidation bool
	for {
		evt, ok := tradeSub.Next()
		if !ok {
			break
		}
		if trade, ok := evt.Payload.(portfolio.Trade); ok && trade.OrderID == 0 {
			sawLiquidation = true
		}
	}
	assert.True(t, sawLiquidation)
	_, hasPos = pf.Position(id)
	assert.False(t, hasPos, "final liquidation pass should close the open position")
}
