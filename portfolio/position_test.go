package portfolio_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/symbol"
)

func unitMult() portfolio.Multipliers {
	return portfolio.Multipliers{
		PriceMultiplier:    decimal.NewFromInt(1),
		QuantityMultiplier: decimal.NewFromInt(1),
		InitialMargin:      decimal.NewFromInt(1),
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplyFillSameSignAverages(t *testing.T) {
	pos := portfolio.Position{InstrumentId: 1, Quantity: dec("10"), AvgCost: dec("100")}
	pos = portfolio.ApplyFill(pos, portfolio.ActionLong, dec("10"), dec("110"), unitMult(), 1)

	assert.True(t, dec("20").Equal(pos.Quantity))
	assert.True(t, dec("105").Equal(pos.AvgCost))
}

func TestApplyFillOppositeSignPartialClose(t *testing.T) {
	pos := portfolio.Position{InstrumentId: 1, Quantity: dec("10"), AvgCost: dec("100")}
	pos = portfolio.ApplyFill(pos, portfolio.ActionSell, dec("4"), dec("110"), unitMult(), 1)

	assert.True(t, dec("6").Equal(pos.Quantity))
	assert.True(t, dec("100").Equal(pos.AvgCost))
	assert.True(t, dec("40").Equal(pos.RealizedPnl))
}

func TestApplyFillOppositeSignFullCloseAndFlip(t *testing.T) {
	pos := portfolio.Position{InstrumentId: 1, Quantity: dec("10"), AvgCost: dec("100")}
	pos = portfolio.ApplyFill(pos, portfolio.ActionSell, dec("15"), dec("110"), unitMult(), 1)

	assert.True(t, dec("-5").Equal(pos.Quantity))
	assert.True(t, dec("110").Equal(pos.AvgCost))
	assert.True(t, dec("100").Equal(pos.RealizedPnl))
}

func TestApplyFillToZeroDropsAvgCost(t *testing.T) {
	pos := portfolio.Position{InstrumentId: 1, Quantity: dec("10"), AvgCost: dec("100")}
	pos = portfolio.ApplyFill(pos, portfolio.ActionSell, dec("10"), dec("120"), unitMult(), 1)

	assert.True(t, pos.Quantity.IsZero())
	assert.True(t, pos.AvgCost.IsZero())
	assert.True(t, dec("200").Equal(pos.RealizedPnl))
}

func TestMarkToMarketRecomputesMarketValue(t *testing.T) {
	pos := portfolio.Position{InstrumentId: 1, Quantity: dec("10"), AvgCost: dec("100")}
	pos = portfolio.MarkToMarket(pos, dec("105"), unitMult(), 2)

	assert.True(t, dec("1050").Equal(pos.MarketValue))
	assert.True(t, dec("50").Equal(pos.UnrealizedPnl))
}

func TestServerApplyTradeHoldsEquityInvariant(t *testing.T) {
	srv := portfolio.New(dec("10000"), symbol.USD, testLogger())

	_, acct := srv.ApplyTrade(portfolio.Trade{
		TradeID:      1,
		InstrumentId: 1,
		Action:       portfolio.ActionLong,
		Quantity:     dec("10"),
		Price:        dec("100"),
		Fees:         dec("1"),
		TsNs:         1,
	}, unitMult())

	pos, ok := srv.Position(1)
	require.True(t, ok)

	sumMarketValue := pos.MarketValue
	assert.True(t, acct.Cash.Add(sumMarketValue).Equal(acct.Equity))
	assert.True(t, dec("8999").Equal(acct.Cash))
}

func TestServerMarkPositionUpdatesEquity(t *testing.T) {
	srv := portfolio.New(dec("10000"), symbol.USD, testLogger())
	srv.ApplyTrade(portfolio.Trade{
		TradeID: 1, InstrumentId: 1, Action: portfolio.ActionLong,
		Quantity: dec("10"), Price: dec("100"), Fees: dec("0"), TsNs: 1,
	}, unitMult())

	_, ok := srv.MarkPosition(1, dec("110"), unitMult(), 2)
	require.True(t, ok)

	acct := srv.Account()
	assert.True(t, dec("100").Equal(acct.UnrealizedPnl))
	assert.True(t, dec("10100").Equal(acct.Equity))
}
