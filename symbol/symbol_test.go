package symbol_test

import (
	"testing"

	"github.com/midastrader/midas/symbol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stockSymbol(ticker string) symbol.Symbol {
	return symbol.Symbol{
		BrokerTicker:       ticker,
		DataTicker:         ticker,
		MidasTicker:        ticker,
		SecurityType:       symbol.Stock,
		Currency:           symbol.USD,
		Venue:              "NASDAQ",
		FeesPerUnit:        0.1,
		QuantityMultiplier: 1,
		PriceMultiplier:    1,
	}
}

func TestMapRegisterAssignsStableIDs(t *testing.T) {
	m := symbol.NewMap()

	id1, err := m.Register(stockSymbol("AAPL"))
	require.NoError(t, err)
	id2, err := m.Register(stockSymbol("MSFT"))
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)

	s, ok := m.ByID(id1)
	require.True(t, ok)
	assert.Equal(t, "AAPL", s.MidasTicker)

	s2, ok := m.ByTicker("MSFT")
	require.True(t, ok)
	assert.Equal(t, id2, s2.InstrumentId)
}

func TestMapRejectsDuplicateTicker(t *testing.T) {
	m := symbol.NewMap()
	_, err := m.Register(stockSymbol("AAPL"))
	require.NoError(t, err)

	_, err = m.Register(stockSymbol("AAPL"))
	assert.Error(t, err)
}

func TestMapSealRejectsFurtherRegistration(t *testing.T) {
	m := symbol.NewMap()
	_, err := m.Register(stockSymbol("AAPL"))
	require.NoError(t, err)

	m.Seal()

	_, err = m.Register(stockSymbol("MSFT"))
	assert.Error(t, err)
}

func TestFutureRequiresContractSize(t *testing.T) {
	s := symbol.Symbol{
		MidasTicker:        "HE.n.0",
		SecurityType:       symbol.Future,
		QuantityMultiplier: 1,
		PriceMultiplier:    1,
		Future: symbol.FutureDetails{
			Calendar: "cme_lean_hogs",
		},
	}
	assert.Error(t, s.Validate())

	s.Future.ContractSize = 40000
	assert.NoError(t, s.Validate())
}

func TestTickerIndexResolvesNativeTicker(t *testing.T) {
	m := symbol.NewMap()
	sym := stockSymbol("AAPL")
	sym.DataTicker = "AAPL.NATIVE"
	id, err := m.Register(sym)
	require.NoError(t, err)
	m.Seal()

	idx := symbol.NewTickerIndex(m, func(s symbol.Symbol) string { return s.DataTicker })
	got, ok := idx.Resolve("AAPL.NATIVE")
	require.True(t, ok)
	assert.Equal(t, id, got)
}
