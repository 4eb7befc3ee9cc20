package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midastrader/midas/marketdata"
	"github.com/midastrader/midas/strategy"
)

func bar(ts int64, close float64) marketdata.Record {
	return marketdata.Record{
		Type:    marketdata.RecordOhlcvBar,
		TsEvent: ts,
		Bar:     marketdata.OhlcvBar{Close: marketdata.ToScaled(close)},
	}
}

func TestMACrossoverRejectsInvalidPeriods(t *testing.T) {
	_, err := strategy.NewMACrossover(map[string]interface{}{"short_period": 20, "long_period": 10})
	assert.Error(t, err)
}

func TestMACrossoverEmitsSignalOnCrossover(t *testing.T) {
	s, err := strategy.NewMACrossover(map[string]interface{}{"short_period": 2, "long_period": 3})
	require.NoError(t, err)

	prices := []float64{100, 100, 100, 90, 120, 125}
	var lastSignal *strategy.Signal
	for i, p := range prices {
		sig, err := s.HandleEvent(bar(int64(i), p))
		require.NoError(t, err)
		if sig != nil {
			lastSignal = sig
		}
	}

	require.NotNil(t, lastSignal)
	assert.Equal(t, strategy.ActionLong, lastSignal.Instructions[0].Action)
}

func TestMACrossoverStrategyDataReportsLastClose(t *testing.T) {
	s, err := strategy.NewMACrossover(map[string]interface{}{"short_period": 2, "long_period": 3})
	require.NoError(t, err)

	s.HandleEvent(bar(1, 100))
	s.HandleEvent(bar(2, 105))

	data := s.StrategyData()
	assert.Equal(t, 105.0, data["last_close"])
}
