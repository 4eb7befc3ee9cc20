package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midastrader/midas/strategy"
)

func TestRSIMomentumRejectsInvalidThresholds(t *testing.T) {
	_, err := strategy.NewRSIMomentum(map[string]interface{}{"overbought": 30, "oversold": 70})
	assert.Error(t, err)
}

func TestRSIMomentumEmitsLongWhenOversold(t *testing.T) {
	s, err := strategy.NewRSIMomentum(map[string]interface{}{"period": 3, "oversold": 30, "overbought": 70})
	require.NoError(t, err)

	prices := []float64{100, 98, 95, 90, 85, 80}
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
