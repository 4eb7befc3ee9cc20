package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midastrader/midas/plugin"
	"github.com/midastrader/midas/strategy"
)

func TestNewStrategyBuildsRegisteredBuiltin(t *testing.T) {
	s, err := plugin.NewStrategy("ma_crossover", map[string]interface{}{"short_period": 5, "long_period": 10})
	require.NoError(t, err)
	assert.Equal(t, "ma_crossover", s.Name())
}

func TestNewStrategyUnknownNameReportsAvailable(t *testing.T) {
	_, err := plugin.NewStrategy("does_not_exist", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ma_crossover")
}

func TestNewRiskModelBuildsRegisteredBuiltin(t *testing.T) {
	r, err := plugin.NewRiskModel("max_position", map[string]interface{}{"max_weight": 0.25})
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestNewRiskModelUnknownNameReportsAvailable(t *testing.T) {
	_, err := plugin.NewRiskModel("does_not_exist", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_position")
}

func TestRegisterStrategyAddsCustomEntry(t *testing.T) {
	plugin.RegisterStrategy("noop_custom", func(config map[string]interface{}) (strategy.Strategy, error) {
		return strategy.NewMACrossover(config)
	})
	assert.Contains(t, plugin.AvailableStrategies(), "noop_custom")
}
