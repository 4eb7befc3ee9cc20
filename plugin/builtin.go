package plugin

import (
	"github.com/midastrader/midas/coreengine"
	"github.com/midastrader/midas/strategy"
)

// init registers every strategy and risk model this module ships with.
// A plugin built outside this module registers its own constructors the
// same way, from its own init(), without needing to touch this file.
func init() {
	RegisterStrategy("ma_crossover", func(config map[string]interface{}) (strategy.Strategy, error) {
		return strategy.NewMACrossover(config)
	})
	RegisterStrategy("rsi_momentum", func(config map[string]interface{}) (strategy.Strategy, error) {
		return strategy.NewRSIMomentum(config)
	})

	RegisterRiskModel("max_position", func(config map[string]interface{}) (coreengine.RiskModel, error) {
		maxWeight := 0.0
		if v, ok := config["max_weight"]; ok {
			switch n := v.(type) {
			case float64:
				maxWeight = n
			case int:
				maxWeight = float64(n)
			case int64:
				maxWeight = float64(n)
			}
		}
		return coreengine.MaxPositionRisk{MaxWeight: maxWeight}, nil
	})
}
