// Package plugin is the name-keyed registry that stands in for
// original_source's (module_file_path, class_name) dynamic import: Go
// strategies and risk models register a constructor under a string key
// at init() time, and config names that key instead of a file path plus
// class name, generalizing the retrieved sherwood factory's
// NewStrategyByName switch statement into an open, registration-based
// lookup any package can extend without editing this one.
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/midastrader/midas/coreengine"
	"github.com/midastrader/midas/strategy"
)

// StrategyFactory constructs a strategy.Strategy from its TOML config
// table.
type StrategyFactory func(config map[string]interface{}) (strategy.Strategy, error)

// RiskModelFactory constructs a coreengine.RiskModel from its TOML
// config table.
type RiskModelFactory func(config map[string]interface{}) (coreengine.RiskModel, error)

var (
	mu         sync.RWMutex
	strategies = make(map[string]StrategyFactory)
	riskModels = make(map[string]RiskModelFactory)
)

// RegisterStrategy makes a strategy constructor available under name.
// Intended to be called from an init() function in the package that
// defines the strategy, the way the teacher's concrete strategy files
// would otherwise be wired into one central switch statement.
func RegisterStrategy(name string, factory StrategyFactory) {
	mu.Lock()
	defer mu.Unlock()
	strategies[name] = factory
}

// RegisterRiskModel makes a risk model constructor available under name.
func RegisterRiskModel(name string, factory RiskModelFactory) {
	mu.Lock()
	defer mu.Unlock()
	riskModels[name] = factory
}

// NewStrategy builds a strategy.Strategy by its registered name,
// following the teacher's NewStrategyByName error-message shape
// (unknown names report what is available).
func NewStrategy(name string, config map[string]interface{}) (strategy.Strategy, error) {
	mu.RLock()
	factory, ok := strategies[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("plugin: unknown strategy %q (available: %v)", name, AvailableStrategies())
	}
	return factory(config)
}

// NewRiskModel builds a coreengine.RiskModel by its registered name.
func NewRiskModel(name string, config map[string]interface{}) (coreengine.RiskModel, error) {
	mu.RLock()
	factory, ok := riskModels[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("plugin: unknown risk model %q (available: %v)", name, AvailableRiskModels())
	}
	return factory(config)
}

// AvailableStrategies lists every registered strategy name, sorted for
// stable error messages and log output.
func AvailableStrategies() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AvailableRiskModels lists every registered risk model name.
func AvailableRiskModels() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(riskModels))
	for name := range riskModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
