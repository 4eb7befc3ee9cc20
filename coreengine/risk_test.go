package coreengine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/midastrader/midas/coreengine"
	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/strategy"
	"github.com/midastrader/midas/symbol"
)

func TestMaxPositionRiskCapsWeight(t *testing.T) {
	risk := coreengine.MaxPositionRisk{MaxWeight: 0.1}
	out := risk.Evaluate([]strategy.Instruction{
		{InstrumentId: symbol.InstrumentId(1), Action: strategy.ActionLong, Weight: 0.5},
	}, portfolio.Account{Equity: decimal.NewFromInt(100)})

	assert.Equal(t, 0.1, out[0].Weight)
}

func TestMaxPositionRiskPassesThroughWhenUnderCap(t *testing.T) {
	risk := coreengine.MaxPositionRisk{MaxWeight: 0.5}
	out := risk.Evaluate([]strategy.Instruction{
		{InstrumentId: symbol.InstrumentId(1), Action: strategy.ActionLong, Weight: 0.1},
	}, portfolio.Account{})

	assert.Equal(t, 0.1, out[0].Weight)
}

func TestMaxPositionRiskZeroDisablesCap(t *testing.T) {
	risk := coreengine.MaxPositionRisk{}
	out := risk.Evaluate([]strategy.Instruction{
		{InstrumentId: symbol.InstrumentId(1), Action: strategy.ActionLong, Weight: 0.9},
	}, portfolio.Account{})

	assert.Equal(t, 0.9, out[0].Weight)
}
