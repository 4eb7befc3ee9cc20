package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStaticCountsWinsAndLosses(t *testing.T) {
	s := computeStatic([]float64{100, -50, 25, -10, -5})
	assert.Equal(t, 5, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 3, s.LosingTrades)
	assert.InDelta(t, 40.0, s.WinRate, 0.001)
	assert.InDelta(t, 62.5, s.AverageWin, 0.001)
	assert.InDelta(t, 21.666, s.AverageLoss, 0.01)
	assert.InDelta(t, 125.0/65.0, s.ProfitFactor, 0.001)
}

func TestComputeStaticHandlesNoTrades(t *testing.T) {
	s := computeStatic(nil)
	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 0.0, s.WinRate)
	assert.Equal(t, 0.0, s.ProfitFactor)
}

func TestComputeRegressionFlatCurveHasZeroVolatility(t *testing.T) {
	curve := []EquityPoint{{TsNs: 1, Equity: 100000}, {TsNs: 2, Equity: 100000}, {TsNs: 3, Equity: 100000}}
	r := computeRegression(curve, 100000, 0)
	assert.Equal(t, 0.0, r.TotalReturn)
	assert.Equal(t, 0.0, r.Volatility)
	assert.Equal(t, 0.0, r.SharpeRatio)
}

func TestComputeRegressionRisingCurveHasPositiveReturn(t *testing.T) {
	curve := []EquityPoint{{Equity: 100000}, {Equity: 101000}, {Equity: 102500}}
	r := computeRegression(curve, 100000, 0)
	assert.Greater(t, r.TotalReturn, 0.0)
	assert.InDelta(t, 2.5, r.TotalReturn, 0.001)
	assert.Greater(t, r.SharpeRatio, 0.0)
}

func TestComputeTimeseriesTracksMaxDrawdown(t *testing.T) {
	curve := []EquityPoint{
		{Equity: 100000},
		{Equity: 110000},
		{Equity: 95000},
		{Equity: 105000},
	}
	ts := computeTimeseries(curve, 100000)
	assert.InDelta(t, 15000.0, ts.MaxDrawdownAbs, 0.001)
	assert.InDelta(t, 15000.0/110000.0*100, ts.MaxDrawdown, 0.001)
	assert.Equal(t, 105000.0, ts.FinalEquity)
}

func TestComputeTimeseriesEmptyCurve(t *testing.T) {
	ts := computeTimeseries(nil, 100000)
	assert.Equal(t, 0.0, ts.FinalEquity)
	assert.Equal(t, 0.0, ts.MaxDrawdown)
}
