// Package performance accumulates every trade, signal, and equity sample
// produced during a run and writes the JSON session artifact of
// spec.md §6 at shutdown, adapted from the retrieved sherwood
// backtesting package's Sharpe/drawdown/win-rate formulas (CalculateMetrics)
// split across the artifact's static_stats/regression_stats/
// timeseries_stats sections, and its database package's sqlx +
// modernc.org/sqlite pattern for a session index.
package performance

import "math"

// EquityPoint is one sample of the account's equity curve.
type EquityPoint struct {
	TsNs   int64   `json:"ts_ns"`
	Equity float64 `json:"equity"`
}

// StaticStats are trade-outcome statistics: win rate, profit factor,
// average win/loss — independent of when in the run a trade happened.
type StaticStats struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
}

// RegressionStats are return-distribution statistics computed from the
// equity curve's period-over-period returns.
type RegressionStats struct {
	TotalReturn      float64 `json:"total_return"`
	TotalReturnAbs   float64 `json:"total_return_abs"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	Volatility       float64 `json:"volatility"`
}

// TimeseriesStats are path-dependent statistics: drawdown and the final
// equity level.
type TimeseriesStats struct {
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownAbs float64 `json:"max_drawdown_abs"`
	FinalEquity    float64 `json:"final_equity"`
}

// computeStatic derives StaticStats from a list of realized PnL deltas,
// one per fill that closed some or all of a position (realized PnL is
// carried on portfolio.Position, not portfolio.Trade itself, since a
// single fill can partially close a position and partially open a new
// one — the session writer computes each delta as it observes
// POSITION_UPDATE events and passes the deltas in here).
// one per closing fill, following the retrieved CalculateMetrics' trade
// loop.
func computeStatic(realizedPnls []float64) StaticStats {
	s := StaticStats{TotalTrades: len(realizedPnls)}

	var grossProfit, grossLoss float64
	for _, pnl := range realizedPnls {
		switch {
		case pnl > 0:
			s.WinningTrades++
			grossProfit += pnl
		case pnl < 0:
			s.LosingTrades++
			grossLoss += -pnl
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}
	if s.WinningTrades > 0 {
		s.AverageWin = grossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = grossLoss / float64(s.LosingTrades)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	}
	return s
}

// computeRegression derives RegressionStats from the equity curve,
// following the retrieved CalculateMetrics' Sharpe/annualized-return
// formulas (252 trading days/year, zero risk-free rate baseline unless
// riskFreeRate shifts the mean return).
func computeRegression(curve []EquityPoint, initialCapital, riskFreeRate float64) RegressionStats {
	var r RegressionStats
	if len(curve) == 0 {
		return r
	}

	finalEquity := curve[len(curve)-1].Equity
	r.TotalReturnAbs = finalEquity - initialCapital
	if initialCapital > 0 {
		r.TotalReturn = r.TotalReturnAbs / initialCapital * 100
	}

	if len(curve) < 2 {
		return r
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) == 0 {
		return r
	}

	var mean float64
	for _, v := range returns {
		mean += v
	}
	mean /= float64(len(returns))

	var variance float64
	for _, v := range returns {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)

	r.Volatility = stdDev * 100
	dailyRiskFree := riskFreeRate / 252
	if stdDev > 0 {
		r.SharpeRatio = ((mean - dailyRiskFree) / stdDev) * math.Sqrt(252)
	}

	years := float64(len(curve)) / 252.0
	if years > 0 && finalEquity > 0 && initialCapital > 0 {
		r.AnnualizedReturn = (math.Pow(finalEquity/initialCapital, 1/years) - 1) * 100
	}
	return r
}

// computeTimeseries derives TimeseriesStats (drawdown, final equity) by
// walking the equity curve once, tracking the running peak.
func computeTimeseries(curve []EquityPoint, initialCapital float64) TimeseriesStats {
	var t TimeseriesStats
	if len(curve) == 0 {
		return t
	}
	t.FinalEquity = curve[len(curve)-1].Equity

	peak := initialCapital
	for _, pt := range curve {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak <= 0 {
			continue
		}
		ddAbs := peak - pt.Equity
		dd := ddAbs / peak * 100
		if dd > t.MaxDrawdown {
			t.MaxDrawdown = dd
			t.MaxDrawdownAbs = ddAbs
		}
	}
	return t
}
