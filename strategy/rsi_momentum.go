package strategy

import (
	"fmt"

	"github.com/midastrader/midas/marketdata"
)

// RSIMomentum emits a LONG signal when RSI drops into oversold territory
// and a SELL signal when it rises into overbought territory, following
// the retrieved RSIStrategy's buy-oversold/sell-overbought rule.
type RSIMomentum struct {
	Base

	period      int
	overbought  float64
	oversold    float64
	closes      []float64
	lastAction  *Action
}

// NewRSIMomentum constructs an RSI momentum strategy from config
// (defaults period=14, overbought=70, oversold=30, matching the
// retrieved strategy's defaults).
func NewRSIMomentum(config map[string]interface{}) (*RSIMomentum, error) {
	base := NewBase("rsi_momentum", config)
	s := &RSIMomentum{
		Base:       base,
		period:     base.ConfigInt("period", 14),
		overbought: base.ConfigFloat("overbought", 70),
		oversold:   base.ConfigFloat("oversold", 30),
	}
	if s.period <= 0 {
		return nil, fmt.Errorf("strategy rsi_momentum: period must be positive")
	}
	if s.overbought <= s.oversold {
		return nil, fmt.Errorf("strategy rsi_momentum: overbought threshold must exceed oversold")
	}
	return s, nil
}

func (s *RSIMomentum) HandleEvent(rec marketdata.Record) (*Signal, error) {
	close, ok := rec.Close()
	if !ok {
		return nil, nil
	}

	s.closes = append(s.closes, close)
	maxLen := s.period + 1
	if len(s.closes) > maxLen {
		s.closes = s.closes[len(s.closes)-maxLen:]
	}

	value, ok := rsi(s.closes, s.period)
	if !ok {
		return nil, nil
	}
	value = clampNaN(value)

	var action Action
	var fire bool
	switch {
	case value <= s.oversold && (s.lastAction == nil || *s.lastAction != ActionLong):
		action, fire = ActionLong, true
	case value >= s.overbought && (s.lastAction == nil || *s.lastAction != ActionSell):
		action, fire = ActionSell, true
	}
	if !fire {
		return nil, nil
	}
	s.lastAction = &action

	return &Signal{
		SignalID: s.NextSignalID(),
		TsNs:     rec.TsEvent,
		Instructions: []Instruction{
			{InstrumentId: rec.InstrumentId, Action: action, Weight: s.ConfigFloat("weight", 0.1)},
		},
	}, nil
}

func (s *RSIMomentum) StrategyData() map[string]interface{} {
	data := map[string]interface{}{"period": s.period, "overbought": s.overbought, "oversold": s.oversold}
	if len(s.closes) >= s.period+1 {
		if v, ok := rsi(s.closes, s.period); ok {
			data["rsi"] = clampNaN(v)
		}
	}
	return data
}
