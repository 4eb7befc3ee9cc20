package strategy

import (
	"fmt"

	"github.com/midastrader/midas/marketdata"
)

// MACrossover emits a LONG signal when the short moving average crosses
// above the long one, and a SELL signal on the reverse cross. It
// generalizes the retrieved MACrossover strategy from a batch OnData(
// []OHLCV) call to the one-event-at-a-time HandleEvent contract: each
// call appends one close price to an internal ring of length
// longPeriod and recomputes both averages from it.
type MACrossover struct {
	Base

	instrumentId    uint32
	shortPeriod     int
	longPeriod      int
	closes          []float64
	wasShortAboveMA bool
	haveState       bool
}

// NewMACrossover constructs a crossover strategy reading short/long
// periods from config (defaults 10/20, matching the retrieved strategy's
// defaults).
func NewMACrossover(config map[string]interface{}) (*MACrossover, error) {
	base := NewBase("ma_crossover", config)
	s := &MACrossover{
		Base:        base,
		shortPeriod: base.ConfigInt("short_period", 10),
		longPeriod:  base.ConfigInt("long_period", 20),
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MACrossover) validate() error {
	if s.shortPeriod <= 0 || s.longPeriod <= 0 {
		return fmt.Errorf("strategy ma_crossover: periods must be positive")
	}
	if s.shortPeriod >= s.longPeriod {
		return fmt.Errorf("strategy ma_crossover: short_period (%d) must be less than long_period (%d)", s.shortPeriod, s.longPeriod)
	}
	return nil
}

// HandleEvent appends the record's close to the ring, and once enough
// history has accumulated, emits a signal on MA crossover.
func (s *MACrossover) HandleEvent(rec marketdata.Record) (*Signal, error) {
	close, ok := rec.Close()
	if !ok {
		return nil, nil
	}
	if s.instrumentId == 0 {
		s.instrumentId = uint32(rec.InstrumentId)
	}

	s.closes = append(s.closes, close)
	if len(s.closes) > s.longPeriod {
		s.closes = s.closes[len(s.closes)-s.longPeriod:]
	}
	if len(s.closes) < s.longPeriod {
		return nil, nil
	}

	shortMA := average(s.closes[len(s.closes)-s.shortPeriod:])
	longMA := average(s.closes)
	shortAbove := shortMA > longMA

	defer func() {
		s.wasShortAboveMA = shortAbove
		s.haveState = true
	}()

	if !s.haveState || shortAbove == s.wasShortAboveMA {
		return nil, nil
	}

	action := ActionSell
	if shortAbove {
		action = ActionLong
	}

	return &Signal{
		SignalID: s.NextSignalID(),
		TsNs:     rec.TsEvent,
		Instructions: []Instruction{
			{InstrumentId: rec.InstrumentId, Action: action, Weight: s.ConfigFloat("weight", 0.1)},
		},
	}, nil
}

func (s *MACrossover) StrategyData() map[string]interface{} {
	data := map[string]interface{}{
		"short_period": s.shortPeriod,
		"long_period":  s.longPeriod,
	}
	if len(s.closes) > 0 {
		data["last_close"] = s.closes[len(s.closes)-1]
	}
	return data
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
