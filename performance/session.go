package performance

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/strategy"
)

// TradeRecord is one fill as it appears in the session artifact's
// trades[] array, a flattened view of portfolio.Trade with decimal
// fields converted to float64 for JSON.
type TradeRecord struct {
	TradeID      uint64  `json:"trade_id"`
	OrderID      uint64  `json:"order_id"`
	InstrumentId uint32  `json:"instrument_id"`
	Action       string  `json:"action"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	Fees         float64 `json:"fees"`
	TsNs         int64   `json:"ts_ns"`
	IsRollover   bool    `json:"is_rollover"`
}

// SignalRecord is one signal as it appears in the session artifact's
// signals[] array.
type SignalRecord struct {
	SignalID     uint64 `json:"signal_id"`
	TsNs         int64  `json:"ts_ns"`
	Instructions int    `json:"instruction_count"`
}

// QuarantineEvent records a strategy fault, per spec.md §7's rule that a
// strategy error quarantines the strategy but keeps the engine running,
// with the reason surfaced in the session artifact (S5).
type QuarantineEvent struct {
	TsNs   int64  `json:"ts_ns"`
	Reason string `json:"reason"`
}

// Artifact is the session artifact spec.md §6 defines, written once at
// shutdown in both backtest and live mode.
type Artifact struct {
	Parameters      map[string]interface{} `json:"parameters"`
	StaticStats     StaticStats             `json:"static_stats"`
	RegressionStats RegressionStats         `json:"regression_stats"`
	TimeseriesStats TimeseriesStats         `json:"timeseries_stats"`
	Trades          []TradeRecord           `json:"trades"`
	Signals         []SignalRecord          `json:"signals"`
	Quarantine      *QuarantineEvent        `json:"quarantine,omitempty"`
	Error           string                  `json:"error,omitempty"`
}

// Writer accumulates every TRADE, SIGNAL, POSITION_UPDATE, and
// ACCOUNT_UPDATE event
// published during a run and assembles the session artifact at
// shutdown, generalizing the retrieved sherwood backtesting engine's
// in-memory SimulatedTrade/EquityPoint accumulation (engine.go) from a
// single-threaded backtest loop into a bus subscriber that runs
// alongside the rest of the engine on its own goroutine.
type Writer struct {
	b              *bus.Bus
	initialCapital float64
	riskFreeRate   float64
	params         map[string]interface{}
	log            zerolog.Logger

	tradeSub    *bus.Subscriber
	signalSub   *bus.Subscriber
	accountSub  *bus.Subscriber
	positionSub *bus.Subscriber

	mu             sync.Mutex
	trades         []TradeRecord
	signals        []SignalRecord
	curve          []EquityPoint
	quarantine     *QuarantineEvent
	lastRealized   map[uint32]float64
	realizedDeltas []float64
}

// NewWriter wires a Writer to b, subscribing to TRADE, SIGNAL,
// ACCOUNT_UPDATE, and POSITION_UPDATE synchronously so no event published after construction
// is missed regardless of when Run starts, following the same
// subscribe-in-constructor pattern coreengine.Host and BrokerRunner use.
func NewWriter(b *bus.Bus, initialCapital decimal.Decimal, riskFreeRate float64, params map[string]interface{}, log zerolog.Logger) *Writer {
	capital, _ := initialCapital.Float64()
	return &Writer{
		b:              b,
		initialCapital: capital,
		riskFreeRate:   riskFreeRate,
		params:         params,
		log:            log.With().Str("component", "performance").Logger(),
		tradeSub:       b.Subscribe(bus.TopicTrade),
		signalSub:      b.Subscribe(bus.TopicSignal),
		accountSub:     b.Subscribe(bus.TopicAccountUpdate),
		positionSub:    b.Subscribe(bus.TopicPositionUpdate),
		curve:          make([]EquityPoint, 0, 1024),
	}
}

// Run drains all four subscriptions until the bus shuts down. It
// blocks until every subscription drains, which happens once
// bus.Shutdown is called and every queued event has been delivered.
func (w *Writer) Run() {
	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); w.watchTrades() }()
	go func() { defer wg.Done(); w.watchSignals() }()
	go func() { defer wg.Done(); w.watchAccount() }()
	go func() { defer wg.Done(); w.watchPositions() }()
	wg.Wait()
}

func (w *Writer) watchPositions() {
	for {
		evt, ok := w.positionSub.Next()
		if !ok {
			return
		}
		pos, ok := evt.Payload.(portfolio.Position)
		if !ok {
			continue
		}
		w.recordRealized(uint32(pos.InstrumentId), pos.RealizedPnl)
	}
}

func (w *Writer) watchTrades() {
	for {
		evt, ok := w.tradeSub.Next()
		if !ok {
			return
		}
		trade, ok := evt.Payload.(portfolio.Trade)
		if !ok {
			continue
		}
		w.recordTrade(trade)
	}
}

func (w *Writer) recordTrade(trade portfolio.Trade) {
	qty, _ := trade.Quantity.Float64()
	price, _ := trade.Price.Float64()
	fees, _ := trade.Fees.Float64()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.trades = append(w.trades, TradeRecord{
		TradeID:      trade.TradeID,
		OrderID:      trade.OrderID,
		InstrumentId: uint32(trade.InstrumentId),
		Action:       actionLabel(trade.Action),
		Quantity:     qty,
		Price:        price,
		Fees:         fees,
		TsNs:         trade.TsNs,
		IsRollover:   trade.IsRollover,
	})
}

func (w *Writer) watchSignals() {
	for {
		evt, ok := w.signalSub.Next()
		if !ok {
			return
		}
		sig, ok := evt.Payload.(strategy.Signal)
		if !ok {
			continue
		}
		w.mu.Lock()
		w.signals = append(w.signals, SignalRecord{
			SignalID:     sig.SignalID,
			TsNs:         sig.TsNs,
			Instructions: len(sig.Instructions),
		})
		w.mu.Unlock()
	}
}

func (w *Writer) watchAccount() {
	for {
		evt, ok := w.accountSub.Next()
		if !ok {
			return
		}
		acct, ok := evt.Payload.(portfolio.Account)
		if !ok {
			continue
		}
		equity, _ := acct.Equity.Float64()
		w.mu.Lock()
		w.curve = append(w.curve, EquityPoint{TsNs: acct.TimestampNs, Equity: equity})
		w.mu.Unlock()
	}
}

// Quarantine records that a strategy was disabled after an error,
// called by coreengine.Host's fault-containment path so the reason
// reaches the session artifact, per spec.md §8's S5 scenario.
func (w *Writer) Quarantine(tsNs int64, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.quarantine != nil {
		return
	}
	w.quarantine = &QuarantineEvent{TsNs: tsNs, Reason: reason}
	w.log.Warn().Str("reason", reason).Msg("strategy quarantined")
}

// Build assembles the current accumulated state into an Artifact,
// without touching the filesystem — callers use this to inspect the
// artifact before or instead of writing it.
func (w *Writer) Build() Artifact {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Artifact{
		Parameters:      w.params,
		StaticStats:     computeStatic(w.realizedDeltas),
		RegressionStats: computeRegression(w.curve, w.initialCapital, w.riskFreeRate),
		TimeseriesStats: computeTimeseries(w.curve, w.initialCapital),
		Trades:          append([]TradeRecord(nil), w.trades...),
		Signals:         append([]SignalRecord(nil), w.signals...),
		Quarantine:      w.quarantine,
	}
}

// recordRealized tracks one POSITION_UPDATE's cumulative realized PnL so
// Build's StaticStats reflect actual win/loss outcomes: Position.RealizedPnl
// is cumulative, so the delta since the last observation is what
// static_stats needs per closing fill.
func (w *Writer) recordRealized(instrumentID uint32, realizedPnlTotal decimal.Decimal) {
	total, _ := realizedPnlTotal.Float64()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastRealized == nil {
		w.lastRealized = make(map[uint32]float64)
	}
	delta := total - w.lastRealized[instrumentID]
	w.lastRealized[instrumentID] = total
	if delta != 0 {
		w.realizedDeltas = append(w.realizedDeltas, delta)
	}
}

// WriteArtifact serializes Build's result as indented JSON to
// outputPath, creating parent directories as needed, following the
// retrieved sherwood reports package's write-report-to-disk convention.
func (w *Writer) WriteArtifact(outputPath string) error {
	artifact := w.Build()
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// WriteArtifactWithError is WriteArtifact but stamps artifact.Error
// first, per spec.md §7's "JSON error block appended to the session
// artifact" rule for fatal errors.
func (w *Writer) WriteArtifactWithError(outputPath string, cause error) error {
	artifact := w.Build()
	if cause != nil {
		artifact.Error = cause.Error()
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

func actionLabel(a portfolio.Action) string {
	switch a {
	case portfolio.ActionLong:
		return "LONG"
	case portfolio.ActionCover:
		return "COVER"
	case portfolio.ActionShort:
		return "SHORT"
	case portfolio.ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// defaultTimeout bounds how long WriteArtifact's caller should wait for
// in-flight bus events to drain before assembling the final artifact,
// matching spec.md §8's S6 "all threads exit within 30s" requirement.
const defaultTimeout = 30 * time.Second
