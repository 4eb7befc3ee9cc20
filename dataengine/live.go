package dataengine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/dataengine/wire"
	"github.com/midastrader/midas/marketdata"
	"github.com/midastrader/midas/symbol"
	"github.com/midastrader/midas/tracing"
)

// Clock abstracts wall-clock EOD detection for live mode, where end of
// day is time-driven rather than record-driven — spec.md §9 notes the
// source assumes a dedicated clock source without specifying one, so
// this engine defines the minimal interface a scheduler needs: the
// current time. CheckEOD compares that time against each instrument's
// session close itself.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default Clock, backed by time.Now.
var SystemClock Clock = systemClock{}

// LiveAdaptor relays a streaming market-data connection onto the bus.
// Ordering relaxes to best-effort within an adaptor's per-instrument
// stream per spec.md §5 point 3: there is no UPDATE_SYSTEM barrier here,
// since live mode cannot pause the venue's feed to wait for the strategy
// host to settle.
type LiveAdaptor struct {
	symbols *symbol.Map
	idx     *symbol.TickerIndex
	book    *marketdata.OrderBook
	b       *bus.Bus
	clock   Clock
	log     zerolog.Logger
	runCtx  context.Context
	seq     int64

	lastDate map[symbol.InstrumentId]int
}

// NewLiveAdaptor constructs a LiveAdaptor bound to the run's shared
// symbol map, order book, and bus, using BrokerTicker as the native
// ticker convention (the venue speaks the broker's symbology, not the
// recorded-data vendor's). runCtx carries the run's trace/run id so each
// streamed record can be logged against a record-sequence-stamped child
// context, the same correlation Process uses in the historical path.
func NewLiveAdaptor(runCtx context.Context, symbols *symbol.Map, book *marketdata.OrderBook, b *bus.Bus, clock Clock, log zerolog.Logger) *LiveAdaptor {
	if clock == nil {
		clock = SystemClock
	}
	return &LiveAdaptor{
		symbols:  symbols,
		idx:      symbol.NewTickerIndex(symbols, func(s symbol.Symbol) string { return s.BrokerTicker }),
		book:     book,
		b:        b,
		clock:    clock,
		log:      log.With().Str("component", "live_adaptor").Logger(),
		runCtx:   runCtx,
		lastDate: make(map[symbol.InstrumentId]int),
	}
}

// Stream drains length-prefixed records off r (a live venue's streaming
// connection, framed identically to the recorded-file wire format) until
// r is exhausted or shutdown is signalled.
func (a *LiveAdaptor) Stream(r io.Reader) error {
	for {
		if a.b.ShuttingDown() {
			return nil
		}
		rec, nativeID, err := wire.DecodeRecord(r)
		if err != nil {
			a.log.Error().Err(err).Msg("live stream decode failed")
			return fmt.Errorf("dataengine: live stream decode: %w", err)
		}

		ticker := fmt.Sprintf("%d", nativeID)
		id, ok := a.idx.Resolve(ticker)
		if !ok {
			a.log.Warn().Uint32("native_id", nativeID).Msg("unmapped live instrument, dropping record")
			continue
		}
		rec.InstrumentId = id

		a.seq++
		recCtx := tracing.WithRecordSeq(a.runCtx, a.seq)
		tracing.Logger(recCtx).Debug().
			Uint32("instrument_id", uint32(id)).
			Int64("ts_event", rec.TsEvent).
			Msg("streaming record")

		a.book.Update(rec)
		a.b.Publish(bus.TopicData, rec)
		a.b.Publish(bus.TopicOrderBook, rec)
	}
}

// CheckEOD polls the clock for every registered symbol and publishes an
// EndOfDay DATA event the first time, per calendar day, that the clock
// reaches the symbol's session close. Intended to run on its own ticker
// goroutine in live mode rather than being driven by incoming records.
func (a *LiveAdaptor) CheckEOD() {
	now := a.clock.Now()
	day := now.Year()*10000 + int(now.Month())*100 + now.Day()

	for _, sym := range a.symbols.All() {
		if sym.TradingSessions.DayClose == 0 {
			continue
		}
		if a.lastDate[sym.InstrumentId] == day {
			continue
		}
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if now.Sub(midnight) < sym.TradingSessions.DayClose {
			continue
		}
		a.lastDate[sym.InstrumentId] = day
		a.b.Publish(bus.TopicData, marketdata.Record{
			Type: marketdata.RecordEndOfDay, InstrumentId: sym.InstrumentId, TsEvent: now.UnixNano(),
		})
		a.b.Publish(bus.TopicEOD, sym.InstrumentId)
	}
}
