// Package dataengine implements the HistoricalAdaptor (replaying a
// recorded binary stream or file under the DATA_PROCESSED/UPDATE_SYSTEM
// barrier protocol of spec.md §4.5) and the LiveAdaptor (relaying a
// streaming market-data source with relaxed ordering). Both generalize
// the retrieved sherwood data.DataProvider interface from a pull-based
// historical-bars query to a push-based replay loop driving the bus.
package dataengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/dataengine/wire"
	"github.com/midastrader/midas/marketdata"
	"github.com/midastrader/midas/symbol"
	"github.com/midastrader/midas/tracing"
)

// nyc is the America/New_York location used for backtest EOD-date
// detection per spec.md §4.5 step 3. Loaded once at package init; falls
// back to UTC if the local tzdata is unavailable, since a failure here is
// an environment issue, not a config error worth aborting startup for.
var nyc = mustLoadNYC()

func mustLoadNYC() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

// HistoricalAdaptor replays a recorded binary stream record-by-record,
// rewriting native instrument ids through the run's symbol map and
// enforcing the DATA_PROCESSED/UPDATE_SYSTEM barriers that give backtest
// runs deterministic causal ordering.
type HistoricalAdaptor struct {
	symbols *symbol.Map
	idx     *symbol.TickerIndex
	book    *marketdata.OrderBook
	b       *bus.Bus
	log     zerolog.Logger
	runCtx  context.Context
	seq     int64

	source   io.ReadCloser
	nativeID map[uint32]symbol.InstrumentId

	eodFiredFor map[symbol.InstrumentId]bool
	lastDate    map[symbol.InstrumentId]int
}

// NewHistoricalAdaptor constructs an adaptor bound to the run's shared
// symbol map, order book, and bus. The TickerIndex selector determines
// whether native ids on the wire are matched against BrokerTicker or
// DataTicker; recorded files key on DataTicker. runCtx carries the run's
// trace/run id (tracing.WithRunID); each record processed during Process
// is logged against a child context stamped with its sequence number via
// tracing.WithRecordSeq, so a StateError raised downstream can be traced
// back to the exact record that produced it.
func NewHistoricalAdaptor(runCtx context.Context, symbols *symbol.Map, book *marketdata.OrderBook, b *bus.Bus, log zerolog.Logger) *HistoricalAdaptor {
	return &HistoricalAdaptor{
		symbols:     symbols,
		idx:         symbol.NewTickerIndex(symbols, func(s symbol.Symbol) string { return s.DataTicker }),
		book:        book,
		b:           b,
		log:         log.With().Str("component", "historical_adaptor").Logger(),
		runCtx:      runCtx,
		nativeID:    make(map[uint32]symbol.InstrumentId),
		eodFiredFor: make(map[symbol.InstrumentId]bool),
		lastDate:    make(map[symbol.InstrumentId]int),
	}
}

// BindTrailer resolves a recorded file's native-id-to-ticker mapping
// (read from its wire.Trailer) against the run's symbol map, so Process
// can rewrite each record's native instrument id into the map's
// InstrumentId per spec.md §4.5 step 2.
func (h *HistoricalAdaptor) BindTrailer(t wire.Trailer) error {
	for native, ticker := range t.TickerByNative {
		id, ok := h.idx.Resolve(ticker)
		if !ok {
			return fmt.Errorf("dataengine: trailer ticker %q not present in symbol map", ticker)
		}
		h.nativeID[native] = id
	}
	return nil
}

// GetData opens path (a recorded binary file) as the adaptor's record
// source. Returns an error wrapping the failure if the file cannot be
// opened; callers should treat that as a fatal DataSourceError per
// spec.md §7.
func (h *HistoricalAdaptor) GetData(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dataengine: open %s: %w", path, err)
	}
	h.source = f
	return nil
}

// GetDataFromReader binds an already-open reader as the record source,
// used when the recorded stream arrives over HTTP rather than from a
// local file (the retryablehttp-backed fallback path noted in
// spec.md §6's data_source config).
func (h *HistoricalAdaptor) GetDataFromReader(r io.ReadCloser) {
	h.source = r
}

// Process drains the bound source to completion, enforcing the replay
// loop of spec.md §4.5. It returns when the source is exhausted (having
// published SHUTDOWN) or when the bus signals shutdown from elsewhere.
func (h *HistoricalAdaptor) Process() error {
	if h.source == nil {
		return errors.New("dataengine: Process called before GetData")
	}
	defer h.source.Close()

	for {
		if h.b.ShuttingDown() {
			return nil
		}

		rec, nativeID, err := wire.DecodeRecord(h.source)
		if err == io.EOF {
			h.b.Shutdown()
			return nil
		}
		if err != nil {
			h.b.Shutdown()
			return fmt.Errorf("dataengine: decode record: %w", err)
		}

		id, ok := h.nativeID[nativeID]
		if !ok {
			h.b.Shutdown()
			return fmt.Errorf("dataengine: unmapped native instrument id %d", nativeID)
		}
		rec.InstrumentId = id

		h.seq++
		recCtx := tracing.WithRecordSeq(h.runCtx, h.seq)
		tracing.Logger(recCtx).Debug().
			Uint32("instrument_id", uint32(id)).
			Int64("ts_event", rec.TsEvent).
			Msg("replaying record")

		h.maybeResetEODFlag(rec)

		if h.pastDayClose(rec) && !h.eodFiredFor[id] {
			h.eodFiredFor[id] = true
			h.b.SetFlag(bus.FlagDataProcessed, false)
			h.b.Publish(bus.TopicData, marketdata.Record{
				Type: marketdata.RecordEndOfDay, InstrumentId: id, TsEvent: rec.TsEvent,
			})
			if !h.b.AwaitFlag(bus.FlagDataProcessed, true) {
				return nil
			}
		}

		h.book.Update(rec)
		h.b.SetFlag(bus.FlagUpdateSystem, false)
		h.b.Publish(bus.TopicData, rec)
		h.b.Publish(bus.TopicOrderBook, rec)

		if !h.b.AwaitFlag(bus.FlagUpdateSystem, true) {
			return nil
		}
	}
}

// maybeResetEODFlag clears the in-flight EOD-fired flag for an
// instrument when the record's America/New_York calendar date has
// advanced past the last one observed for it.
func (h *HistoricalAdaptor) maybeResetEODFlag(rec marketdata.Record) {
	t := time.Unix(0, rec.TsEvent).In(nyc)
	day := t.Year()*10000 + int(t.Month())*100 + t.Day()
	if h.lastDate[rec.InstrumentId] != day {
		h.lastDate[rec.InstrumentId] = day
		h.eodFiredFor[rec.InstrumentId] = false
	}
}

// pastDayClose reports whether rec's timestamp is at or past its
// instrument's configured trading-session close.
func (h *HistoricalAdaptor) pastDayClose(rec marketdata.Record) bool {
	sym, ok := h.symbols.ByID(rec.InstrumentId)
	if !ok || sym.TradingSessions.DayClose == 0 {
		return false
	}
	t := time.Unix(0, rec.TsEvent).In(nyc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, nyc)
	return t.Sub(midnight) >= sym.TradingSessions.DayClose
}
