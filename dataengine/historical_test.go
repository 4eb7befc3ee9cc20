package dataengine_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/dataengine"
	"github.com/midastrader/midas/dataengine/wire"
	"github.com/midastrader/midas/marketdata"
	"github.com/midastrader/midas/symbol"
)

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func TestHistoricalAdaptorPublishesAndAwaitsUpdateSystem(t *testing.T) {
	m := symbol.NewMap()
	id, err := m.Register(symbol.Symbol{
		MidasTicker: "AAPL", DataTicker: "1", SecurityType: symbol.Stock,
		Currency: symbol.USD, QuantityMultiplier: 1, PriceMultiplier: 1,
	})
	require.NoError(t, err)
	m.Seal()

	var buf bytes.Buffer
	require.NoError(t, wire.EncodeRecord(&buf, marketdata.Record{
		Type: marketdata.RecordOhlcvBar, TsEvent: 1,
		Bar: marketdata.OhlcvBar{Close: marketdata.ToScaled(100)},
	}, 1))

	book := marketdata.NewOrderBook()
	b := bus.New()
	adaptor := dataengine.NewHistoricalAdaptor(context.Background(), m, book, b, zerolog.Nop())
	require.NoError(t, adaptor.BindTrailer(wire.Trailer{TickerByNative: map[uint32]string{1: "1"}}))
	adaptor.GetDataFromReader(nopCloser{&buf})

	dataSub := b.Subscribe(bus.TopicData)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, adaptor.Process())
	}()

	evt, ok := dataSub.Next()
	require.True(t, ok)
	rec := evt.Payload.(marketdata.Record)
	assert.Equal(t, id, rec.InstrumentId)

	// Adaptor should now be blocked awaiting UPDATE_SYSTEM.
	time.Sleep(10 * time.Millisecond)
	assert.False(t, b.GetFlag(bus.FlagUpdateSystem))

	b.SetFlag(bus.FlagUpdateSystem, true)
	wg.Wait()

	assert.True(t, b.ShuttingDown())
}
