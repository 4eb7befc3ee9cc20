package wire_test

import (
	"bytes"
	"testing"

	"github.com/midastrader/midas/dataengine/wire"
	"github.com/midastrader/midas/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeOhlcvBarRoundTrip(t *testing.T) {
	rec := marketdata.Record{
		Type:    marketdata.RecordOhlcvBar,
		TsEvent: 1_700_000_000_000_000_000,
		Bar: marketdata.OhlcvBar{
			Open:   marketdata.ToScaled(100.25),
			High:   marketdata.ToScaled(101.50),
			Low:    marketdata.ToScaled(99.75),
			Close:  marketdata.ToScaled(100.90),
			Volume: 12345,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, wire.EncodeRecord(&buf, rec, 7))

	got, nativeID, err := wire.DecodeRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), nativeID)
	assert.Equal(t, rec.Type, got.Type)
	assert.Equal(t, rec.TsEvent, got.TsEvent)
	assert.Equal(t, rec.Bar, got.Bar)
}

func TestEncodeDecodeBboQuoteRoundTrip(t *testing.T) {
	rec := marketdata.Record{
		Type:    marketdata.RecordBboQuote,
		TsEvent: 42,
		Quote: marketdata.BboQuote{
			BidPx:    marketdata.ToScaled(10.0),
			Size:     5,
			Side:     1,
			TsRecv:   43,
			Sequence: 99,
		},
	}
	rec.Quote.Levels[0] = marketdata.BookLevel{
		BidPx: marketdata.ToScaled(9.99),
		AskPx: marketdata.ToScaled(10.01),
		BidSz: 100,
		AskSz: 200,
	}

	var buf bytes.Buffer
	require.NoError(t, wire.EncodeRecord(&buf, rec, 3))

	got, nativeID, err := wire.DecodeRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), nativeID)
	assert.Equal(t, marketdata.RecordBboQuote, got.Type)
	assert.Equal(t, rec.Quote.BidPx, got.Quote.BidPx)
	assert.Equal(t, rec.Quote.Levels[0].AskPx, got.Quote.Levels[0].AskPx)
	assert.Equal(t, got.Quote.Levels[0].AskPx, got.Quote.AskPx)
}

func TestEncodeDecodeEndOfDayRoundTrip(t *testing.T) {
	rec := marketdata.Record{Type: marketdata.RecordEndOfDay, TsEvent: 7, RolloverFlag: true}

	var buf bytes.Buffer
	require.NoError(t, wire.EncodeRecord(&buf, rec, 1))

	got, _, err := wire.DecodeRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, marketdata.RecordEndOfDay, got.Type)
	assert.True(t, got.RolloverFlag)
}

func TestDecodeRecordRejectsUnknownType(t *testing.T) {
	var buf bytes.Buffer
	// length=16, header with bogus record_type=99
	buf.Write([]byte{16, 0, 0, 0})
	buf.Write(make([]byte, 16))
	buf.Bytes()[4] = 99

	_, _, err := wire.DecodeRecord(&buf)
	assert.Error(t, err)
}
