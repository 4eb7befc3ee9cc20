// Package wire encodes and decodes the records of the recorded binary
// market-data stream described in spec.md §6: a repeated sequence of
// length-prefixed messages, each with a fixed 16-byte header followed by a
// type-specific body. The stream's metadata trailer is represented by the
// Trailer type, but no function here reads or writes it; DecodeRecord
// handles record messages only.
//
// The layout is bespoke to this system, not an existing standard, but the
// encoding conventions (little-endian fixed headers, encoding/binary,
// scaled int64 prices) follow the DBN record layout in the retrieved
// NimbleMarkets/dbn-go package and the length-prefixed framing in the
// retrieved ndrandal/feed-simulator ITCH codec.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/midastrader/midas/marketdata"
)

// HeaderSize is the fixed size, in bytes, of every record's header.
const HeaderSize = 16

// recordType byte values on the wire. These are distinct from
// marketdata.RecordType only in that they are the stable wire encoding;
// marketdata.RecordType is free to be reordered without breaking decode.
const (
	wireOhlcvBar byte = 0
	wireBbo      byte = 1
	wireEOD      byte = 2
)

// header mirrors the 16-byte on-wire header:
// record_type:u8, instrument_id:u32, ts_event:i64, rollover_flag:u8,
// then 2 reserved zero bytes to reach 16.
type header struct {
	recordType   byte
	instrumentID uint32
	tsEvent      int64
	rolloverFlag byte
}

func decodeHeader(b []byte) (header, error) {
	if len(b) < HeaderSize {
		return header{}, fmt.Errorf("wire: short header: got %d bytes, want %d", len(b), HeaderSize)
	}
	return header{
		recordType:   b[0],
		instrumentID: binary.LittleEndian.Uint32(b[1:5]),
		tsEvent:      int64(binary.LittleEndian.Uint64(b[5:13])),
		rolloverFlag: b[13],
		// b[14:16] reserved
	}, nil
}

func encodeHeader(buf []byte, h header) {
	buf[0] = h.recordType
	binary.LittleEndian.PutUint32(buf[1:5], h.instrumentID)
	binary.LittleEndian.PutUint64(buf[5:13], uint64(h.tsEvent))
	buf[13] = h.rolloverFlag
	buf[14] = 0
	buf[15] = 0
}

const (
	ohlcvBodySize = 8 * 5   // 5 x i64
	levelSize     = 8 + 8 + 4 + 4 + 4 + 4
	bboBodySize   = 8 + 4 + 1 + 1 + 8 + 4 + levelSize*10
)

// DecodeRecord reads exactly one length-prefixed message from r and
// returns the decoded marketdata.Record. The native instrument id found on
// the wire is returned unrewritten; callers (the HistoricalAdaptor) are
// responsible for translating it through the symbol.TickerIndex before
// publishing, per spec.md §4.2.
//
// Returns io.EOF when the stream is exhausted between messages.
func DecodeRecord(r io.Reader) (marketdata.Record, uint32, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return marketdata.Record{}, 0, fmt.Errorf("wire: truncated length prefix: %w", err)
		}
		return marketdata.Record{}, 0, err
	}
	msgLen := binary.LittleEndian.Uint32(lenBuf[:])

	body := make([]byte, msgLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return marketdata.Record{}, 0, fmt.Errorf("wire: truncated message body: %w", err)
	}

	h, err := decodeHeader(body)
	if err != nil {
		return marketdata.Record{}, 0, err
	}

	rec := marketdata.Record{
		TsEvent:      h.tsEvent,
		RolloverFlag: h.rolloverFlag != 0,
	}

	rest := body[HeaderSize:]
	switch h.recordType {
	case wireOhlcvBar:
		if len(rest) < ohlcvBodySize {
			return marketdata.Record{}, 0, fmt.Errorf("wire: short ohlcv body: got %d, want %d", len(rest), ohlcvBodySize)
		}
		rec.Type = marketdata.RecordOhlcvBar
		rec.Bar = marketdata.OhlcvBar{
			Open:   int64(binary.LittleEndian.Uint64(rest[0:8])),
			High:   int64(binary.LittleEndian.Uint64(rest[8:16])),
			Low:    int64(binary.LittleEndian.Uint64(rest[16:24])),
			Close:  int64(binary.LittleEndian.Uint64(rest[24:32])),
			Volume: int64(binary.LittleEndian.Uint64(rest[32:40])),
		}
	case wireBbo:
		if len(rest) < bboBodySize {
			return marketdata.Record{}, 0, fmt.Errorf("wire: short bbo body: got %d, want %d", len(rest), bboBodySize)
		}
		rec.Type = marketdata.RecordBboQuote
		q := marketdata.BboQuote{
			BidPx:    int64(binary.LittleEndian.Uint64(rest[0:8])),
			AskPx:    0, // filled from first level below if not separately encoded
			Size:     binary.LittleEndian.Uint32(rest[8:12]),
			Side:     rest[12],
			Flags:    rest[13],
			TsRecv:   int64(binary.LittleEndian.Uint64(rest[14:22])),
			Sequence: binary.LittleEndian.Uint32(rest[22:26]),
		}
		off := 26
		for i := 0; i < 10; i++ {
			lvl := marketdata.BookLevel{
				BidPx: int64(binary.LittleEndian.Uint64(rest[off : off+8])),
				AskPx: int64(binary.LittleEndian.Uint64(rest[off+8 : off+16])),
				BidSz: binary.LittleEndian.Uint32(rest[off+16 : off+20]),
				AskSz: binary.LittleEndian.Uint32(rest[off+20 : off+24]),
				BidCt: binary.LittleEndian.Uint32(rest[off+24 : off+28]),
				AskCt: binary.LittleEndian.Uint32(rest[off+28 : off+32]),
			}
			q.Levels[i] = lvl
			if i == 0 {
				q.AskPx = lvl.AskPx
			}
			off += levelSize
		}
		rec.Quote = q
	case wireEOD:
		rec.Type = marketdata.RecordEndOfDay
	default:
		return marketdata.Record{}, 0, fmt.Errorf("wire: unknown record_type %d", h.recordType)
	}

	return rec, h.instrumentID, nil
}

// EncodeRecord writes rec in the wire format, using nativeInstrumentID as
// the header's instrument id (the recorder's native id space, not the
// runtime SymbolMap's InstrumentId). Used by tests and by tooling that
// produces recorded streams for replay.
func EncodeRecord(w io.Writer, rec marketdata.Record, nativeInstrumentID uint32) error {
	h := header{
		instrumentID: nativeInstrumentID,
		tsEvent:      rec.TsEvent,
	}
	if rec.RolloverFlag {
		h.rolloverFlag = 1
	}

	var body []byte
	switch rec.Type {
	case marketdata.RecordOhlcvBar:
		h.recordType = wireOhlcvBar
		body = make([]byte, HeaderSize+ohlcvBodySize)
		encodeHeader(body, h)
		b := body[HeaderSize:]
		binary.LittleEndian.PutUint64(b[0:8], uint64(rec.Bar.Open))
		binary.LittleEndian.PutUint64(b[8:16], uint64(rec.Bar.High))
		binary.LittleEndian.PutUint64(b[16:24], uint64(rec.Bar.Low))
		binary.LittleEndian.PutUint64(b[24:32], uint64(rec.Bar.Close))
		binary.LittleEndian.PutUint64(b[32:40], uint64(rec.Bar.Volume))
	case marketdata.RecordBboQuote:
		h.recordType = wireBbo
		body = make([]byte, HeaderSize+bboBodySize)
		encodeHeader(body, h)
		b := body[HeaderSize:]
		q := rec.Quote
		binary.LittleEndian.PutUint64(b[0:8], uint64(q.BidPx))
		binary.LittleEndian.PutUint32(b[8:12], q.Size)
		b[12] = q.Side
		b[13] = q.Flags
		binary.LittleEndian.PutUint64(b[14:22], uint64(q.TsRecv))
		binary.LittleEndian.PutUint32(b[22:26], q.Sequence)
		off := 26
		for i := 0; i < 10; i++ {
			lvl := q.Levels[i]
			binary.LittleEndian.PutUint64(b[off:off+8], uint64(lvl.BidPx))
			binary.LittleEndian.PutUint64(b[off+8:off+16], uint64(lvl.AskPx))
			binary.LittleEndian.PutUint32(b[off+16:off+20], lvl.BidSz)
			binary.LittleEndian.PutUint32(b[off+20:off+24], lvl.AskSz)
			binary.LittleEndian.PutUint32(b[off+24:off+28], lvl.BidCt)
			binary.LittleEndian.PutUint32(b[off+28:off+32], lvl.AskCt)
			off += levelSize
		}
	case marketdata.RecordEndOfDay:
		h.recordType = wireEOD
		body = make([]byte, HeaderSize)
		encodeHeader(body, h)
	default:
		return fmt.Errorf("wire: cannot encode record type %d", rec.Type)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// Trailer is the metadata footer following the message stream: schema
// string, start/end timestamps, and the ticker mappings needed to build a
// symbol.TickerIndex for this file.
type Trailer struct {
	Schema        string
	StartNs       int64
	EndNs         int64
	TickerByNative map[uint32]string
}
