package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/midastrader/midas/config"
	"github.com/midastrader/midas/dataengine/wire"
)

// openDataSource opens the run's recorded or streamed binary record
// source: a local file when data_source.path is set, or an HTTP GET
// against data_source.url otherwise (retryablehttp, the same client
// library NewLiveBroker uses for its REST leg, since both are venue-
// facing HTTP in this engine).
func openDataSource(ds config.DataSource) (io.ReadCloser, error) {
	if ds.Path != "" {
		f, err := os.Open(ds.Path)
		if err != nil {
			return nil, fmt.Errorf("midas: open data source %s: %w", ds.Path, err)
		}
		return f, nil
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	resp, err := client.Get(ds.URL)
	if err != nil {
		return nil, fmt.Errorf("midas: fetch data source %s: %w", ds.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("midas: fetch data source %s: status %s", ds.URL, resp.Status)
	}
	return resp.Body, nil
}

// buildTrailer derives the run's native-instrument-id mapping from the
// config's declared symbol order: the Nth [[symbols]] entry (1-indexed)
// is native id N on the wire, the positional convention this engine's
// recorder uses when it tags a stream with DataTicker. The wire codec
// does not read a trailer from the stream, so backtests take this mapping
// from config order whatever order the recording itself used.
func buildTrailer(cfg *config.Config) wire.Trailer {
	byNative := make(map[uint32]string, len(cfg.Symbols))
	for i, s := range cfg.Symbols {
		byNative[uint32(i+1)] = s.DataTicker
	}
	return wire.Trailer{
		Schema:         cfg.General.Schema,
		TickerByNative: byNative,
	}
}
