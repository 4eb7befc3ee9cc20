package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/config"
	"github.com/midastrader/midas/coreengine"
	"github.com/midastrader/midas/dataengine"
	"github.com/midastrader/midas/execution"
	"github.com/midastrader/midas/marketdata"
	"github.com/midastrader/midas/midaserr"
	"github.com/midastrader/midas/performance"
	"github.com/midastrader/midas/plugin"
	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/symbol"
	"github.com/midastrader/midas/tracing"
)

// shutdownGrace bounds how long run waits, after the bus signals
// shutdown, for every component's Run loop to drain and the session
// writer to finish accumulating before it gives up and writes whatever
// artifact it has (spec.md §8's S6 scenario: a graceful SHUTDOWN mid
// stream still produces an artifact within 30s).
const shutdownGrace = 30 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <config-path> <mode>",
		Short: "run a backtest or live trading session from a TOML config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(args[0], args[1])
		},
	}
}

// runSession wires every component for one run and drives it to
// completion, writing a session artifact (and indexing it in the
// session store) regardless of whether the run ended cleanly, was
// interrupted, or failed.
func runSession(configPath, mode string) error {
	if mode != "backtest" && mode != "live" {
		return newExitError(1, fmt.Errorf("midas: mode must be 'backtest' or 'live', got %q", mode))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return midaserr.New(midaserr.ConfigError, "config.Load", err)
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	runCtx := tracing.WithRunID(context.Background(), runID)
	logger := tracing.Logger(runCtx).With().Str("mode", mode).Logger()
	logger.Info().Str("strategy", cfg.Strategy.Name).Msg("starting session")

	symbols := symbol.NewMap()
	for _, sc := range cfg.Symbols {
		if _, err := symbols.Register(config.BuildSymbol(sc)); err != nil {
			return midaserr.New(midaserr.ConfigError, "symbol.Register", err)
		}
	}
	symbols.Seal()

	book := marketdata.NewOrderBook()
	b := bus.New()
	pf := portfolio.New(decimal.NewFromFloat(cfg.General.Capital), symbol.USD, logger)

	strat, err := plugin.NewStrategy(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return midaserr.New(midaserr.PluginError, "plugin.NewStrategy", err)
	}

	var risk coreengine.RiskModel
	if cfg.Risk != nil && cfg.Risk.Name != "" {
		risk, err = plugin.NewRiskModel(cfg.Risk.Name, cfg.Risk.Params)
		if err != nil {
			return midaserr.New(midaserr.PluginError, "plugin.NewRiskModel", err)
		}
	}

	broker, err := buildBroker(mode, cfg, symbols, book, pf, b, logger)
	if err != nil {
		return err
	}

	om := coreengine.NewOrderManager(symbols, book, pf)
	host := coreengine.NewHost(b, strat, om, risk, logger)
	runner := coreengine.NewBrokerRunner(b, broker, logger)
	writer := performance.NewWriter(b, decimal.NewFromFloat(cfg.General.Capital), cfg.General.RiskFreeRate, cfg.Strategy.Params, logger)
	host.OnQuarantine(writer.Quarantine)

	ctx, cancel := context.WithCancel(runCtx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); pf.Run(ctx, b) }()
	go func() { defer wg.Done(); host.Run() }()
	go func() { defer wg.Done(); runner.Run() }()

	if dummy, ok := broker.(*execution.DummyBroker); ok {
		wg.Add(1)
		go func() { defer wg.Done(); dummy.Run() }()
	}

	wg.Add(1)
	go func() { defer wg.Done(); writer.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	runErr := make(chan error, 1)
	go func() { runErr <- drive(ctx, mode, cfg, symbols, book, b, broker, logger) }()

	var (
		interrupted bool
		driveErr    error
	)
	select {
	case driveErr = <-runErr:
	case <-quit:
		interrupted = true
		logger.Warn().Msg("received interrupt, shutting down session")
		b.Shutdown()
		select {
		case driveErr = <-runErr:
		case <-time.After(shutdownGrace):
			logger.Warn().Msg("data source did not stop within the shutdown grace period")
		}
	}

	drained := make(chan struct{})
	go func() { wg.Wait(); close(drained) }()
	select {
	case <-drained:
	case <-time.After(shutdownGrace):
		logger.Warn().Msg("components did not drain within the shutdown grace period")
	}

	endedAt := time.Now()

	var writeErr error
	if driveErr != nil {
		writeErr = writer.WriteArtifactWithError(cfg.General.OutputPath, driveErr)
	} else {
		writeErr = writer.WriteArtifact(cfg.General.OutputPath)
	}
	if writeErr != nil {
		logger.Error().Err(writeErr).Msg("failed to write session artifact")
	}
	artifact := writer.Build()

	if store, serr := performance.NewStore(cfg.General.SessionDBPath, logger); serr == nil {
		insertErr := store.Insert(performance.SessionRecord{
			RunID:        runID,
			StartedAtNs:  startedAt.UnixNano(),
			EndedAtNs:    endedAt.UnixNano(),
			StrategyName: cfg.Strategy.Name,
			FinalEquity:  artifact.TimeseriesStats.FinalEquity,
			ArtifactPath: cfg.General.OutputPath,
			Quarantined:  artifact.Quarantine != nil,
		})
		if insertErr != nil {
			logger.Error().Err(insertErr).Msg("failed to index session record")
		}
		store.Close()
	} else {
		logger.Error().Err(serr).Msg("failed to open session store")
	}

	if interrupted {
		return newExitError(130, fmt.Errorf("midas: interrupted"))
	}
	if driveErr != nil {
		return midaserr.New(midaserr.DataSourceError, "drive", driveErr)
	}
	logger.Info().Str("output", cfg.General.OutputPath).Msg("session complete")
	return nil
}

// buildBroker constructs the run's execution.Broker for mode, sharing
// the run's single symbol map, order book, and portfolio server with the
// data adaptor and OrderManager. It connects the broker immediately for
// live mode (a dial failure there is the broker-disconnect exit path
// spec.md §6 names).
func buildBroker(mode string, cfg *config.Config, symbols *symbol.Map, book *marketdata.OrderBook, pf *portfolio.Server, b *bus.Bus, log zerolog.Logger) (execution.Broker, error) {
	switch mode {
	case "backtest":
		return execution.NewDummyBroker(symbols, book, pf, b, log), nil
	case "live":
		lb := execution.NewLiveBroker(execution.LiveBrokerConfig{
			RestURL:   cfg.Broker.RestURL,
			StreamURL: cfg.Broker.StreamURL,
			APIKey:    cfg.Broker.APIKey,
		}, symbols, pf, b, log)
		if err := lb.Connect(); err != nil {
			return nil, midaserr.New(midaserr.BrokerError, "LiveBroker.Connect", err)
		}
		return lb, nil
	default:
		return nil, fmt.Errorf("midas: unknown mode %q", mode)
	}
}

// drive runs the mode-appropriate data path to completion: replaying a
// recorded stream under the DATA_PROCESSED/UPDATE_SYSTEM barrier for a
// backtest, or relaying a live feed with a periodic EOD clock check for
// live trading.
func drive(ctx context.Context, mode string, cfg *config.Config, symbols *symbol.Map, book *marketdata.OrderBook, b *bus.Bus, broker execution.Broker, log zerolog.Logger) error {
	source, err := openDataSource(cfg.DataSource)
	if err != nil {
		return err
	}
	defer source.Close()

	switch mode {
	case "backtest":
		adaptor := dataengine.NewHistoricalAdaptor(ctx, symbols, book, b, log)
		if err := adaptor.BindTrailer(buildTrailer(cfg)); err != nil {
			return err
		}
		adaptor.GetDataFromReader(source)
		return adaptor.Process()
	default:
		if !broker.IsConnected() {
			return midaserr.New(midaserr.BrokerError, "drive", fmt.Errorf("live broker is not connected"))
		}
		adaptor := dataengine.NewLiveAdaptor(ctx, symbols, book, b, dataengine.SystemClock, log)
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					adaptor.CheckEOD()
					if !broker.IsConnected() {
						b.Shutdown()
						return
					}
				}
			}
		}()
		return adaptor.Stream(source)
	}
}
