// Command midas runs the event-driven trading engine in backtest or
// live mode and lists past session runs, re-platforming the retrieved
// sherwood main.go's zerolog/signal-handling/graceful-shutdown sequence
// from a single long-running API server onto spf13/cobra's multi-command
// surface, per spec.md §6.
package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/midastrader/midas/midaserr"
)

// exitError carries the process exit code spec.md §6 assigns to a
// failure class, letting Execute's caller map an error straight to
// os.Exit without re-deriving the code from the error's shape.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newExitError(code int, err error) *exitError {
	return &exitError{code: code, err: err}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "midas",
		Short:         "midas replays or streams market data through a strategy and records the resulting session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newSessionsCmd())
	return root
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	err := newRootCmd().Execute()
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status spec.md §6
// defines: 0 on success, 1 for a malformed configuration, 2 for any
// other runtime failure, 3 when the broker never connects or drops mid
// run, and 130 on SIGINT/SIGTERM.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		log.Error().Err(ee.err).Msg("midas exiting")
		return ee.code
	}

	var merr *midaserr.Error
	if errors.As(err, &merr) {
		log.Error().Err(merr).Msg("midas exiting")
		switch merr.Kind {
		case midaserr.ConfigError:
			return 1
		case midaserr.BrokerError:
			return 3
		default:
			return 2
		}
	}

	log.Error().Err(err).Msg("midas exiting")
	return 2
}
