package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/midastrader/midas/performance"
)

func newSessionsCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "sessions <strategy-name>",
		Short: "list recorded sessions for a strategy from the session index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSessions(dbPath, args[0])
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "./midas-sessions.db", "path to the session index database")
	return cmd
}

// listSessions prints every recorded run of strategyName, most recent
// first, following the session store's ByStrategy ordering.
func listSessions(dbPath, strategyName string) error {
	store, err := performance.NewStore(dbPath, log.Logger)
	if err != nil {
		return fmt.Errorf("midas: opening session store: %w", err)
	}
	defer store.Close()

	recs, err := store.ByStrategy(strategyName)
	if err != nil {
		return fmt.Errorf("midas: querying sessions: %w", err)
	}
	if len(recs) == 0 {
		fmt.Printf("no sessions recorded for strategy %q\n", strategyName)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tENDED\tFINAL EQUITY\tQUARANTINED\tARTIFACT")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%t\t%s\n",
			r.RunID,
			time.Unix(0, r.StartedAtNs).UTC().Format(time.RFC3339),
			time.Unix(0, r.EndedAtNs).UTC().Format(time.RFC3339),
			r.FinalEquity,
			r.Quarantined,
			r.ArtifactPath,
		)
	}
	return w.Flush()
}
