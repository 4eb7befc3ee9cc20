package performance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SessionRecord is one row of the session index: enough to find a past
// run's artifact on disk without re-parsing every JSON file in
// output_path.
type SessionRecord struct {
	RunID        string  `db:"run_id"`
	StartedAtNs  int64   `db:"started_at_ns"`
	EndedAtNs    int64   `db:"ended_at_ns"`
	StrategyName string  `db:"strategy_name"`
	FinalEquity  float64 `db:"final_equity"`
	ArtifactPath string  `db:"artifact_path"`
	Quarantined  bool    `db:"quarantined"`
}

// Store wraps a SQLite-backed index of past sessions, generalizing the
// retrieved sherwood data package's DB/NewDB/Migrate pattern (schema
// migration, os.MkdirAll on the parent directory) from OHLCV/ticker/
// order storage to a session-run index — market data and working orders
// in this engine never touch SQLite; they live in the recorded binary
// stream and in-memory order book respectively (see DESIGN.md's "Dropped
// teacher concerns").
type Store struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// NewStore opens (creating if absent) a SQLite database at path and runs
// its migration.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("performance: creating session store directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("performance: connecting to session store: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "performance.store").Logger()}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		run_id TEXT PRIMARY KEY,
		started_at_ns INTEGER NOT NULL,
		ended_at_ns INTEGER NOT NULL,
		strategy_name TEXT NOT NULL,
		final_equity REAL NOT NULL,
		artifact_path TEXT NOT NULL,
		quarantined INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_strategy ON sessions(strategy_name);
	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at_ns);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("performance: session store migration failed: %w", err)
	}
	s.log.Info().Msg("session store migrated")
	return nil
}

// Insert records one completed session, upserting on RunID so a rerun
// with the same run_id (e.g. a resumed live session) overwrites rather
// than duplicates.
func (s *Store) Insert(rec SessionRecord) error {
	const query = `
		INSERT INTO sessions (run_id, started_at_ns, ended_at_ns, strategy_name, final_equity, artifact_path, quarantined)
		VALUES (:run_id, :started_at_ns, :ended_at_ns, :strategy_name, :final_equity, :artifact_path, :quarantined)
		ON CONFLICT(run_id) DO UPDATE SET
			ended_at_ns = excluded.ended_at_ns,
			final_equity = excluded.final_equity,
			artifact_path = excluded.artifact_path,
			quarantined = excluded.quarantined
	`
	_, err := s.db.NamedExec(query, rec)
	if err != nil {
		return fmt.Errorf("performance: inserting session record: %w", err)
	}
	return nil
}

// ByStrategy returns every recorded session for a given strategy name,
// most recent first.
func (s *Store) ByStrategy(strategyName string) ([]SessionRecord, error) {
	var out []SessionRecord
	const query = `
		SELECT run_id, started_at_ns, ended_at_ns, strategy_name, final_equity, artifact_path, quarantined
		FROM sessions
		WHERE strategy_name = ?
		ORDER BY started_at_ns DESC
	`
	if err := s.db.Select(&out, query, strategyName); err != nil {
		return nil, fmt.Errorf("performance: querying sessions by strategy: %w", err)
	}
	return out, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
