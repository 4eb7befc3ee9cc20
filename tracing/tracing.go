// Package tracing provides trace ID generation and context propagation
// for structured logging across the midas trading engine.
//
// Trace IDs are unique identifiers that can be attached to an operation to
// trace its flow across components; run IDs and record sequence numbers
// correlate log lines with one run and one market record. All three are
// propagated via context.Context and included in zerolog structured log
// fields.
package tracing

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// traceIDKey is the context key for the trace ID.
	traceIDKey contextKey = "trace_id"
	// runIDKey is the context key for the run ID.
	runIDKey contextKey = "run_id"
	// recordSeqKey is the context key for the record sequence number.
	recordSeqKey contextKey = "record_seq"

	// TraceIDField is the zerolog field name used for trace IDs.
	TraceIDField = "trace_id"
	// RunIDField is the zerolog field name used for the run ID.
	RunIDField = "run_id"
	// RecordSeqField is the zerolog field name used for the record
	// sequence number.
	RecordSeqField = "record_seq"
)

// NewTraceID generates a cryptographically random trace ID.
// The ID is a 16-character lowercase hex string (64 bits of entropy).
//
// Returns:
//   - string: A unique trace ID
func NewTraceID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Fallback: this should never happen in practice
		return "0000000000000000"
	}
	return fmt.Sprintf("%x", b)
}

// WithTraceID returns a new context with the given trace ID attached.
//
// Args:
//   - ctx: Parent context
//   - traceID: The trace ID to attach
//
// Returns:
//   - context.Context: Context with trace ID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromCtx extracts the trace ID from context.
// Returns an empty string if no trace ID is present.
//
// Args:
//   - ctx: Context to extract from
//
// Returns:
//   - string: The trace ID, or "" if not present
func TraceIDFromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// Logger returns a zerolog sub-logger with the trace ID from context.
// If no trace ID is present in the context, it returns the global logger
// without a trace_id field.
//
// Usage:
//
//	tracing.Logger(ctx).Info().Str("symbol", "AAPL").Msg("Processing symbol")
//
// Args:
//   - ctx: Context containing trace ID
//
// Returns:
//   - zerolog.Logger: Logger with trace_id field
func Logger(ctx context.Context) zerolog.Logger {
	event := log.With()
	haveField := false

	if traceID := TraceIDFromCtx(ctx); traceID != "" {
		event = event.Str(TraceIDField, traceID)
		haveField = true
	}
	if runID := RunIDFromCtx(ctx); runID != "" {
		event = event.Str(RunIDField, runID)
		haveField = true
	}
	if seq, ok := RecordSeqFromCtx(ctx); ok {
		event = event.Int64(RecordSeqField, seq)
		haveField = true
	}
	if !haveField {
		return log.Logger
	}
	return event.Logger()
}

// WithRunID returns a new context carrying the given run ID, identifying
// one backtest or live session so every log line it produces can be
// correlated back to that run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromCtx extracts the run ID from context, or "" if absent.
func RunIDFromCtx(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRecordSeq returns a new context carrying seq, the monotonic
// sequence number of the MarketRecord currently being dispatched, so a
// log line anywhere downstream of that record's processing can be traced
// back to it.
func WithRecordSeq(ctx context.Context, seq int64) context.Context {
	return context.WithValue(ctx, recordSeqKey, seq)
}

// RecordSeqFromCtx extracts the record sequence number from context.
func RecordSeqFromCtx(ctx context.Context) (int64, bool) {
	seq, ok := ctx.Value(recordSeqKey).(int64)
	return seq, ok
}
