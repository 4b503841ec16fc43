package observability

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"
)

// ToolTraceEvent is one row of the agent's tool-dispatch trace: one call to
// one tool within one turn of one session.
type ToolTraceEvent struct {
	Timestamp   time.Time
	SessionID   string
	TurnID      string
	Iteration   int
	ToolName    string
	ArgsJSON    string
	ResultJSON  string // truncated to 500 chars before being set, per spec.md §4.10
	Status      string // "ok" | "fail"
	ErrorText   string
	DurationMS  int64
}

// TraceSink is an append-only sink for tool trace events. A ClickHouse-backed
// sink is used when CLICKHOUSE_DSN is configured; otherwise events are only
// logged (NoopTraceSink), matching the "log-only when unconfigured" downgrade
// used elsewhere in this service (e.g. the Kafka event bus).
type TraceSink interface {
	Record(ctx context.Context, ev ToolTraceEvent) error
	Close() error
}

type NoopTraceSink struct{}

func (NoopTraceSink) Record(ctx context.Context, ev ToolTraceEvent) error {
	log.Ctx(ctx).Info().
		Str("tool", ev.ToolName).
		Str("session_id", ev.SessionID).
		Str("status", ev.Status).
		Msg("tool trace event (clickhouse sink not configured)")
	return nil
}

func (NoopTraceSink) Close() error { return nil }

// ClickHouseTraceSink writes tool trace events to an append-only ClickHouse
// table. The table is created, if absent, when the sink is constructed,
// mirroring the teacher's ensure-schema-in-constructor pattern used by the
// Postgres adapters.
type ClickHouseTraceSink struct {
	conn clickhouse.Conn
}

func NewClickHouseTraceSink(ctx context.Context, dsn string) (*ClickHouseTraceSink, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}
	sink := &ClickHouseTraceSink{conn: conn}
	if err := sink.ensureTable(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *ClickHouseTraceSink) ensureTable(ctx context.Context) error {
	return s.conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tool_trace_events (
	ts          DateTime64(3),
	session_id  String,
	turn_id     String,
	iteration   Int32,
	tool_name   String,
	args_json   String,
	result_json String,
	status      String,
	error_text  String,
	duration_ms Int64
) ENGINE = MergeTree()
ORDER BY (session_id, ts)`)
}

func (s *ClickHouseTraceSink) Record(ctx context.Context, ev ToolTraceEvent) error {
	return s.conn.Exec(ctx, `
INSERT INTO tool_trace_events
	(ts, session_id, turn_id, iteration, tool_name, args_json, result_json, status, error_text, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Timestamp, ev.SessionID, ev.TurnID, ev.Iteration, ev.ToolName, ev.ArgsJSON, ev.ResultJSON, ev.Status, ev.ErrorText, ev.DurationMS)
}

func (s *ClickHouseTraceSink) Close() error { return s.conn.Close() }

// TruncateResult caps a tool result string at 500 characters, per spec.md's
// Tool Trace Event shape, appending an ellipsis marker when it truncates.
// The marker counts toward the cap.
func TruncateResult(s string) string {
	const max = 500
	const marker = "...(truncated)"
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-len(marker)]) + marker
}
