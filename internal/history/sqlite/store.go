package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hamed0406/netwatch/internal/domain"
	"github.com/hamed0406/netwatch/internal/history"
)

// appendBackoff holds the waits between append retries. A write that still
// fails after the last wait is handed back to the caller.
var appendBackoff = []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}

// Store keeps the transition log in a single sqlite file.
type Store struct {
	db *sql.DB
}

var _ history.Store = (*Store)(nil)

// New opens (or creates) the database at path and ensures the schema is up
// to date. Use ":memory:" for an ephemeral store.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite",
		fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if path == ":memory:" {
		// Pooled connections would each get a private in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS transitions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	addr       TEXT NOT NULL,
	state      TEXT NOT NULL,
	latency_ms REAL,
	at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transitions_addr_at ON transitions (addr, at DESC);
CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions (at);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Append inserts one transition, retrying transient failures (a locked WAL,
// mostly) with a short bounded backoff.
func (s *Store) Append(ctx context.Context, ev domain.TransitionEvent) error {
	var latency sql.NullFloat64
	if ev.LatencyMS != nil {
		latency = sql.NullFloat64{Float64: *ev.LatencyMS, Valid: true}
	}

	const q = `INSERT INTO transitions (name, addr, state, latency_ms, at) VALUES (?, ?, ?, ?, ?)`
	var err error
	for try := 0; ; try++ {
		_, err = s.db.ExecContext(ctx, q,
			ev.Name, ev.Addr, string(ev.To), latency, ev.At.UTC().Format(time.RFC3339Nano))
		if err == nil {
			return nil
		}
		if try >= len(appendBackoff) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(appendBackoff[try]):
		}
	}
	return fmt.Errorf("append transition: %w", err)
}

// Recent returns the newest transitions for addr, newest first. The limit is
// clamped to the package bounds.
func (s *Store) Recent(ctx context.Context, addr string, limit int) ([]domain.HistoryRecord, error) {
	limit = history.ClampLimit(limit)

	const q = `SELECT id, name, addr, state, latency_ms, at
FROM transitions WHERE addr = ? ORDER BY at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, addr, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryRecord
	for rows.Next() {
		var (
			rec     domain.HistoryRecord
			state   string
			latency sql.NullFloat64
			atStr   string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Addr, &state, &latency, &atStr); err != nil {
			return nil, fmt.Errorf("scan transition row: %w", err)
		}
		rec.State = domain.ProbeState(state)
		if latency.Valid {
			v := latency.Float64
			rec.LatencyMS = &v
		}
		rec.At, _ = time.Parse(time.RFC3339Nano, atStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes every transition recorded before cutoff.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transitions WHERE at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("purge transitions: %w", err)
	}
	return res.RowsAffected()
}
