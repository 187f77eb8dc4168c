package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"mailcove/gatekeeper/pkg/clock"
	"mailcove/gatekeeper/pkg/config"
)

// SQLite is the durable quota ledger backed by a SQLite database.
//
// The pool is pinned to a single connection. SQLite allows one writer at
// a time anyway, and a single connection keeps the session PRAGMAs
// applied at open in effect for every statement. Per-subject
// serialization of the read-check-increment sequence is enforced by the
// guarded UPDATE in CheckAndIncrement, so the single connection is a
// throughput choice, not a correctness dependency.
type SQLite struct {
	db     *sql.DB
	clock  clock.TimeSource
	logger *slog.Logger
}

// NewSQLite opens (creating if needed) the ledger database at cfg.Path,
// applies the session PRAGMAs, and ensures the schema is present and at
// the expected version.
func NewSQLite(cfg config.LedgerConfig, ts clock.TimeSource, logger *slog.Logger) (*SQLite, error) {
	if ts == nil {
		ts = clock.System
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ledger")

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, storageErr("open", err)
	}
	db.SetMaxOpenConns(1)

	l := &SQLite{db: db, clock: ts, logger: logger}
	if err := l.initialize(cfg); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("quota ledger opened",
		"path", cfg.Path,
		"schema_version", SchemaVersion,
	)
	return l, nil
}

func (l *SQLite) initialize(cfg config.LedgerConfig) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := l.db.Exec(pragma); err != nil {
			return storageErr("pragma", err)
		}
	}

	if _, err := l.db.Exec(Schema); err != nil {
		return storageErr("create_schema", err)
	}
	if _, err := l.db.Exec(insertSchemaVersion, SchemaVersion, l.clock.Now().Unix()); err != nil {
		return storageErr("insert_schema_version", err)
	}

	var version int
	if err := l.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return storageErr("get_schema_version", err)
	}
	if version != SchemaVersion {
		return storageErr("schema_version",
			fmt.Errorf("database has schema version %d, this build expects %d", version, SchemaVersion))
	}
	return nil
}

// windowRow mirrors one rate_limit_windows row inside a transaction.
type windowRow struct {
	window  Window
	limit   int64
	usage   int64
	resetAt time.Time
}

// CheckAndIncrement atomically checks every requested window and, if all
// of them have headroom for amount, commits the increment to all of them
// in one transaction.
//
// Elapsed windows are reset (usage zeroed, boundary recomputed) before
// their limit is evaluated, and the reset is persisted even when the
// check is ultimately denied. Missing rows are created with usage 0 and
// the limit from limits, so a subject needs no prior provisioning.
func (l *SQLite) CheckAndIncrement(ctx context.Context, subjectID string, limits Limits, amount int64) (*Decision, error) {
	if amount <= 0 {
		return nil, storageErr("check", fmt.Errorf("amount must be positive, got %d", amount))
	}
	windows := limits.Windows()
	if len(windows) == 0 {
		return nil, storageErr("check", errors.New("no windows requested"))
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin", err)
	}
	defer tx.Rollback()

	now := l.clock.Now().UTC()
	rows := make([]windowRow, 0, len(windows))
	for _, w := range windows {
		row, err := l.loadRow(ctx, tx, subjectID, w, limits[w], now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	// First pass: find the shortest window that would be exceeded.
	for _, row := range rows {
		if row.limit == config.UnlimitedSentinel {
			continue
		}
		if row.usage+amount > row.limit {
			// Commit so lazy resets performed above survive.
			if err := tx.Commit(); err != nil {
				return nil, storageErr("commit", err)
			}
			return &Decision{
				Allowed:    false,
				Window:     row.window,
				Limit:      row.limit,
				Usage:      row.usage,
				Remaining:  0,
				ResetAt:    row.resetAt,
				RetryAfter: row.resetAt.Sub(now),
			}, nil
		}
	}

	// Second pass: commit the increment to every window. The UPDATE is
	// guarded by the limit so a concurrent writer that got in between
	// the read and this statement cannot push usage past the cap.
	for i, row := range rows {
		res, err := tx.ExecContext(ctx, `
			UPDATE rate_limit_windows
			SET current_usage = current_usage + ?, updated_at = ?
			WHERE subject_id = ? AND window_type = ?
			  AND (limit_value = ? OR current_usage + ? <= limit_value)`,
			amount, now.Unix(), subjectID, string(row.window),
			config.UnlimitedSentinel, amount,
		)
		if err != nil {
			return nil, storageErr("increment", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, storageErr("increment", err)
		}
		if affected == 0 {
			// Lost the race on this window. Report its current state
			// as a denial; windows updated earlier in this transaction
			// roll back with it.
			fresh, err := l.loadRow(ctx, tx, subjectID, row.window, limits[row.window], now)
			if err != nil {
				return nil, err
			}
			return &Decision{
				Allowed:    false,
				Window:     fresh.window,
				Limit:      fresh.limit,
				Usage:      fresh.usage,
				Remaining:  0,
				ResetAt:    fresh.resetAt,
				RetryAfter: fresh.resetAt.Sub(now),
			}, nil
		}
		rows[i].usage += amount
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit", err)
	}

	reported := rows[0]
	for _, row := range rows {
		if row.window == Daily {
			reported = row
			break
		}
	}
	return &Decision{
		Allowed:   true,
		Window:    reported.window,
		Limit:     reported.limit,
		Usage:     reported.usage,
		Remaining: remainingOf(reported.limit, reported.usage),
		ResetAt:   reported.resetAt,
	}, nil
}

// RecordUsage adds amount to every requested window without evaluating
// limits. It backs best-effort usage tracking for actions whose cost is
// only known after the fact (recipient counts, for example), so usage
// may exceed the limit here; the next CheckAndIncrement will reject.
func (l *SQLite) RecordUsage(ctx context.Context, subjectID string, limits Limits, amount int64) error {
	if amount <= 0 {
		return storageErr("record", fmt.Errorf("amount must be positive, got %d", amount))
	}
	windows := limits.Windows()
	if len(windows) == 0 {
		return storageErr("record", errors.New("no windows requested"))
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback()

	now := l.clock.Now().UTC()
	for _, w := range windows {
		if _, err := l.loadRow(ctx, tx, subjectID, w, limits[w], now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE rate_limit_windows
			SET current_usage = current_usage + ?, updated_at = ?
			WHERE subject_id = ? AND window_type = ?`,
			amount, now.Unix(), subjectID, string(w),
		); err != nil {
			return storageErr("record", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// Provision creates the subject's window rows with usage 0, typically at
// API key issuance. Existing rows are left untouched.
func (l *SQLite) Provision(ctx context.Context, subjectID string, limits Limits) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback()

	now := l.clock.Now().UTC()
	for _, w := range limits.Windows() {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO rate_limit_windows
				(subject_id, window_type, limit_value, current_usage, reset_at, created_at, updated_at)
			VALUES (?, ?, ?, 0, ?, ?, ?)`,
			subjectID, string(w), limits[w], w.NextBoundary(now).Unix(), now.Unix(), now.Unix(),
		); err != nil {
			return storageErr("provision", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// Remove deletes all of a subject's window rows. Called when the subject
// itself is deleted.
func (l *SQLite) Remove(ctx context.Context, subjectID string) error {
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM rate_limit_windows WHERE subject_id = ?`, subjectID,
	); err != nil {
		return storageErr("remove", err)
	}
	return nil
}

// Usage returns a snapshot of the subject's windows. Rows whose boundary
// has elapsed are reported as reset (usage 0, next boundary) without
// being written back; the next CheckAndIncrement persists the reset.
func (l *SQLite) Usage(ctx context.Context, subjectID string) (map[Window]WindowStatus, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT window_type, limit_value, current_usage, reset_at
		FROM rate_limit_windows
		WHERE subject_id = ?`,
		subjectID,
	)
	if err != nil {
		return nil, storageErr("usage", err)
	}
	defer rows.Close()

	now := l.clock.Now().UTC()
	out := make(map[Window]WindowStatus)
	for rows.Next() {
		var (
			windowType string
			limit      int64
			usage      int64
			resetUnix  int64
		)
		if err := rows.Scan(&windowType, &limit, &usage, &resetUnix); err != nil {
			return nil, storageErr("usage", err)
		}
		w := Window(windowType)
		status := WindowStatus{Limit: limit, Usage: usage, ResetAt: time.Unix(resetUnix, 0).UTC()}
		if !now.Before(status.ResetAt) {
			status.Usage = 0
			status.ResetAt = w.NextBoundary(now)
		}
		out[w] = status
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("usage", err)
	}
	return out, nil
}

// SweepIdle deletes rows not touched for at least retention and returns
// the number removed. Swept subjects lose nothing: their rows are
// recreated on the next check with usage 0, which is what a row idle for
// a full retention period would have reset to anyway.
func (l *SQLite) SweepIdle(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := l.clock.Now().UTC().Add(-retention).Unix()
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM rate_limit_windows WHERE updated_at < ?`, cutoff,
	)
	if err != nil {
		return 0, storageErr("sweep", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("sweep", err)
	}
	return deleted, nil
}

// Ping verifies the database is reachable.
func (l *SQLite) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *SQLite) Close() error {
	return l.db.Close()
}

// loadRow reads one window row inside tx, creating it if absent and
// persisting a lazy reset if its boundary has elapsed.
func (l *SQLite) loadRow(ctx context.Context, tx *sql.Tx, subjectID string, w Window, limit int64, now time.Time) (windowRow, error) {
	row := windowRow{window: w, limit: limit}

	var (
		usage     int64
		resetUnix int64
	)
	err := tx.QueryRowContext(ctx, `
		SELECT limit_value, current_usage, reset_at
		FROM rate_limit_windows
		WHERE subject_id = ? AND window_type = ?`,
		subjectID, string(w),
	).Scan(&row.limit, &usage, &resetUnix)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		row.limit = limit
		row.usage = 0
		row.resetAt = w.NextBoundary(now)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rate_limit_windows
				(subject_id, window_type, limit_value, current_usage, reset_at, created_at, updated_at)
			VALUES (?, ?, ?, 0, ?, ?, ?)`,
			subjectID, string(w), limit, row.resetAt.Unix(), now.Unix(), now.Unix(),
		); err != nil {
			return row, storageErr("create_window", err)
		}
		return row, nil
	case err != nil:
		return row, storageErr("read_window", err)
	}

	row.usage = usage
	row.resetAt = time.Unix(resetUnix, 0).UTC()

	// Tier changes reach existing rows here: the configured limit wins
	// over whatever the row was created with.
	if row.limit != limit {
		if _, err := tx.ExecContext(ctx, `
			UPDATE rate_limit_windows
			SET limit_value = ?, updated_at = ?
			WHERE subject_id = ? AND window_type = ?`,
			limit, now.Unix(), subjectID, string(w),
		); err != nil {
			return row, storageErr("update_limit", err)
		}
		row.limit = limit
	}

	if !now.Before(row.resetAt) {
		row.usage = 0
		row.resetAt = w.NextBoundary(now)
		if _, err := tx.ExecContext(ctx, `
			UPDATE rate_limit_windows
			SET current_usage = 0, reset_at = ?, updated_at = ?
			WHERE subject_id = ? AND window_type = ?`,
			row.resetAt.Unix(), now.Unix(), subjectID, string(w),
		); err != nil {
			return row, storageErr("reset_window", err)
		}
	}
	return row, nil
}
