// Package ledger implements the durable quota ledger backing billing
// quotas.
//
// The ledger persists one row per (subject, window) pair in SQLite. Each
// row carries the window's limit, the usage accumulated so far, and the
// timestamp at which the window rolls over. Windows are calendar aligned
// and anchored to UTC: hourly windows reset at the top of the hour, daily
// windows at midnight, monthly windows on the first of the month.
//
// Rows reset lazily. Nothing fires at the boundary; the first check that
// observes an elapsed reset_at zeroes the usage and recomputes the
// boundary inside the same transaction, before the limit is evaluated.
//
// The central operation is CheckAndIncrement, an atomic check-and-reserve
// across every requested window. It either commits the increment on all
// of them or on none, and the commit is guarded so that concurrent
// callers can never push usage past the limit. Because the ledger is the
// billing source of truth, callers are expected to fail closed when it is
// unreachable.
//
// A Sweeper runs on a cron schedule and deletes rows for subjects that
// have been idle longer than the retention period; they are recreated on
// the subject's next request.
package ledger
