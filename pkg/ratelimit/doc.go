// Package ratelimit implements the sliding-window abuse limiter.
//
// The limiter counts requests per subject in fixed-size rolling windows
// kept in a counter store. A window is a single key whose TTL equals the
// window length: the first request creates the key with its expiry, later
// requests increment it without touching the TTL, and the store's expiry
// mechanism retires the window. There is no reset bookkeeping and no
// per-subject state in the process.
//
// The limiter fails open. When the counter store is unreachable after
// retries the request is allowed and the decision is marked, on the
// grounds that the durable quota ledger remains the billing backstop and
// availability of the protected service outweighs strict abuse
// protection. Denials are normal outcomes, not errors.
package ratelimit
