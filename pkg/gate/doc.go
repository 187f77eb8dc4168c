// Package gate is the boundary adapter between inbound requests and the
// limiting engine.
//
// A Gate composes the sliding abuse limiter and the quota enforcer into
// the three operations the surrounding platform calls: CheckRateLimit,
// CheckQuota, and TrackUsage. Each check produces a Decision with a
// unique id for log correlation and the figures the caller needs to emit
// advisory X-RateLimit headers.
//
// The gate carries no per-request state; it is constructed once with its
// limiter, enforcer, and tier table, and every method takes the subject
// explicitly. An HTTP middleware is provided for transports that want
// the rate limit applied uniformly in front of a handler chain.
package gate
