// Package quota enforces tier-derived billing quotas.
//
// An Enforcer maps a subject's subscription tier to numeric limits per
// quota dimension (daily emails, monthly emails, monthly recipients,
// templates per day, custom domains) and answers "may this subject spend
// N units" against the durable ledger. Tiers are loaded once at startup
// and are immutable at runtime.
//
// Two operations are exposed. CheckQuota is an atomic check-and-reserve:
// on success the requested amount is already committed, so a caller that
// proceeds with the protected action needs no second call for the
// checked dimension. TrackUsage is best-effort bookkeeping for costs
// only known after the action succeeds, such as the recipient count of a
// delivered campaign; its failures are logged and swallowed, never
// propagated.
//
// A tier limit of -1 means unlimited. Unlimited checks skip the ledger
// entirely and mutate nothing.
//
// The enforcer fails closed: if the ledger is unreachable the check
// errors and the caller must deny, because silent overage on the billing
// source of truth has financial consequences. This is the opposite
// posture from the sliding abuse limiter, which fails open.
package quota
