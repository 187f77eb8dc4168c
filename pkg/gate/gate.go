package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mailcove/gatekeeper/pkg/config"
	"mailcove/gatekeeper/pkg/quota"
	"mailcove/gatekeeper/pkg/ratelimit"
)

// Subject identifies who a check is scoped to.
type Subject struct {
	// ID is the API key id or tenant id.
	ID string

	// Tier is the subject's subscription tier. Empty resolves to the
	// configured default tier.
	Tier string

	// IP is the caller's remote address, used by IP-scoped limits.
	IP string
}

// Denial reasons carried on Decision.Reason.
const (
	ReasonRateLimited   = "rate_limited"
	ReasonQuotaExceeded = "quota_exceeded"
	ReasonConfiguration = "configuration"
	ReasonStoreFailure  = "store_failure"
)

// Decision is the gate's answer for one inbound unit of work.
type Decision struct {
	// ID is a unique identifier for correlating the decision across
	// logs and responses.
	ID string

	Allowed bool

	// Reason is set on denials only.
	Reason string

	// Limit, Remaining, and ResetAt feed the advisory headers. Limit
	// is -1 when the subject is unlimited on the checked dimension, in
	// which case no headers should be emitted.
	Limit     int64
	Remaining int64
	ResetAt   time.Time

	// RetryAfter is how long the caller should wait. Set on denials.
	RetryAfter time.Duration
}

// Gate exposes the limiting engine to the boundary layer.
type Gate struct {
	limiter  *ratelimit.Limiter
	enforcer *quota.Enforcer
	logger   *slog.Logger
}

// New creates a gate over the given limiter and enforcer.
func New(limiter *ratelimit.Limiter, enforcer *quota.Enforcer, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		limiter:  limiter,
		enforcer: enforcer,
		logger:   logger.With("component", "gate"),
	}
}

// CheckRateLimit evaluates the subject against its tier's sliding
// window under the given scope. The subject's tier determines the
// policy; an unknown tier denies with ReasonConfiguration.
//
// Denials are expected outcomes and are logged at debug, never as
// errors.
func (g *Gate) CheckRateLimit(ctx context.Context, scope string, sub Subject) *Decision {
	tier, err := g.enforcer.Tier(sub.Tier)
	if err != nil {
		return g.denyConfiguration(sub, err)
	}
	return g.rateLimit(ctx, scope, sub.ID, tier.RateLimit)
}

// CheckIPRateLimit evaluates the subject's remote address against a
// fixed policy, independent of any tier. Used in front of
// unauthenticated surfaces where no tier is known yet.
func (g *Gate) CheckIPRateLimit(ctx context.Context, sub Subject, policy config.RateLimitConfig) *Decision {
	return g.rateLimit(ctx, "ip", sub.IP, policy)
}

func (g *Gate) rateLimit(ctx context.Context, scope, key string, policy config.RateLimitConfig) *Decision {
	dec := g.limiter.Check(ctx, scope, key, policy)
	out := &Decision{
		ID:        uuid.NewString(),
		Allowed:   dec.Allowed,
		Limit:     dec.Limit,
		Remaining: dec.Remaining,
		ResetAt:   dec.ResetAt,
	}
	if dec.FailedOpen {
		// The limiter already logged the failure; mark the figures as
		// meaningless so no headers are emitted.
		out.Limit = config.UnlimitedSentinel
		out.Remaining = config.UnlimitedSentinel
		out.ResetAt = time.Time{}
		return out
	}
	if !dec.Allowed {
		out.Reason = ReasonRateLimited
		out.RetryAfter = dec.RetryAfter
		g.logger.Debug("rate limit denial",
			"decision_id", out.ID,
			"scope", scope,
			"subject", key,
			"retry_after", dec.RetryAfter,
		)
	}
	return out
}

// CheckQuota checks and reserves amount units of the quota type for the
// subject. Ledger failures deny with ReasonStoreFailure; the billing
// ledger fails closed.
func (g *Gate) CheckQuota(ctx context.Context, sub Subject, qt quota.Type, amount int64) *Decision {
	res, err := g.enforcer.CheckQuota(ctx, sub.ID, sub.Tier, qt, amount)
	return g.quotaDecision(sub, qt, res, err)
}

// CheckEmailSend checks and reserves count email sends against the
// daily and monthly quotas together.
func (g *Gate) CheckEmailSend(ctx context.Context, sub Subject, count int64) *Decision {
	res, err := g.enforcer.CheckEmailSend(ctx, sub.ID, sub.Tier, count)
	return g.quotaDecision(sub, quota.DailyEmails, res, err)
}

func (g *Gate) quotaDecision(sub Subject, qt quota.Type, res *quota.Result, err error) *Decision {
	out := &Decision{ID: uuid.NewString()}

	if err != nil {
		var cfgErr *quota.ConfigurationError
		if errors.As(err, &cfgErr) {
			return g.denyConfiguration(sub, err)
		}
		// The enforcer already logged the store failure.
		out.Reason = ReasonStoreFailure
		return out
	}

	out.Allowed = res.Allowed
	out.Limit = res.Limit
	out.Remaining = res.Remaining
	out.ResetAt = res.ResetAt
	if !res.Allowed {
		out.Reason = ReasonQuotaExceeded
		out.RetryAfter = res.RetryAfter
		g.logger.Debug("quota denial",
			"decision_id", out.ID,
			"subject", sub.ID,
			"quota_type", qt,
			"usage", res.CurrentUsage,
			"limit", res.Limit,
		)
	}
	return out
}

// TrackUsage records after-the-fact usage. Fire-and-forget: errors are
// handled inside the enforcer and never reach the caller.
func (g *Gate) TrackUsage(ctx context.Context, sub Subject, qt quota.Type, amount int64) {
	g.enforcer.TrackUsage(ctx, sub.ID, sub.Tier, qt, amount)
}

func (g *Gate) denyConfiguration(sub Subject, err error) *Decision {
	dec := &Decision{
		ID:     uuid.NewString(),
		Reason: ReasonConfiguration,
	}
	g.logger.Error("check failed on configuration",
		"decision_id", dec.ID,
		"subject", sub.ID,
		"tier", sub.Tier,
		"error", err,
	)
	return dec
}
