package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mailcove/gatekeeper/pkg/config"
	"mailcove/gatekeeper/pkg/ledger"
	"mailcove/gatekeeper/pkg/telemetry/metrics"
)

const component = "quota"

// Ledger is the durable windowed counter store the enforcer checks
// against.
type Ledger interface {
	CheckAndIncrement(ctx context.Context, subjectID string, limits ledger.Limits, amount int64) (*ledger.Decision, error)
	RecordUsage(ctx context.Context, subjectID string, limits ledger.Limits, amount int64) error
	Provision(ctx context.Context, subjectID string, limits ledger.Limits) error
	Remove(ctx context.Context, subjectID string) error
	Usage(ctx context.Context, subjectID string) (map[ledger.Window]ledger.WindowStatus, error)
}

// Enforcer answers quota checks using the tier table loaded at startup.
type Enforcer struct {
	ledger      Ledger
	tiers       map[string]config.TierConfig
	defaultTier string
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// NewEnforcer creates an enforcer over led using the tier table from
// cfg. logger and collector may be nil.
func NewEnforcer(cfg *config.Config, led Ledger, logger *slog.Logger, collector *metrics.Collector) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		ledger:      led,
		tiers:       cfg.Tiers,
		defaultTier: cfg.DefaultTier,
		logger:      logger.With("component", component),
		metrics:     collector,
	}
}

// Tier returns the named tier's configuration. An empty name resolves
// to the default tier; an unknown name is a ConfigurationError.
func (e *Enforcer) Tier(name string) (config.TierConfig, error) {
	if name == "" {
		name = e.defaultTier
	}
	tier, ok := e.tiers[name]
	if !ok {
		return config.TierConfig{}, unknownTier(name)
	}
	return tier, nil
}

// CheckQuota checks and reserves amount units of the given quota type
// for the subject. amount values below 1 are treated as 1.
//
// A tier limit of -1 short-circuits to an allowed result without
// touching the ledger. A ledger failure is returned as an error; the
// caller must treat it as a denial.
func (e *Enforcer) CheckQuota(ctx context.Context, subjectID, tierName string, qt Type, amount int64) (*Result, error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveCheckDuration(component, time.Since(start).Seconds())
	}()

	if amount < 1 {
		amount = 1
	}
	if !qt.Valid() {
		e.metrics.RecordDecision(component, metrics.OutcomeError)
		return nil, unknownType(qt)
	}
	tier, err := e.Tier(tierName)
	if err != nil {
		e.metrics.RecordDecision(component, metrics.OutcomeError)
		return nil, err
	}

	limit := qt.limitIn(tier.Quotas)
	if limit == config.UnlimitedSentinel {
		e.metrics.RecordDecision(component, metrics.OutcomeAllowed)
		return unlimitedResult(qt), nil
	}

	dec, err := e.ledger.CheckAndIncrement(ctx, subjectKey(subjectID, qt), ledger.Limits{qt.window(): limit}, amount)
	if err != nil {
		return nil, e.failClosed(subjectID, qt, err)
	}
	return e.toResult(qt, dec, amount), nil
}

// CheckEmailSend atomically checks and reserves count sends against the
// daily and monthly email quotas together, so a send that fits the day
// but not the month (or vice versa) consumes neither.
func (e *Enforcer) CheckEmailSend(ctx context.Context, subjectID, tierName string, count int64) (*Result, error) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveCheckDuration(component, time.Since(start).Seconds())
	}()

	if count < 1 {
		count = 1
	}
	tier, err := e.Tier(tierName)
	if err != nil {
		e.metrics.RecordDecision(component, metrics.OutcomeError)
		return nil, err
	}

	daily := tier.Quotas.DailyEmails
	monthly := tier.Quotas.MonthlyEmails
	if daily == config.UnlimitedSentinel && monthly == config.UnlimitedSentinel {
		e.metrics.RecordDecision(component, metrics.OutcomeAllowed)
		return unlimitedResult(DailyEmails), nil
	}

	limits := ledger.Limits{ledger.Daily: daily, ledger.Monthly: monthly}
	dec, err := e.ledger.CheckAndIncrement(ctx, subjectKey(subjectID, DailyEmails), limits, count)
	if err != nil {
		return nil, e.failClosed(subjectID, DailyEmails, err)
	}

	qt := DailyEmails
	if dec.Window == ledger.Monthly {
		qt = MonthlyEmails
	}
	return e.toResult(qt, dec, count), nil
}

// TrackUsage records amount units of after-the-fact usage, such as the
// recipient count of a campaign that was actually delivered. It is
// best-effort: errors are logged and swallowed, and the recorded usage
// is not checked against the limit. Overage surfaces on the subject's
// next CheckQuota.
func (e *Enforcer) TrackUsage(ctx context.Context, subjectID, tierName string, qt Type, amount int64) {
	if amount < 1 {
		amount = 1
	}
	if !qt.Valid() {
		e.logger.Warn("usage tracking dropped", "subject", subjectID, "error", unknownType(qt))
		return
	}
	tier, err := e.Tier(tierName)
	if err != nil {
		e.logger.Warn("usage tracking dropped", "subject", subjectID, "quota_type", qt, "error", err)
		return
	}

	limits := ledger.Limits{qt.window(): qt.limitIn(tier.Quotas)}
	if err := e.ledger.RecordUsage(ctx, subjectKey(subjectID, qt), limits, amount); err != nil {
		e.metrics.RecordStoreFailure("ledger", metrics.DispositionSwallowed)
		e.logger.Warn("usage tracking failed",
			"subject", subjectID,
			"quota_type", qt,
			"amount", amount,
			"error", err,
		)
	}
}

// ProvisionSubject creates ledger rows for every quota dimension the
// tier caps, typically at API key issuance.
func (e *Enforcer) ProvisionSubject(ctx context.Context, subjectID, tierName string) error {
	tier, err := e.Tier(tierName)
	if err != nil {
		return err
	}
	for _, qt := range Types {
		limit := qt.limitIn(tier.Quotas)
		if limit == config.UnlimitedSentinel {
			continue
		}
		limits := ledger.Limits{qt.window(): limit}
		if err := e.ledger.Provision(ctx, subjectKey(subjectID, qt), limits); err != nil {
			return fmt.Errorf("provision %s: %w", qt, err)
		}
	}
	return nil
}

// RemoveSubject deletes the subject's ledger rows across all quota
// dimensions. Called when the subject itself is deleted.
func (e *Enforcer) RemoveSubject(ctx context.Context, subjectID string) error {
	for _, dim := range []string{"emails", "recipients", "templates", "domains"} {
		if err := e.ledger.Remove(ctx, subjectID+":"+dim); err != nil {
			return fmt.Errorf("remove %s: %w", dim, err)
		}
	}
	return nil
}

// UsageFor returns the subject's current standing on one quota type, or
// ok=false when no ledger row exists yet.
func (e *Enforcer) UsageFor(ctx context.Context, subjectID string, qt Type) (ledger.WindowStatus, bool, error) {
	if !qt.Valid() {
		return ledger.WindowStatus{}, false, unknownType(qt)
	}
	usage, err := e.ledger.Usage(ctx, subjectKey(subjectID, qt))
	if err != nil {
		return ledger.WindowStatus{}, false, err
	}
	status, ok := usage[qt.window()]
	return status, ok, nil
}

func (e *Enforcer) failClosed(subjectID string, qt Type, err error) error {
	e.metrics.RecordStoreFailure("ledger", metrics.DispositionFailClosed)
	e.metrics.RecordDecision(component, metrics.OutcomeError)
	e.logger.Error("quota ledger unavailable, failing closed",
		"subject", subjectID,
		"quota_type", qt,
		"error", err,
	)
	return fmt.Errorf("quota check for %s: %w", qt, err)
}

func (e *Enforcer) toResult(qt Type, dec *ledger.Decision, amount int64) *Result {
	res := &Result{
		Allowed:    dec.Allowed,
		QuotaType:  qt,
		Limit:      dec.Limit,
		Remaining:  dec.Remaining,
		ResetAt:    dec.ResetAt,
		RetryAfter: dec.RetryAfter,
	}
	if dec.Allowed {
		e.metrics.RecordDecision(component, metrics.OutcomeAllowed)
		res.CurrentUsage = dec.Usage - amount
	} else {
		e.metrics.RecordDecision(component, metrics.OutcomeDenied)
		res.CurrentUsage = dec.Usage
	}
	return res
}

func unlimitedResult(qt Type) *Result {
	return &Result{
		Allowed:   true,
		QuotaType: qt,
		Limit:     config.UnlimitedSentinel,
		Remaining: config.UnlimitedSentinel,
		Unlimited: true,
	}
}

func subjectKey(subjectID string, qt Type) string {
	return subjectID + ":" + qt.dimension()
}
