package quota

import (
	"fmt"
	"time"

	"mailcove/gatekeeper/pkg/config"
	"mailcove/gatekeeper/pkg/ledger"
)

// Type identifies one billing quota dimension.
type Type string

// The quota dimensions tiers are limited on.
const (
	DailyEmails       Type = "daily_emails"
	MonthlyEmails     Type = "monthly_emails"
	MonthlyRecipients Type = "monthly_recipients"
	Templates         Type = "templates"
	CustomDomains     Type = "custom_domains"
)

// Types lists every quota dimension.
var Types = []Type{DailyEmails, MonthlyEmails, MonthlyRecipients, Templates, CustomDomains}

// Valid reports whether t is a known quota type.
func (t Type) Valid() bool {
	switch t {
	case DailyEmails, MonthlyEmails, MonthlyRecipients, Templates, CustomDomains:
		return true
	}
	return false
}

// dimension returns the ledger subject suffix for the quota type.
// Daily and monthly email quotas share one dimension so a single send
// advances both windows of the same counter.
func (t Type) dimension() string {
	switch t {
	case DailyEmails, MonthlyEmails:
		return "emails"
	case MonthlyRecipients:
		return "recipients"
	case Templates:
		return "templates"
	case CustomDomains:
		return "domains"
	}
	return string(t)
}

// window returns the ledger window the quota type is accounted in.
func (t Type) window() ledger.Window {
	switch t {
	case DailyEmails, Templates:
		return ledger.Daily
	default:
		return ledger.Monthly
	}
}

// limitIn returns the quota type's limit in the given tier.
func (t Type) limitIn(q config.QuotaConfig) int64 {
	switch t {
	case DailyEmails:
		return q.DailyEmails
	case MonthlyEmails:
		return q.MonthlyEmails
	case MonthlyRecipients:
		return q.MonthlyRecipients
	case Templates:
		return q.Templates
	case CustomDomains:
		return q.CustomDomains
	}
	return 0
}

// Result is the outcome of a quota check.
//
// CurrentUsage is the usage before the requested amount was applied, so
// a denied and an allowed check at the same starting point report the
// same figure.
type Result struct {
	Allowed      bool
	QuotaType    Type
	CurrentUsage int64
	Limit        int64
	Remaining    int64
	ResetAt      time.Time
	RetryAfter   time.Duration

	// Unlimited marks a check that bypassed the ledger because the
	// tier places no cap on this dimension. ResetAt is zero.
	Unlimited bool
}

// ConfigurationError reports an unknown quota type or an unconfigured
// tier. It is fatal to the call and never retried.
type ConfigurationError struct {
	What string
}

func (e *ConfigurationError) Error() string {
	return "quota configuration: " + e.What
}

func unknownType(t Type) error {
	return &ConfigurationError{What: fmt.Sprintf("unknown quota type %q", t)}
}

func unknownTier(tier string) error {
	return &ConfigurationError{What: fmt.Sprintf("tier %q is not configured", tier)}
}
