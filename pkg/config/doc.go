// Package config defines the YAML configuration surface for the
// gatekeeper engine and its operational binary.
//
// Configuration is loaded once at process start via Load, which applies
// defaults and validates before returning. The tier table (quota
// definitions and per-tier rate limits) is immutable at runtime; the
// Watcher only reports that the file changed on disk so operators know
// a restart is required to pick it up.
//
// Example configuration:
//
//	server:
//	  listen_address: ":8091"
//	redis:
//	  address: "localhost:6379"
//	  key_prefix: "gk:"
//	ledger:
//	  path: "/var/lib/gatekeeper/ledger.db"
//	  sweep_schedule: "@hourly"
//	default_tier: free
//	tiers:
//	  free:
//	    rate_limit:
//	      window: 60s
//	      max_requests: 120
//	    quotas:
//	      daily_emails: 100
//	      monthly_emails: 2000
//	      monthly_recipients: 5000
//	      templates: 10
//	      custom_domains: 1
//	  enterprise:
//	    rate_limit:
//	      window: 60s
//	      max_requests: 6000
//	    quotas:
//	      daily_emails: -1
//	      monthly_emails: -1
//	      monthly_recipients: -1
//	      templates: -1
//	      custom_domains: -1
//
// The value -1 marks a quota as unlimited.
package config
