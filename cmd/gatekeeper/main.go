// Gatekeeper is the rate-limiting and quota-enforcement engine for the
// Mailcove platform.
//
// It decides, for every inbound unit of work (an API call, an email
// send, a template creation), whether it is allowed to proceed, how much
// of a bounded resource remains, and when the resource replenishes:
//   - Sliding-window abuse limits backed by a shared Redis counter cache
//   - Calendar-window billing quotas in a durable SQLite ledger
//   - Automatic failover to an in-process counter store behind a
//     circuit breaker, with probe-driven recovery
//
// Usage:
//
//	# Start the operational daemon (health, metrics, ledger sweeper)
//	gatekeeper run
//
//	# Start with a custom configuration file
//	gatekeeper run --config /etc/mailcove/gatekeeper.yaml
//
//	# Validate a configuration file
//	gatekeeper validate --config /etc/mailcove/gatekeeper.yaml
//
//	# Show version information
//	gatekeeper version
package main

func main() {
	Execute()
}
