package gate

import (
	"net/http"
	"strconv"
	"time"

	"mailcove/gatekeeper/pkg/config"
)

// ApplyHeaders writes the advisory X-RateLimit headers for a decision.
// Decisions without meaningful figures (unlimited subjects, fail-open
// results, configuration denials) emit nothing. Denials additionally
// carry Retry-After in whole seconds, rounded up so a client that waits
// exactly that long lands past the boundary.
func ApplyHeaders(h http.Header, dec *Decision) {
	if dec.Limit == config.UnlimitedSentinel || dec.Limit == 0 {
		if !dec.Allowed && dec.RetryAfter > 0 {
			h.Set("Retry-After", retryAfterSeconds(dec.RetryAfter))
		}
		return
	}

	h.Set("X-RateLimit-Limit", strconv.FormatInt(dec.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))
	if !dec.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.ResetAt.Unix(), 10))
	}
	if !dec.Allowed && dec.RetryAfter > 0 {
		h.Set("Retry-After", retryAfterSeconds(dec.RetryAfter))
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
