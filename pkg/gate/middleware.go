package gate

import (
	"encoding/json"
	"net"
	"net/http"
)

// SubjectResolver extracts the subject from an inbound request. It is
// supplied by the surrounding platform, which knows where API keys and
// tenant ids live on its requests.
type SubjectResolver func(r *http.Request) (Subject, error)

// denialBody is the JSON payload written on a denied request.
type denialBody struct {
	Error      string `json:"error"`
	DecisionID string `json:"decision_id"`
	RetryAfter int64  `json:"retry_after_seconds,omitempty"`
}

// Middleware returns an http middleware that applies the subject's tier
// rate limit under the given scope before invoking the next handler.
//
// Requests whose subject cannot be resolved are limited by remote
// address under the fallback policy instead of being let through
// unchecked. Denials answer 429 with a JSON body and Retry-After.
func (g *Gate) Middleware(scope string, resolve SubjectResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, err := resolve(r)
			if err != nil || sub.ID == "" {
				sub = Subject{IP: remoteIP(r)}
				sub.ID = sub.IP
			}

			dec := g.CheckRateLimit(r.Context(), scope, sub)
			ApplyHeaders(w.Header(), dec)

			if !dec.Allowed {
				writeDenial(w, dec)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDenial(w http.ResponseWriter, dec *Decision) {
	status := http.StatusTooManyRequests
	message := "rate limit exceeded"
	switch dec.Reason {
	case ReasonQuotaExceeded:
		message = "quota exceeded"
	case ReasonConfiguration:
		status = http.StatusInternalServerError
		message = "limit configuration error"
	case ReasonStoreFailure:
		status = http.StatusServiceUnavailable
		message = "quota service unavailable"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(denialBody{
		Error:      message,
		DecisionID: dec.ID,
		RetryAfter: int64(dec.RetryAfter.Seconds()),
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
