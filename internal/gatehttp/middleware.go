// Package gatehttp is the HTTP shell around the admission engine: it extracts
// request attributes, asks the decider for a verdict and translates the
// outcome into status codes and headers.
package gatehttp

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"gatekeep/pkg/admission"
	"gatekeep/pkg/identity"
	"gatekeep/pkg/logger"
)

// Options configure the middleware.
type Options struct {
	// Decider makes the admission decision. Required.
	Decider *admission.Decider

	// CredentialHeader is the request header carrying the API key.
	// Defaults to "X-API-Key".
	CredentialHeader string

	// TrustForwardedFor reads the client address from the first entry of
	// X-Forwarded-For. Only enable behind a trusted proxy.
	TrustForwardedFor bool

	// Logger defaults to the global logger.
	Logger logger.Logger
}

// Middleware wraps next with admission control. Resolution failures map to
// 400/403, denials to 429 with a Retry-After header and a JSON body.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.CredentialHeader == "" {
		opts.CredentialHeader = "X-API-Key"
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attrs := identity.Attributes{
				RemoteAddr: clientAddr(r, opts.TrustForwardedFor),
				Credential: r.Header.Get(opts.CredentialHeader),
			}

			verdict, err := opts.Decider.Decide(attrs)
			if err != nil {
				writeResolutionError(w, err)
				return
			}

			if !verdict.Allowed {
				seconds := verdict.RetryAfter.Seconds()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(seconds))))
				writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"error":       fmt.Sprintf("Rate limit exceeded. Retry after %.2f seconds", seconds),
					"retry_after": seconds,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr picks the address the engine should attribute the request to.
func clientAddr(r *http.Request, trustXFF bool) string {
	if trustXFF {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// first entry is the original client
			if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
				return first
			}
		}
	}
	return r.RemoteAddr
}

func writeResolutionError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	message := "request could not be attributed to an identity"

	switch {
	case identity.IsCredentialMissing(err):
		message = "missing API key"
	case identity.IsCredentialInvalid(err):
		status = http.StatusForbidden
		message = "invalid API key"
	case identity.IsMissingAddress(err):
		message = "request has no client information"
	}

	writeJSON(w, status, map[string]interface{}{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
