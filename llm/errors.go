// Transient failure classification for completion calls.
//
// Providers surface rate limits and server-side trouble either as
// returned errors or as in-band error stop reasons. The agent retry
// loop treats both forms identically; this file classifies the error
// form.

package llm

import (
	"context"
	"errors"
	"strings"
)

// transientMarkers are substrings common to retryable provider errors.
var transientMarkers = []string{
	"rate limit",
	"rate_limit",
	"429",
	"overloaded",
	"529",
	"internal server error",
	"500",
	"502",
	"503",
	"504",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"timeout",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"broken pipe",
	"unexpected eof",
	"try again",
}

// IsTransientError reports whether err looks like a transient provider
// failure: rate limiting, overload, server errors, or network trouble.
// Cancellation is never transient; a per-call deadline is.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
