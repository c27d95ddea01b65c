package etherscan

import (
	"errors"
	"strings"
)

var (
	// ErrPaginationLimit signals the upstream's absolute result-window
	// ceiling. It is a structural condition, not a transient fault: callers
	// must switch to block-range segmentation instead of retrying.
	ErrPaginationLimit = errors.New("pagination limit exceeded")

	// ErrUpstream signals a transport-level failure that survived the retry
	// budget.
	ErrUpstream = errors.New("upstream request failed")
)

// paginationLimitSignals are the known upstream phrasings of the ceiling.
// The upstream sometimes reports the condition inside a 200 OK envelope, so
// the message text is the only reliable signal.
var paginationLimitSignals = []string{
	"result window is too large",
	"offset size must be less than or equal to 10000",
}

// isPaginationLimitMessage reports whether an upstream message is the
// result-window ceiling.
func isPaginationLimitMessage(msg string) bool {
	m := strings.ToLower(msg)
	for _, s := range paginationLimitSignals {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

// isRateLimitMessage reports whether an upstream message is a throttle signal.
func isRateLimitMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "rate limit")
}
