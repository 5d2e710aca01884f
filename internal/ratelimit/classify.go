package ratelimit

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrRateLimited marks an error as provider throttling.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError is implemented by errors that know whether they represent
// provider throttling.
type RateLimitError interface {
	error
	RateLimited() bool
}

// statusPattern matches a 429 reported as a status code, not the digits
// appearing inside an id or count.
var statusPattern = regexp.MustCompile(`\b(?:status|http|code)[ :=]*429\b`)

type retryAfterHinter interface {
	RetryAfterHint() time.Duration
}

// IsRateLimitError reports whether err represents provider throttling.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var rl RateLimitError
	if errors.As(err, &rl) && rl.RateLimited() {
		return true
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") {
		return true
	}
	return statusPattern.MatchString(msg)
}

// RetryAfter extracts a server-provided retry hint from err, or zero.
func RetryAfter(err error) time.Duration {
	var hinter retryAfterHinter
	if errors.As(err, &hinter) {
		return max(hinter.RetryAfterHint(), 0)
	}
	return 0
}
