package alerting

import (
	"errors"
	"fmt"
	"time"

	"water-monitor/internal/models"
)

// Suppression outcomes. None of these are failures; they explain why
// Consider did not produce a request.
var (
	ErrAlertsDisabled = errors.New("alerts disabled")
	ErrNotEligible    = errors.New("severity not eligible for alerting")
	ErrSameState      = errors.New("alert class unchanged since last send")
	ErrInFlight       = errors.New("alert for this class already in flight")
)

// RateLimitedError reports that the class cooldown has not yet elapsed.
type RateLimitedError struct {
	Severity   models.Severity
	RetryAfter time.Duration
	Until      time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s alert rate limited, retry in %s", e.Severity, e.RetryAfter.Round(time.Second))
}

// IsSuppressed reports whether err is an informational suppression outcome
// rather than a real error.
func IsSuppressed(err error) bool {
	var rl *RateLimitedError
	return errors.Is(err, ErrAlertsDisabled) ||
		errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrSameState) ||
		errors.Is(err, ErrInFlight) ||
		errors.As(err, &rl)
}

// Reason is a short label for a suppression outcome, used in logs and metrics.
func Reason(err error) string {
	var rl *RateLimitedError
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, ErrAlertsDisabled):
		return "disabled"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrSameState):
		return "same_state"
	case errors.Is(err, ErrInFlight):
		return "in_flight"
	case errors.As(err, &rl):
		return "rate_limited"
	default:
		return "error"
	}
}
