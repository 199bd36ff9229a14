package account

import "time"

// SkipReason explains why a decision cycle was not run for an account.
// Skips are observability values, not errors.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipDeleted       SkipReason = "deleted"
	SkipExpired       SkipReason = "account_expired"
	SkipDisabled      SkipReason = "disabled"
	SkipOutsideWindow SkipReason = "outside_window"
)

// Eligibility gates whether a decision cycle may run. Pure predicate, no
// side effects; rules are evaluated in a fixed order so the reported
// reason is deterministic.
func Eligibility(a *Account, now time.Time) SkipReason {
	if a.Status != StatusActive {
		return SkipDeleted
	}
	if !a.ExpireTime.IsZero() && now.After(a.ExpireTime) {
		return SkipExpired
	}
	if !a.Switched.On() {
		return SkipDisabled
	}
	if !a.Window.Contains(now) {
		return SkipOutsideWindow
	}
	return SkipNone
}
