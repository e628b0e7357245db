package screening

import (
	"errors"
	"strings"
)

var (
	ErrNotFound        = errors.New("screening: not found")
	ErrInvalidArgument = errors.New("screening: invalid argument")
	ErrTerminal        = errors.New("screening: call already terminal")
)

// Reason is the machine-readable cause attached to denials and failures.
// Denials are normal outcomes; none of these reasons rejects the candidate.
type Reason string

const (
	ReasonDuplicateActiveCall    Reason = "duplicate_active_call"
	ReasonCallLimitReached       Reason = "call_limit_reached"
	ReasonRetryLimitReached      Reason = "retry_limit_reached"
	ReasonProviderAuthError      Reason = "provider_auth_error"
	ReasonProviderPaymentError   Reason = "provider_payment_error"
	ReasonProviderTransientError Reason = "provider_transient_error"
	ReasonRetrievalExhausted     Reason = "retrieval_exhausted"
	ReasonStaleCleanup           Reason = "stale_cleanup"
	ReasonInterruptedNavigation  Reason = "interrupted_navigation"
	ReasonMaxDurationExceeded    Reason = "max_duration_exceeded"

	// state_conflict_* reasons carry the detector category as suffix.
	reasonStateConflictPrefix = "state_conflict_"
)

// StateConflict builds the reason used when reconciliation decided a failure.
func StateConflict(category string) Reason {
	return Reason(reasonStateConflictPrefix + category)
}

func (r Reason) IsStateConflict() bool {
	return strings.HasPrefix(string(r), reasonStateConflictPrefix)
}

// Unrecoverable reports provider failures that must not be retried by retrieval.
func (r Reason) Unrecoverable() bool {
	return r == ReasonProviderAuthError || r == ReasonProviderPaymentError
}

// Describe returns the short text used in timeline notes and shown to
// candidates when admission is denied.
func (r Reason) Describe() string {
	switch r {
	case ReasonDuplicateActiveCall:
		return "a screening call is already in progress"
	case ReasonCallLimitReached:
		return "screening already completed"
	case ReasonRetryLimitReached:
		return "no screening attempts remaining; please contact the recruiter to continue"
	case ReasonProviderAuthError:
		return "voice provider rejected our credentials"
	case ReasonProviderPaymentError:
		return "voice provider account has a billing problem"
	case ReasonProviderTransientError:
		return "voice provider was temporarily unavailable"
	case ReasonRetrievalExhausted:
		return "call results could not be retrieved"
	case ReasonStaleCleanup:
		return "stale cleanup"
	case ReasonInterruptedNavigation:
		return "call interrupted by navigation"
	case ReasonMaxDurationExceeded:
		return "call exceeded maximum duration"
	}
	if r.IsStateConflict() {
		return "call results indicated failure (" + strings.TrimPrefix(string(r), reasonStateConflictPrefix) + ")"
	}
	return string(r)
}
