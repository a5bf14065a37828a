package domain

import "time"

type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "SUCCESS"
	OutcomeFailed  OutcomeKind = "FAILED"
	OutcomeError   OutcomeKind = "ERROR"
)

// FailureReason is the fixed vendor failure taxonomy. Each reason carries its
// own retryable classification.
type FailureReason string

const (
	FailureInvalidEmail     FailureReason = "INVALID_EMAIL"
	FailureEmailBounced     FailureReason = "EMAIL_BOUNCED"
	FailureRateLimited      FailureReason = "RATE_LIMITED"
	FailureTemporary        FailureReason = "TEMPORARY_FAILURE"
	FailureSpamDetected     FailureReason = "SPAM_DETECTED"
	FailureQuotaExceeded    FailureReason = "QUOTA_EXCEEDED"
	FailureValidationFailed FailureReason = "VALIDATION_FAILED"
	FailureSystemError      FailureReason = "SYSTEM_ERROR"
)

var retryableReasons = map[FailureReason]bool{
	FailureInvalidEmail:     false,
	FailureEmailBounced:     false,
	FailureRateLimited:      true,
	FailureTemporary:        true,
	FailureSpamDetected:     false,
	FailureQuotaExceeded:    true,
	FailureValidationFailed: false,
	FailureSystemError:      true,
}

func (r FailureReason) Retryable() bool {
	return retryableReasons[r]
}

func (r FailureReason) Message() string {
	switch r {
	case FailureInvalidEmail:
		return "recipient address rejected by vendor"
	case FailureEmailBounced:
		return "message bounced"
	case FailureRateLimited:
		return "vendor rate limit exceeded"
	case FailureTemporary:
		return "temporary vendor failure"
	case FailureSpamDetected:
		return "message classified as spam"
	case FailureQuotaExceeded:
		return "sending quota exceeded"
	case FailureValidationFailed:
		return "payload failed validation"
	case FailureSystemError:
		return "internal error during vendor call"
	}
	return string(r)
}

// Outcome is the result of one vendor call for one communication. It is
// carried over the broker inside an OutcomeMessage and consumed exactly once
// per delivery (at-least-once under redelivery).
type Outcome struct {
	Kind         OutcomeKind   `json:"status"`
	VendorRef    string        `json:"vendor_ref,omitempty"`
	Cost         float64       `json:"cost,omitempty"`
	ErrorCode    FailureReason `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Retryable    bool          `json:"retryable"`
	DeliveredAt  *time.Time    `json:"delivered_at,omitempty"`
	FailedAt     *time.Time    `json:"failed_at,omitempty"`
}

func SuccessOutcome(vendorRef string, cost float64, deliveredAt time.Time) Outcome {
	return Outcome{
		Kind:        OutcomeSuccess,
		VendorRef:   vendorRef,
		Cost:        cost,
		DeliveredAt: &deliveredAt,
	}
}

func FailedOutcome(reason FailureReason, failedAt time.Time) Outcome {
	return Outcome{
		Kind:         OutcomeFailed,
		ErrorCode:    reason,
		ErrorMessage: reason.Message(),
		Retryable:    reason.Retryable(),
		FailedAt:     &failedAt,
	}
}

// ErrorOutcome wraps a system-level error (vendor call blew up, not a vendor
// verdict) so the standard retry path applies uniformly.
func ErrorOutcome(err error, failedAt time.Time) Outcome {
	return Outcome{
		Kind:         OutcomeError,
		ErrorCode:    FailureSystemError,
		ErrorMessage: err.Error(),
		Retryable:    true,
		FailedAt:     &failedAt,
	}
}

// ValidationOutcome is the fail-fast outcome for a malformed vendor payload.
// Not retryable: resending the same garbage cannot succeed.
func ValidationOutcome(msg string, failedAt time.Time) Outcome {
	return Outcome{
		Kind:         OutcomeError,
		ErrorCode:    FailureValidationFailed,
		ErrorMessage: msg,
		FailedAt:     &failedAt,
	}
}
