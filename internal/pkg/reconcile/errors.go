package reconcile

import "errors"

// Error is a checkout/reconciliation failure with a stable machine code.
// Codes are part of the API contract and surface as error.code in responses.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	// ErrInvalidCourse covers missing and unpublished courses.
	ErrInvalidCourse = &Error{Code: "INVALID_COURSE", Message: "course does not exist or is not published"}

	// ErrAlreadyEnrolled means the caller already holds an active enrollment.
	ErrAlreadyEnrolled = &Error{Code: "ALREADY_ENROLLED", Message: "enrollment is already active for this course"}

	// ErrAlreadyActive means a non-terminal payment exists for the pair; the
	// caller should resume or cancel the existing session.
	ErrAlreadyActive = &Error{Code: "ALREADY_ACTIVE", Message: "a checkout session is already in progress for this course"}

	// ErrNotCancelable means the payment has progressed past created.
	ErrNotCancelable = &Error{Code: "NOT_CANCELABLE", Message: "payment can no longer be canceled"}

	// ErrInvalidTransition is the compare-and-set guard firing. It is an
	// internal no-op signal, never surfaced to webhook callers.
	ErrInvalidTransition = &Error{Code: "INVALID_TRANSITION", Message: "payment is not in a state that allows this transition"}

	// ErrGatewayUnavailable marks retryable gateway failures.
	ErrGatewayUnavailable = &Error{Code: "GATEWAY_UNAVAILABLE", Message: "payment gateway is temporarily unavailable"}

	// ErrRefundExceedsCaptured rejects refunds above the captured amount.
	ErrRefundExceedsCaptured = &Error{Code: "REFUND_EXCEEDS_CAPTURED", Message: "refund amount exceeds the captured payment amount"}

	// ErrInvalidSignature rejects webhook deliveries at the boundary.
	ErrInvalidSignature = &Error{Code: "INVALID_SIGNATURE", Message: "webhook signature verification failed"}

	// ErrMalformedEvent rejects well-signed webhook payloads that cannot be
	// decoded into a known event shape.
	ErrMalformedEvent = &Error{Code: "MALFORMED_EVENT", Message: "webhook payload could not be decoded"}
)

// errLedgerMismatch marks a verified session whose amount or currency
// disagrees with the ledger row it references. Acknowledged but never
// applied; shows up on the failed-events surface for review.
var errLedgerMismatch = errors.New("gateway session does not match ledger")
