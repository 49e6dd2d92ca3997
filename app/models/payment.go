package models

import "time"

// Payment status values. A payment is terminal once it reaches succeeded,
// failed, canceled or refunded; the only transition out of a terminal state
// is succeeded -> refunded via an explicit refund.
const (
	PaymentStatusCreated   = "created"
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusCanceled  = "canceled"
	PaymentStatusRefunded  = "refunded"
)

// Payment is one attempt to pay for a course. Rows are created by the
// checkout flow and mutated only by the reconciliation engine; they are
// never deleted.
//
// The partial-unique column ActiveKey enforces at most one non-terminal
// payment per (user, course): it holds "userID:courseID" while the payment
// is in created/pending and is cleared (NULL) on every terminal transition,
// so the unique index only ever sees active rows.
type Payment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;index:idx_payments_user_course,priority:1" json:"user_id"`
	CourseID          uint       `gorm:"not null;index:idx_payments_user_course,priority:2" json:"course_id"`
	ExternalSessionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_payments_external_session" json:"external_session_id"`
	AmountCents       int64      `gorm:"not null" json:"amount_cents"`
	Currency          string     `gorm:"type:varchar(3);not null" json:"currency"`
	Status            string     `gorm:"type:varchar(16);not null;default:'created';index" json:"status"`
	IdempotencyKey    string     `gorm:"type:varchar(128);not null;uniqueIndex:ux_payments_idempotency_key" json:"-"`
	ActiveKey         *string    `gorm:"type:varchar(64);default:null;uniqueIndex:ux_payments_active_key" json:"-"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	RefundedAt        *time.Time `gorm:"type:timestamp;default:null" json:"refunded_at,omitempty"`
	RefundAmountCents *int64     `gorm:"default:null" json:"refund_amount_cents,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether no further webhook-driven transition applies.
func (p *Payment) IsTerminal() bool {
	return IsTerminalPaymentStatus(p.Status)
}

func IsTerminalPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// IsActivePaymentStatus reports whether the status counts against the
// one-active-payment-per-course limit.
func IsActivePaymentStatus(status string) bool {
	return status == PaymentStatusCreated || status == PaymentStatusPending
}
