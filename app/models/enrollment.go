package models

import "time"

// Enrollment status values. Absence of a row means "not enrolled".
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusSuspended = "suspended"
	EnrollmentStatusDropped   = "dropped"
	EnrollmentStatusCompleted = "completed"
)

// Enrollment payment linkage states.
const (
	EnrollmentPaymentUnpaid = "unpaid"
	EnrollmentPaymentPaid   = "paid"
	EnrollmentPaymentFailed = "failed"
)

// Enrollment is a user's relationship to a course. For paid courses rows are
// written only by the reconciliation engine, inside the same transaction as
// the payment transition that caused them. Free courses create active rows
// directly without any payment linkage.
type Enrollment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index:ux_enrollments_user_course,unique,priority:1" json:"user_id"`
	CourseID      uint      `gorm:"not null;index:ux_enrollments_user_course,unique,priority:2" json:"course_id"`
	Status        string    `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	PaymentStatus string    `gorm:"type:varchar(16);not null;default:'unpaid'" json:"payment_status"`
	PaymentID     *uint     `gorm:"default:null;index" json:"payment_id,omitempty"`
	EnrolledAt    time.Time `gorm:"autoCreateTime" json:"enrolled_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the enrollment currently grants course access.
func (e *Enrollment) IsActive() bool {
	return e.Status == EnrollmentStatusActive
}
