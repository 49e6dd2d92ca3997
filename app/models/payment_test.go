package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusHelpers(t *testing.T) {
	terminal := []string{PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled, PaymentStatusRefunded}
	for _, status := range terminal {
		assert.True(t, IsTerminalPaymentStatus(status), status)
		assert.False(t, IsActivePaymentStatus(status), status)
	}

	active := []string{PaymentStatusCreated, PaymentStatusPending}
	for _, status := range active {
		assert.False(t, IsTerminalPaymentStatus(status), status)
		assert.True(t, IsActivePaymentStatus(status), status)
	}

	p := &Payment{Status: PaymentStatusSucceeded}
	assert.True(t, p.IsTerminal())
}

func TestEnrollmentIsActive(t *testing.T) {
	assert.True(t, (&Enrollment{Status: EnrollmentStatusActive}).IsActive())
	assert.False(t, (&Enrollment{Status: EnrollmentStatusSuspended}).IsActive())
	assert.False(t, (&Enrollment{Status: EnrollmentStatusDropped}).IsActive())
}

func TestCourseIsFree(t *testing.T) {
	assert.True(t, (&Course{PriceCents: 0}).IsFree())
	assert.False(t, (&Course{PriceCents: 9999}).IsFree())
}
