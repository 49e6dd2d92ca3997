package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/coursedesk/coursedesk/app/models"
)

// CheckoutStart is the result of beginning a checkout: either a brand-new
// ledger row or an existing active payment the caller should resume.
type CheckoutStart struct {
	Payment *models.Payment
	Resumed bool
}

// EnrollmentEffect describes the enrollment write that must land in the same
// transaction as a payment transition.
type EnrollmentEffect struct {
	Status        string
	PaymentStatus string

	// SkipIfActive leaves an already-active enrollment untouched. Used for
	// failure events so a stale failed attempt can never suspend access that
	// a newer successful attempt already granted.
	SkipIfActive bool
}

// checkoutIdempotencyKey is deterministic over (user, course, UTC day,
// attempt). Stable within a day for the same attempt so retried requests
// reuse the gateway session; the attempt count keeps a restart after a
// terminal payment from reproducing the dead row's key.
func checkoutIdempotencyKey(userID, courseID uint, at time.Time, attempt int64) string {
	day := at.UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(fmt.Sprintf("checkout:%d:%d:%s:%d", userID, courseID, day, attempt)))
	return hex.EncodeToString(sum[:])
}

// activeKey is the value held in Payment.ActiveKey while a payment is
// non-terminal. The unique index over it is what makes the at-most-one-active
// invariant hold under concurrent inserts.
func activeKey(userID, courseID uint) string {
	return fmt.Sprintf("%d:%d", userID, courseID)
}
