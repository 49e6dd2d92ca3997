package jobqueue

import (
	"github.com/gofiber/fiber/v2/log"
)

// Notifier bridges the reconciliation engine to the job queue: every
// notification becomes an enrollment email job enqueued after the payment
// transaction has committed. Enqueue failures are logged and dropped,
// matching the engine's contract that side effects never roll back state.
type Notifier struct {
	queue *Queue
}

// NewNotifier creates a notifier backed by the given queue.
func NewNotifier(queue *Queue) *Notifier {
	return &Notifier{queue: queue}
}

func (n *Notifier) NotifyEnrollmentActivated(userID, courseID, paymentID uint) {
	n.enqueue(EnrollmentEmailJobPayload{
		UserID:    userID,
		CourseID:  courseID,
		PaymentID: paymentID,
		Kind:      EmailKindConfirmation,
	})
}

func (n *Notifier) NotifyPaymentFailed(userID, courseID uint, reason string) {
	n.enqueue(EnrollmentEmailJobPayload{
		UserID:   userID,
		CourseID: courseID,
		Kind:     EmailKindPaymentFailed,
		Reason:   reason,
	})
}

func (n *Notifier) NotifyEnrollmentSuspended(userID, courseID uint) {
	n.enqueue(EnrollmentEmailJobPayload{
		UserID:   userID,
		CourseID: courseID,
		Kind:     EmailKindSuspended,
	})
}

func (n *Notifier) enqueue(payload EnrollmentEmailJobPayload) {
	if _, err := n.queue.EnqueueJob(JobTypeEnrollmentEmail, payload.ToMap()); err != nil {
		log.Errorf("failed to enqueue %s email for user %d course %d: %v", payload.Kind, payload.UserID, payload.CourseID, err)
	}
}
