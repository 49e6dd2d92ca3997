package jobqueue

import (
	"context"
	"fmt"

	"github.com/coursedesk/coursedesk/app/repository"
	"github.com/coursedesk/coursedesk/internal/pkg/mail"
	"github.com/coursedesk/coursedesk/internal/pkg/metrics/counter"
)

// processEnrollmentEmailJob sends the enrollment notification for a payment
// outcome. Failures are retried by the queue; they never touch payment or
// enrollment state.
func (q *Queue) processEnrollmentEmailJob(ctx context.Context, job *Job) error {
	_ = ctx
	payload, err := EnrollmentEmailJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid enrollment email payload: %w", err)
	}

	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByID(payload.UserID)
	if err != nil {
		return fmt.Errorf("loading user %d: %w", payload.UserID, err)
	}
	course, err := repos.Course.GetByID(payload.CourseID)
	if err != nil {
		return fmt.Errorf("loading course %d: %w", payload.CourseID, err)
	}

	var subject, body string
	switch payload.Kind {
	case EmailKindConfirmation:
		subject = fmt.Sprintf("You're enrolled in %s", course.Title)
		body = fmt.Sprintf("<p>Hi %s,</p><p>your payment was received and your enrollment in <strong>%s</strong> is now active.</p>", user.Name, course.Title)
	case EmailKindPaymentFailed:
		subject = fmt.Sprintf("Payment failed for %s", course.Title)
		body = fmt.Sprintf("<p>Hi %s,</p><p>your payment for <strong>%s</strong> could not be completed. You can retry the checkout at any time.</p>", user.Name, course.Title)
		if payload.Reason != "" {
			body += fmt.Sprintf("<p>Reason: %s</p>", payload.Reason)
		}
	case EmailKindSuspended:
		subject = fmt.Sprintf("Your access to %s was suspended", course.Title)
		body = fmt.Sprintf("<p>Hi %s,</p><p>your payment for <strong>%s</strong> was refunded and course access has been revoked.</p>", user.Name, course.Title)
	default:
		return fmt.Errorf("unknown enrollment email kind: %s", payload.Kind)
	}

	return mail.SendMail(user.Email, subject, body)
}

// processCounterFlushJob drains the pending Redis counters.
func (q *Queue) processCounterFlushJob(ctx context.Context, job *Job) error {
	_ = ctx
	_ = job
	return counter.FlushAll()
}
