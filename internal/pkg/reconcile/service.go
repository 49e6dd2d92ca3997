package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/coursedesk/coursedesk/app/models"
	"github.com/coursedesk/coursedesk/internal/pkg/gateway"
)

// Notifier receives post-commit notifications for side effects that must
// never roll back payment state (confirmation mail and the like). Calls are
// best-effort and non-blocking.
type Notifier interface {
	NotifyEnrollmentActivated(userID, courseID, paymentID uint)
	NotifyPaymentFailed(userID, courseID uint, reason string)
	NotifyEnrollmentSuspended(userID, courseID uint)
}

// Service is the reconciliation engine. Every payment mutation funnels
// through the repository's compare-and-set transition, so webhook
// redeliveries, out-of-order events and racing user actions all resolve by
// the payment row's current status rather than by arrival order.
type Service struct {
	repo     Repository
	notifier Notifier
}

// NewService creates an engine from an injected repository.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// NewServiceFromDB creates an engine from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, notifier Notifier) *Service {
	return NewService(NewRepository(db), notifier)
}

// BeginCheckout validates a checkout request before any gateway call. It
// returns the course and, when an active payment already exists, that
// payment for the caller to resume instead of opening a second session.
func (s *Service) BeginCheckout(ctx context.Context, userID, courseID uint) (*models.Course, *models.Payment, error) {
	_ = ctx
	course, err := s.repo.GetCourse(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCourse
		}
		return nil, nil, err
	}
	if !course.Published {
		return nil, nil, ErrInvalidCourse
	}

	if enrollment, err := s.repo.FindEnrollment(userID, courseID); err == nil && enrollment.IsActive() {
		return nil, nil, ErrAlreadyEnrolled
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	if course.IsFree() {
		return course, nil, nil
	}

	if existing, err := s.repo.FindActivePayment(userID, courseID); err == nil {
		return course, existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	return course, nil, nil
}

// CheckoutIdempotencyKey derives the idempotency key for the caller's next
// checkout attempt. Rapid double-clicks land on the same key and collapse
// into one gateway session; a canceled or failed row bumps the attempt
// count, so restarting checkout the same day gets a fresh key instead of
// colliding with the dead row's unique indexes.
func (s *Service) CheckoutIdempotencyKey(ctx context.Context, userID, courseID uint) (string, error) {
	_ = ctx
	attempt, err := s.repo.CountPaymentsForPair(userID, courseID)
	if err != nil {
		return "", err
	}
	return checkoutIdempotencyKey(userID, courseID, time.Now(), attempt), nil
}

// RecordCheckoutSession writes the ledger row for a freshly created gateway
// session. The gateway call already happened; this is the single subsequent
// transaction. A duplicate-key failure means a concurrent request won the
// race, in which case the winner's payment is returned as a resume.
func (s *Service) RecordCheckoutSession(ctx context.Context, userID uint, course *models.Course, session *gateway.CheckoutSession, idempotencyKey string) (*CheckoutStart, error) {
	_ = ctx
	payment := &models.Payment{
		UserID:            userID,
		CourseID:          course.ID,
		ExternalSessionID: session.ID,
		AmountCents:       course.PriceCents,
		Currency:          course.Currency,
		Status:            models.PaymentStatusCreated,
		IdempotencyKey:    idempotencyKey,
	}

	if err := s.repo.CreatePayment(payment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, ferr := s.repo.FindActivePayment(userID, course.ID); ferr == nil {
				return &CheckoutStart{Payment: existing, Resumed: true}, nil
			}
			return nil, ErrAlreadyActive
		}
		return nil, err
	}
	return &CheckoutStart{Payment: payment}, nil
}

// CancelPending abandons a checkout the user never completed. Only a payment
// still in created may be canceled; anything further along is owned by the
// gateway's outcome.
func (s *Service) CancelPending(ctx context.Context, userID, courseID uint) (*models.Payment, error) {
	_ = ctx
	payment, err := s.repo.FindActivePayment(userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotCancelable
		}
		return nil, err
	}

	canceled, err := s.repo.TransitionPayment(payment.ID,
		[]string{models.PaymentStatusCreated},
		models.PaymentStatusCanceled, nil, nil)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, ErrNotCancelable
		}
		return nil, err
	}
	return canceled, nil
}

// WebhookOutcome tells the ingress handler how a delivery resolved. All
// verified deliveries acknowledge with 2xx, including duplicates and stale
// events, so the gateway stops redelivering.
type WebhookOutcome struct {
	EventID   string
	EventType string
	Duplicate bool
	Ignored   bool
}

// ProcessWebhook persists the delivery for dedup/observability and applies
// the event to the state machine. The processed-event table guards
// exactly-once side effects; the per-payment CAS guards state. Callers
// verify the delivery signature before handing the body over: an unverified
// payload must never claim a dedup slot the genuine delivery will need.
func (s *Service) ProcessWebhook(ctx context.Context, rawBody []byte) (*WebhookOutcome, error) {
	event, err := gateway.ParseEvent(rawBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	eventID := strings.TrimSpace(event.ID)
	eventType := strings.TrimSpace(event.Type)
	if eventID == "" {
		sum := sha256.Sum256(rawBody)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(&models.PaymentWebhookEvent{
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
	})
	if err != nil {
		return nil, err
	}

	outcome := &WebhookOutcome{EventID: eventID, EventType: eventType}
	if !created {
		// Only deliveries that resolved cleanly are acknowledged as
		// duplicates. A stored row without processed_at (crash mid-apply) or
		// with a recorded error (transient DB failure) gets the redelivery
		// applied again; the CAS transition makes a double apply harmless.
		if stored.ProcessedAt != nil && stored.ProcessingError == "" {
			log.Infof("webhook event %s already processed, acknowledging duplicate", eventID)
			outcome.Duplicate = true
			return outcome, nil
		}
		log.Warnf("webhook event %s was stored but never applied, reprocessing", eventID)
	}

	var applyErr error
	switch event.Type {
	case gateway.EventCheckoutSessionCompleted:
		applyErr = s.applySessionCompleted(ctx, event)
	case gateway.EventPaymentIntentFailed:
		applyErr = s.applyPaymentFailed(ctx, event)
	case gateway.EventRefundUpdated:
		applyErr = s.applyRefundUpdated(ctx, event)
	default:
		outcome.Ignored = true
	}

	if applyErr != nil {
		// Stale or unmatched events are acknowledged, not retried; the CAS
		// guard already decided they cannot apply.
		if errors.Is(applyErr, ErrInvalidTransition) || errors.Is(applyErr, gorm.ErrRecordNotFound) {
			log.Infof("webhook event %s (%s) is a no-op: %v", eventID, eventType, applyErr)
			s.markProcessed(stored.ID, nil)
			outcome.Ignored = true
			return outcome, nil
		}
		// A ledger mismatch is permanent; retrying cannot fix it. Record it
		// for the failed-events surface and stop the redelivery loop.
		if errors.Is(applyErr, errLedgerMismatch) {
			log.Errorf("webhook event %s (%s) rejected: %v", eventID, eventType, applyErr)
			s.markProcessed(stored.ID, applyErr)
			outcome.Ignored = true
			return outcome, nil
		}
		s.markProcessed(stored.ID, applyErr)
		return outcome, applyErr
	}
	s.markProcessed(stored.ID, nil)
	return outcome, nil
}

func (s *Service) applySessionCompleted(ctx context.Context, event *gateway.Event) error {
	ev, err := event.SessionCompleted()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	payment, err := s.repo.FindPaymentBySessionID(ev.SessionID)
	if err != nil {
		return fmt.Errorf("no ledger row for session %s: %w", ev.SessionID, err)
	}

	// Sessions completed without captured funds (async payment methods)
	// only progress the row to pending; the paid outcome arrives later.
	if ev.PaymentStatus != "paid" {
		_, err := s.repo.TransitionPayment(payment.ID,
			[]string{models.PaymentStatusCreated},
			models.PaymentStatusPending, nil, nil)
		return err
	}

	// Access is only granted for the amount and currency the ledger row was
	// opened with. A session reporting anything else did not pay for this row.
	if ev.AmountTotal > 0 && ev.AmountTotal != payment.AmountCents {
		return fmt.Errorf("%w: session %s captured %d, ledger expects %d",
			errLedgerMismatch, ev.SessionID, ev.AmountTotal, payment.AmountCents)
	}
	if ev.Currency != "" && !strings.EqualFold(ev.Currency, payment.Currency) {
		return fmt.Errorf("%w: session %s captured %s, ledger expects %s",
			errLedgerMismatch, ev.SessionID, ev.Currency, payment.Currency)
	}

	now := time.Now()
	updated, err := s.repo.TransitionPayment(payment.ID,
		[]string{models.PaymentStatusCreated, models.PaymentStatusPending},
		models.PaymentStatusSucceeded,
		map[string]any{"paid_at": &now},
		&EnrollmentEffect{
			Status:        models.EnrollmentStatusActive,
			PaymentStatus: models.EnrollmentPaymentPaid,
		})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.NotifyEnrollmentActivated(updated.UserID, updated.CourseID, updated.ID)
	}
	return nil
}

func (s *Service) applyPaymentFailed(ctx context.Context, event *gateway.Event) error {
	ev, err := event.PaymentFailed()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	payment, err := s.repo.FindPaymentBySessionID(ev.SessionID)
	if err != nil {
		return fmt.Errorf("no ledger row for session %s: %w", ev.SessionID, err)
	}

	// SkipIfActive keeps a stale failure for attempt A from suspending the
	// enrollment a retried attempt B already activated.
	updated, err := s.repo.TransitionPayment(payment.ID,
		[]string{models.PaymentStatusCreated, models.PaymentStatusPending},
		models.PaymentStatusFailed, nil,
		&EnrollmentEffect{
			Status:        models.EnrollmentStatusSuspended,
			PaymentStatus: models.EnrollmentPaymentFailed,
			SkipIfActive:  true,
		})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.NotifyPaymentFailed(updated.UserID, updated.CourseID, ev.ErrorMessage)
	}
	return nil
}

func (s *Service) applyRefundUpdated(ctx context.Context, event *gateway.Event) error {
	ev, err := event.RefundUpdated()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Status != "succeeded" {
		return nil
	}

	payment, err := s.repo.FindPaymentBySessionID(ev.SessionID)
	if err != nil {
		return fmt.Errorf("no ledger row for session %s: %w", ev.SessionID, err)
	}

	_, err = s.applyRefundTransition(ctx, payment.ID, ev.AmountCents)
	return err
}

// PrepareRefund validates an admin refund request before the gateway call.
// Refunds are only reachable from succeeded and never exceed the captured
// amount; a zero amount means a full refund.
func (s *Service) PrepareRefund(ctx context.Context, paymentID uint, amountCents int64) (*models.Payment, int64, error) {
	_ = ctx
	payment, err := s.repo.FindPaymentByID(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrInvalidTransition
		}
		return nil, 0, err
	}
	if payment.Status != models.PaymentStatusSucceeded {
		return nil, 0, ErrInvalidTransition
	}
	if amountCents == 0 {
		amountCents = payment.AmountCents
	}
	if amountCents < 0 || amountCents > payment.AmountCents {
		return nil, 0, ErrRefundExceedsCaptured
	}
	return payment, amountCents, nil
}

// ApplyRefund finalizes a refund after the gateway accepted it.
func (s *Service) ApplyRefund(ctx context.Context, paymentID uint, amountCents int64) (*models.Payment, error) {
	return s.applyRefundTransition(ctx, paymentID, amountCents)
}

func (s *Service) applyRefundTransition(ctx context.Context, paymentID uint, amountCents int64) (*models.Payment, error) {
	_ = ctx
	now := time.Now()
	updated, err := s.repo.TransitionPayment(paymentID,
		[]string{models.PaymentStatusSucceeded},
		models.PaymentStatusRefunded,
		map[string]any{
			"refunded_at":         &now,
			"refund_amount_cents": amountCents,
		},
		&EnrollmentEffect{
			Status:        models.EnrollmentStatusSuspended,
			PaymentStatus: models.EnrollmentPaymentPaid,
		})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyEnrollmentSuspended(updated.UserID, updated.CourseID)
	}
	return updated, nil
}

// EnrollFree is the zero-price path: no payment row, enrollment goes active
// directly. Re-enrolling after a drop reactivates the existing row.
func (s *Service) EnrollFree(ctx context.Context, userID, courseID uint) (*models.Enrollment, error) {
	_ = ctx
	course, err := s.repo.GetCourse(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCourse
		}
		return nil, err
	}
	if !course.Published || !course.IsFree() {
		return nil, ErrInvalidCourse
	}

	existing, err := s.repo.FindEnrollment(userID, courseID)
	switch {
	case err == nil:
		if existing.IsActive() {
			return nil, ErrAlreadyEnrolled
		}
		if err := s.repo.UpdateEnrollmentStatus(existing.ID, models.EnrollmentStatusActive, models.EnrollmentPaymentUnpaid); err != nil {
			return nil, err
		}
		return s.repo.FindEnrollment(userID, courseID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		enrollment := &models.Enrollment{
			UserID:        userID,
			CourseID:      courseID,
			Status:        models.EnrollmentStatusActive,
			PaymentStatus: models.EnrollmentPaymentUnpaid,
		}
		if err := s.repo.CreateFreeEnrollment(enrollment); err != nil {
			return nil, err
		}
		return enrollment, nil
	default:
		return nil, err
	}
}

// PaymentBySessionID exposes ledger reads for the status endpoint.
func (s *Service) PaymentBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	_ = ctx
	return s.repo.FindPaymentBySessionID(sessionID)
}

// EnrollmentsByUser lists a user's enrollments for the polling surface.
func (s *Service) EnrollmentsByUser(ctx context.Context, userID uint) ([]models.Enrollment, error) {
	_ = ctx
	return s.repo.ListEnrollmentsByUser(userID)
}

func (s *Service) markProcessed(eventID uint, processingErr error) {
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(eventID, errMsg); err != nil {
		log.Errorf("failed to mark webhook event %d processed: %v", eventID, err)
	}
}
