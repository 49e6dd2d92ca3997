package reconcile

import (
	"errors"
	"time"

	"github.com/coursedesk/coursedesk/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the transactional DB operations the engine needs. The
// payment transition and its enrollment effect always land in one
// transaction so ledger and enrollment can never diverge.
type Repository interface {
	GetCourse(id uint) (*models.Course, error)
	GetUser(id uint) (*models.User, error)

	CreatePayment(payment *models.Payment) error
	FindActivePayment(userID, courseID uint) (*models.Payment, error)
	FindPaymentBySessionID(sessionID string) (*models.Payment, error)
	FindPaymentByID(id uint) (*models.Payment, error)
	CountPaymentsForPair(userID, courseID uint) (int64, error)
	TransitionPayment(paymentID uint, fromStatuses []string, toStatus string, fields map[string]any, effect *EnrollmentEffect) (*models.Payment, error)

	FindEnrollment(userID, courseID uint) (*models.Enrollment, error)
	ListEnrollmentsByUser(userID uint) ([]models.Enrollment, error)
	CreateFreeEnrollment(enrollment *models.Enrollment) error
	UpdateEnrollmentStatus(id uint, status, paymentStatus string) error

	CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetCourse(id uint) (*models.Course, error) {
	var course models.Course
	if err := r.db.First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreatePayment inserts a new ledger row in created status. The unique index
// on active_key turns a concurrent second insert for the same (user, course)
// into a duplicate-key error, which callers map to ErrAlreadyActive.
func (r *gormRepository) CreatePayment(payment *models.Payment) error {
	key := activeKey(payment.UserID, payment.CourseID)
	payment.ActiveKey = &key
	if payment.Status == "" {
		payment.Status = models.PaymentStatusCreated
	}
	return r.db.Create(payment).Error
}

func (r *gormRepository) FindActivePayment(userID, courseID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.
		Where("user_id = ? AND course_id = ? AND status IN ?", userID, courseID,
			[]string{models.PaymentStatusCreated, models.PaymentStatusPending}).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormRepository) FindPaymentBySessionID(sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("external_session_id = ?", sessionID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormRepository) FindPaymentByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// CountPaymentsForPair counts every payment row a (user, course) pair ever
// produced, terminal ones included. The engine salts the checkout
// idempotency key with it.
func (r *gormRepository) CountPaymentsForPair(userID, courseID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count, err
}

// TransitionPayment is the engine's single synchronization primitive: an
// atomic compare-and-set on the payment row plus the enrollment effect in
// the same transaction. When the current status is not in fromStatuses the
// update matches zero rows and ErrInvalidTransition is returned with nothing
// written; concurrent webhook redeliveries and user cancels race through
// here and exactly one of them wins.
func (r *gormRepository) TransitionPayment(paymentID uint, fromStatuses []string, toStatus string, fields map[string]any, effect *EnrollmentEffect) (*models.Payment, error) {
	var payment models.Payment

	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"status": toStatus}
		for k, v := range fields {
			updates[k] = v
		}
		if models.IsTerminalPaymentStatus(toStatus) {
			updates["active_key"] = gorm.Expr("NULL")
		}

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status IN ?", paymentID, fromStatuses).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		if err := tx.First(&payment, paymentID).Error; err != nil {
			return err
		}

		if effect != nil {
			if err := upsertEnrollment(tx, &payment, effect); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func upsertEnrollment(tx *gorm.DB, payment *models.Payment, effect *EnrollmentEffect) error {
	var existing models.Enrollment
	err := tx.Where("user_id = ? AND course_id = ?", payment.UserID, payment.CourseID).
		First(&existing).Error
	switch {
	case err == nil:
		if effect.SkipIfActive && existing.IsActive() {
			return nil
		}
		return tx.Model(&existing).Updates(map[string]any{
			"status":         effect.Status,
			"payment_status": effect.PaymentStatus,
			"payment_id":     payment.ID,
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		enrollment := models.Enrollment{
			UserID:        payment.UserID,
			CourseID:      payment.CourseID,
			Status:        effect.Status,
			PaymentStatus: effect.PaymentStatus,
			PaymentID:     &payment.ID,
		}
		return tx.Create(&enrollment).Error
	default:
		return err
	}
}

func (r *gormRepository) FindEnrollment(userID, courseID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *gormRepository) ListEnrollmentsByUser(userID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.Where("user_id = ?", userID).Order("enrolled_at DESC").Find(&enrollments).Error
	return enrollments, err
}

func (r *gormRepository) CreateFreeEnrollment(enrollment *models.Enrollment) error {
	return r.db.Create(enrollment).Error
}

func (r *gormRepository) UpdateEnrollmentStatus(id uint, status, paymentStatus string) error {
	return r.db.Model(&models.Enrollment{}).Where("id = ?", id).Updates(map[string]any{
		"status":         status,
		"payment_status": paymentStatus,
	}).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.Where("provider_event_id = ?", event.ProviderEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
