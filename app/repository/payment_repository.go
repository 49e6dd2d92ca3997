package repository

import (
	"github.com/coursedesk/coursedesk/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface. It is
// deliberately read-only: every payment write goes through the
// reconciliation engine's transactional repository.
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) GetBySessionID(sessionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("external_session_id = ?", sessionID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) ListByUser(userID uint, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("user_id = ?", userID).
		Offset(offset).Limit(limit).Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) List(offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).Count(&count).Error
	return count, err
}
