package repository

import (
	"github.com/coursedesk/coursedesk/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// CourseRepository defines the interface for course catalog reads and the
// minimal writes the service owns (catalog management lives elsewhere)
type CourseRepository interface {
	Create(course *models.Course) error
	GetByID(id uint) (*models.Course, error)
	GetBySlug(slug string) (*models.Course, error)
	ListPublished(offset, limit int) ([]models.Course, error)
	Count() (int64, error)
}

// PaymentRepository defines read access to the payment ledger for admin and
// status surfaces. All mutation goes through the reconciliation engine.
type PaymentRepository interface {
	GetByID(id uint) (*models.Payment, error)
	GetBySessionID(sessionID string) (*models.Payment, error)
	ListByUser(userID uint, offset, limit int) ([]models.Payment, error)
	List(offset, limit int) ([]models.Payment, error)
	Count() (int64, error)
}

// EnrollmentRepository defines read access to enrollments
type EnrollmentRepository interface {
	GetByUserAndCourse(userID, courseID uint) (*models.Enrollment, error)
	ListByUser(userID uint) ([]models.Enrollment, error)
	CountByCourse(courseID uint) (int64, error)
}

// WebhookEventRepository exposes the processed-event log for operations
type WebhookEventRepository interface {
	GetByProviderEventID(eventID string) (*models.PaymentWebhookEvent, error)
	ListFailed(limit int) ([]models.PaymentWebhookEvent, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Course       CourseRepository
	Payment      PaymentRepository
	Enrollment   EnrollmentRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Course:       NewCourseRepository(db),
		Payment:      NewPaymentRepository(db),
		Enrollment:   NewEnrollmentRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
