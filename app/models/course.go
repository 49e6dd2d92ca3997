package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Course is a catalog entry. The checkout core reads courses for price and
// publish state; catalog management itself lives outside this service.
type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200"`
	Slug        string    `gorm:"type:varchar(200);not null;uniqueIndex" json:"slug" validate:"required,max=200"`
	Description string    `gorm:"type:text" json:"description"`
	PriceCents  int64     `gorm:"not null;default:0" json:"price_cents" validate:"gte=0"`
	Currency    string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency" validate:"len=3"`
	Published   bool      `gorm:"default:false;index" json:"published"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Course) Validate() error {
	v := validator.New()

	return v.Struct(c)
}

// IsFree reports whether enrollment bypasses the payment flow entirely.
func (c *Course) IsFree() bool {
	return c.PriceCents == 0
}
