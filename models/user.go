package models

import (
	"time"

	"pharmabill-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the operator account for the billing desk. Identity handling is
// deliberately thin; the core ledgers never reference users.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Email    string    `gorm:"uniqueIndex;not null" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Name     string    `gorm:"not null" json:"name"`
	Phone    string    `json:"phone"`

	StoreName    string `json:"storeName"`
	StoreAddress string `json:"storeAddress"`
	StoreGSTIN   string `json:"storeGstin"`

	LastLogin *time.Time `json:"lastLogin"`
	IsActive  bool       `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Hash the password before the row is first written.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	hashed, err := utils.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hashed
	return
}
