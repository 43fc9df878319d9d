package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is a user's subscription tier. It determines the daily
// conversion ceiling enforced by the quota ledger.
type Role string

const (
	RoleFree Role = "free"
	RoleVip  Role = "vip"
	RoleSvip Role = "svip"
)

// User represents an account in the system.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"` // "-" means don't include in JSON responses
	Role         Role      `json:"role" gorm:"not null;default:free"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	Points       int       `json:"points" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (User) TableName() string {
	return "users"
}

// SetPassword hashes the given password and sets it on the user model.
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the given password matches the user's hashed password.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
