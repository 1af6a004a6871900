package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a roster member's credential row. Passwords are stored as bcrypt
// hashes only; an empty hash means the member has not completed first access.
// CredentialVersion goes up on every set, change or reset and is copied into
// issued tokens, so older tokens stop working.
type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"size:64;not null;uniqueIndex" json:"name"`
	PasswordHash      string    `gorm:"size:255" json:"-"`
	CredentialVersion uint      `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasCredential reports whether first access was completed.
func (u *User) HasCredential() bool {
	return u.PasswordHash != ""
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
