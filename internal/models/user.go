package models

import (
	"database/sql"
	"time"
)

// User represents a registered author
type User struct {
	ID                        int64          `gorm:"primaryKey;autoIncrement;column:id"`
	Name                      string         `gorm:"type:varchar(255);not null;column:name"`
	Email                     string         `gorm:"type:varchar(255);not null;uniqueIndex:users_email_unique;column:email"`
	Phone                     string         `gorm:"type:varchar(20);not null;column:phone"`
	Password                  string         `gorm:"type:varchar(255);not null;column:password"`
	EmailVerifiedAt           sql.NullTime   `gorm:"column:email_verified_at"`
	VerificationCode          sql.NullString `gorm:"type:varchar(6);column:verification_code"`
	VerificationCodeExpiresAt sql.NullTime   `gorm:"column:verification_code_expires_at"`
	CreatedAt                 time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt                 time.Time      `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// AccessToken is an opaque bearer token issued at login or registration.
// Only the SHA-256 of the secret part is stored.
type AccessToken struct {
	ID         int64        `gorm:"primaryKey;autoIncrement;column:id"`
	UserID     int64        `gorm:"not null;index;column:user_id"`
	Name       string       `gorm:"type:varchar(255);not null;column:name"`
	TokenHash  string       `gorm:"type:varchar(64);not null;uniqueIndex:access_tokens_token_unique;column:token"`
	LastUsedAt sql.NullTime `gorm:"column:last_used_at"`
	CreatedAt  time.Time    `gorm:"not null;column:created_at"`
	UpdatedAt  time.Time    `gorm:"not null;column:updated_at"`

	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for AccessToken
func (AccessToken) TableName() string {
	return "personal_access_tokens"
}
