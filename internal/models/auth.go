package models

import (
	"time"

	"gorm.io/gorm"
)

// LoginCode is a one-time email-link code. Only the bcrypt hash is stored.
type LoginCode struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email     string     `gorm:"size:255;index;not null" json:"email"`
	CodeHash  string     `gorm:"size:255;not null" json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (l *LoginCode) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = newID()
	}
	return nil
}

// OAuthState guards the OAuth return path against forged callbacks.
type OAuthState struct {
	State     string    `gorm:"size:64;primaryKey" json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemLog represents an audit entry for a mutating request
type SystemLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     string    `gorm:"size:20;index" json:"level"` // info, warning, error
	Module    string    `gorm:"size:100;index" json:"module"`
	Action    string    `gorm:"size:200;index" json:"action"`
	Message   string    `gorm:"type:text" json:"message"`
	UserID    string    `gorm:"type:varchar(36)" json:"user_id"`
	IP        string    `gorm:"size:50" json:"ip"`
	UserAgent string    `gorm:"size:500" json:"user_agent"`
	Extra     string    `gorm:"type:text" json:"extra"` // JSON extra data
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (LoginCode) TableName() string  { return "login_codes" }
func (OAuthState) TableName() string { return "oauth_states" }
func (SystemLog) TableName() string  { return "system_logs" }
