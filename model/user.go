package model

import (
	"time"

	"gorm.io/datatypes"
)

// User is an account identified by its Telegram user ID.
type User struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TelegramID int64          `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username   string         `gorm:"size:64" json:"username"`
	FirstName  string         `gorm:"size:64" json:"first_name"`
	Profile    datatypes.JSON `json:"profile"` // raw platform user payload from the last login
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
