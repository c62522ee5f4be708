package model

import "time"

// Character is a user's role-play avatar. Each user has exactly one;
// the unique index on UserID enforces it.
type Character struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Name         string    `gorm:"size:64;not null" json:"name"`
	Age          int       `gorm:"not null" json:"age"`
	HeightCM     int       `gorm:"not null" json:"height_cm"`
	WeightKG     int       `gorm:"not null" json:"weight_kg"`
	HairStyle    string    `gorm:"size:64;not null" json:"hair_style"`
	HairColor    string    `gorm:"size:64;not null" json:"hair_color"`
	OutfitTop    string    `gorm:"size:64;not null" json:"outfit_top"`
	OutfitBottom string    `gorm:"size:64;not null" json:"outfit_bottom"`
	OutfitShoes  string    `gorm:"size:64;not null" json:"outfit_shoes"`
	Level        int       `gorm:"default:1" json:"level"`
	XP           int       `gorm:"default:0" json:"xp"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
