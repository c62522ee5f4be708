package model

import "time"

// Quest status values. "done" is terminal; there is no done→active transition.
const (
	QuestStatusActive = "active"
	QuestStatusDone   = "done"
)

// Quest repeat kinds.
const (
	RepeatNone    = "none"
	RepeatDaily   = "daily"
	RepeatWeekly  = "weekly"
	RepeatMonthly = "monthly"
)

// Quest is a trackable task owned by a user. Completing it awards
// XPReward to the owning character; repeating quests spawn a successor.
type Quest struct {
	ID             int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64       `gorm:"index;not null" json:"user_id"`
	CharacterID    *int64      `json:"character_id"`
	Title          string      `gorm:"size:255;not null" json:"title"`
	Description    string      `gorm:"size:2048" json:"description"`
	XPReward       int         `gorm:"default:10" json:"xp_reward"`
	Status         string      `gorm:"size:16;default:active" json:"status"`
	DueAt          *time.Time  `json:"due_at"`
	RepeatType     string      `gorm:"size:16;default:none" json:"repeat_type"`
	RepeatInterval int         `gorm:"default:1" json:"repeat_interval"`
	CompletedAt    *time.Time  `json:"completed_at"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	Steps          []QuestStep `gorm:"foreignKey:QuestID" json:"steps"`
}

// QuestStep is an ordered checklist item under a quest. OrderIndex is
// dense and zero-based per quest.
type QuestStep struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestID    int64  `gorm:"index;not null" json:"quest_id"`
	Title      string `gorm:"size:255;not null" json:"title"`
	IsDone     bool   `gorm:"default:false" json:"is_done"`
	OrderIndex int    `gorm:"not null" json:"order_index"`
}

// ValidQuestStatus reports whether s is a known quest status.
func ValidQuestStatus(s string) bool {
	return s == QuestStatusActive || s == QuestStatusDone
}

// ValidRepeatType reports whether s is a known repeat kind.
func ValidRepeatType(s string) bool {
	switch s {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly:
		return true
	}
	return false
}
