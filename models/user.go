package models

import "time"

// User tracks gamified progression for each player (denormalized for performance).
// TotalXP and Level are written only by the reward worker; the API layer reads
// them, and creates rows with xp=0, level=1.
type User struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service
	Username       string `gorm:"index;not null" json:"username"`

	// Core progression
	TotalXP int64 `json:"total_xp" gorm:"default:0;index"`
	Level   int   `json:"level" gorm:"default:1"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}
