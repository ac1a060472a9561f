package models

import "time"

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Challenge is a task users can attempt for XP. XP is read at resolve time by
// the reward worker, so the value should not be edited while attempts are in
// flight (no snapshot is taken on submission).
type Challenge struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	Difficulty  string `gorm:"type:varchar(16);index" json:"difficulty"`

	// 🏆 Maximum XP reward for a perfect score
	XP int64 `gorm:"not null" json:"xp"`

	Published bool       `gorm:"default:false;index" json:"published"`
	PublishAt *time.Time `json:"publish_at,omitempty"` // scheduled auto-publish

	CreatedBy *string `gorm:"type:uuid" json:"created_by,omitempty"`

	Timestamps
}
