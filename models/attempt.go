package models

import "time"

// AttemptStatus advances forward only: started → submitted → passed | failed.
type AttemptStatus string

const (
	AttemptStarted   AttemptStatus = "started"
	AttemptSubmitted AttemptStatus = "submitted"
	AttemptPassed    AttemptStatus = "passed"
	AttemptFailed    AttemptStatus = "failed"
)

// Terminal reports whether no further transition is legal.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptPassed || s == AttemptFailed
}

// Attempt is one user's effort at one challenge.
// Created by the API on start, moved to submitted by the API on score
// submission, and resolved to passed/failed exclusively by the reward worker
// (the sole writer of XPAwarded).
type Attempt struct {
	ID          string        `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string        `gorm:"index;not null;type:uuid" json:"user_id"`
	ChallengeID string        `gorm:"index;not null;type:uuid" json:"challenge_id"`
	Status      AttemptStatus `gorm:"type:varchar(16);default:'started';index" json:"status"`

	Score     *float64 `json:"score,omitempty"` // 0–100, nil until submission
	XPAwarded int64    `gorm:"default:0" json:"xp_awarded"`

	StartedAt   time.Time  `gorm:"autoCreateTime" json:"started_at"`
	SubmittedAt *time.Time `gorm:"index" json:"submitted_at,omitempty"`

	Metadata JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"` // includes optional "solution"
}
