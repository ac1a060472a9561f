package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BadgeConditionType is a closed set. Adding a kind requires a code change in
// the evaluator, no open-ended condition objects.
type BadgeConditionType string

const (
	ConditionXPThreshold  BadgeConditionType = "xp"
	ConditionAttemptCount BadgeConditionType = "attempt_count"
	// ConditionConsecutiveDays counts *distinct* active days, not contiguous
	// ones. Name kept for wire compatibility with existing badge configs.
	ConditionConsecutiveDays BadgeConditionType = "consecutive_days"
)

// BadgeCondition is the tagged condition variant stored as jsonb.
// Exactly one group of fields is meaningful per Type:
//
//	{"type": "xp", "threshold": 1000}
//	{"type": "attempt_count", "count": 10, "status": "passed"}
//	{"type": "consecutive_days", "days": 7}
type BadgeCondition struct {
	Type      BadgeConditionType `json:"type"`
	Threshold int64              `json:"threshold,omitempty"`
	Count     int64              `json:"count,omitempty"`
	Status    AttemptStatus      `json:"status,omitempty"`
	Days      int64              `json:"days,omitempty"`
}

// Validate rejects malformed conditions at admin-creation time so the reward
// worker never sees one.
func (c BadgeCondition) Validate() error {
	switch c.Type {
	case ConditionXPThreshold:
		if c.Threshold < 1 {
			return fmt.Errorf("xp condition requires threshold >= 1")
		}
	case ConditionAttemptCount:
		if c.Count < 1 {
			return fmt.Errorf("attempt_count condition requires count >= 1")
		}
		if c.Status != AttemptPassed && c.Status != AttemptFailed {
			return fmt.Errorf("attempt_count condition requires status passed or failed, got %q", c.Status)
		}
	case ConditionConsecutiveDays:
		if c.Days < 1 {
			return fmt.Errorf("consecutive_days condition requires days >= 1")
		}
	default:
		return fmt.Errorf("unknown badge condition type %q", c.Type)
	}
	return nil
}

func (c BadgeCondition) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *BadgeCondition) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}

// Badge: static achievement config, created by admins, immutable in normal operation.
type Badge struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	IconURL     string `gorm:"type:text" json:"icon_url"` // R2 URL to SVG/png
	Rarity      string `gorm:"type:varchar(16);default:'common'" json:"rarity"`

	Condition BadgeCondition `gorm:"type:jsonb" json:"condition"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserBadge: awarded instance. The (user_id, badge_id) unique index is the
// idempotency backstop: a user holds a given badge at most once, no matter
// how many times the reward job is re-delivered.
type UserBadge struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_badges_user_badge" json:"user_id"`
	BadgeID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_badges_user_badge" json:"badge_id"`
	AwardedAt time.Time `gorm:"autoCreateTime" json:"awarded_at"`
	Metadata  JSONMap   `gorm:"type:jsonb" json:"metadata,omitempty"` // e.g., {"attempt_id": "...", "total_xp": 135}
}
