package services

import (
	"fmt"

	"skillquest-reward-system/models"

	"gorm.io/gorm"
)

// BadgeEvaluator decides which badges a user newly qualifies for. It is
// stateless: every call re-evaluates all definitions against current
// aggregates, so any badge may depend on any aggregate. It never writes;
// awarding is the reward worker's job.
type BadgeEvaluator struct {
	DB *gorm.DB
}

// NewBadgeEvaluator can be handed a transaction handle so evaluation sees the
// same snapshot the award writes into.
func NewBadgeEvaluator(db *gorm.DB) *BadgeEvaluator {
	return &BadgeEvaluator{DB: db}
}

// Qualifying returns the badges the user qualifies for but does not yet hold.
// Badges already held are always excluded, even if their condition still
// evaluates true. A malformed condition is a logic error: the whole evaluation
// fails so the caller can surface it instead of silently skipping awards.
func (e *BadgeEvaluator) Qualifying(userID string, totalXP int64) ([]models.Badge, error) {
	var allBadges []models.Badge
	if err := e.DB.Find(&allBadges).Error; err != nil {
		return nil, fmt.Errorf("failed to load badge definitions: %w", err)
	}

	var heldIDs []string
	if err := e.DB.Model(&models.UserBadge{}).
		Where("user_id = ?", userID).
		Pluck("badge_id", &heldIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to load held badges: %w", err)
	}
	held := make(map[string]bool, len(heldIDs))
	for _, id := range heldIDs {
		held[id] = true
	}

	var qualifying []models.Badge
	for _, badge := range allBadges {
		if held[badge.ID] {
			continue
		}

		ok, err := e.conditionMet(userID, totalXP, badge.Condition)
		if err != nil {
			return nil, fmt.Errorf("badge %q: %w", badge.Name, err)
		}
		if ok {
			qualifying = append(qualifying, badge)
		}
	}
	return qualifying, nil
}

func (e *BadgeEvaluator) conditionMet(userID string, totalXP int64, cond models.BadgeCondition) (bool, error) {
	switch cond.Type {
	case models.ConditionXPThreshold:
		return totalXP >= cond.Threshold, nil

	case models.ConditionAttemptCount:
		var count int64
		if err := e.DB.Model(&models.Attempt{}).
			Where("user_id = ? AND status = ?", userID, cond.Status).
			Count(&count).Error; err != nil {
			return false, err
		}
		return count >= cond.Count, nil

	case models.ConditionConsecutiveDays:
		// Distinct calendar dates with a passed attempt. Contiguity is NOT
		// checked, matching the badge configs in production.
		var days int64
		if err := e.DB.Model(&models.Attempt{}).
			Where("user_id = ? AND status = ? AND submitted_at IS NOT NULL", userID, models.AttemptPassed).
			Select("COUNT(DISTINCT date(submitted_at))").
			Scan(&days).Error; err != nil {
			return false, err
		}
		return days >= cond.Days, nil

	default:
		return false, fmt.Errorf("unknown condition type %q", cond.Type)
	}
}
