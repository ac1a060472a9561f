package services

import (
	"errors"

	"skillquest-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// EnsureUser ensures a User row exists for a gateway identity (idempotent).
// New users start at xp=0, level=1, the only write to progression fields
// outside the reward worker.
func (s *UserService) EnsureUser(externalUserID, username string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			Username:       username,
			TotalXP:        0,
			Level:          1,
		}
		if err := s.DB.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserProgress is the detailed stats payload for the progress endpoint.
type UserProgress struct {
	UserID              string           `json:"user_id"`
	Username            string           `json:"username"`
	TotalXP             int64            `json:"total_xp"`
	Level               int              `json:"level"`
	NextLevelXP         int64            `json:"next_level_xp"`
	ChallengesCompleted int64            `json:"total_challenges_completed"`
	TotalBadges         int64            `json:"total_badges"`
	RecentAttempts      []models.Attempt `json:"recent_attempts"`
}

// GetProgress aggregates a user's stats from the store of record.
func (s *UserService) GetProgress(userID string) (*UserProgress, error) {
	// The id column is typed uuid; a non-uuid input is a miss, not a bind error.
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrUserNotFound
	}

	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var completed int64
	if err := s.DB.Model(&models.Attempt{}).
		Where("user_id = ? AND status = ?", userID, models.AttemptPassed).
		Count(&completed).Error; err != nil {
		return nil, err
	}

	var badges int64
	if err := s.DB.Model(&models.UserBadge{}).
		Where("user_id = ?", userID).
		Count(&badges).Error; err != nil {
		return nil, err
	}

	var recent []models.Attempt
	if err := s.DB.Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(5).
		Find(&recent).Error; err != nil {
		return nil, err
	}

	return &UserProgress{
		UserID:              user.ID,
		Username:            user.Username,
		TotalXP:             user.TotalXP,
		Level:               user.Level,
		NextLevelXP:         NextLevelXP(user.Level),
		ChallengesCompleted: completed,
		TotalBadges:         badges,
		RecentAttempts:      recent,
	}, nil
}

// ListBadges returns the user's earned badges with their definitions.
func (s *UserService) ListBadges(userID string) ([]map[string]interface{}, error) {
	var userBadges []models.UserBadge
	if err := s.DB.Where("user_id = ?", userID).
		Order("awarded_at DESC").
		Find(&userBadges).Error; err != nil {
		return nil, err
	}
	if len(userBadges) == 0 {
		return []map[string]interface{}{}, nil
	}

	ids := make([]string, 0, len(userBadges))
	for _, ub := range userBadges {
		ids = append(ids, ub.BadgeID)
	}
	var defs []models.Badge
	if err := s.DB.Where("id IN ?", ids).Find(&defs).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Badge, len(defs))
	for _, b := range defs {
		byID[b.ID] = b
	}

	out := make([]map[string]interface{}, 0, len(userBadges))
	for _, ub := range userBadges {
		def := byID[ub.BadgeID]
		out = append(out, map[string]interface{}{
			"id":          ub.ID,
			"badge_id":    def.ID,
			"name":        def.Name,
			"description": def.Description,
			"icon_url":    def.IconURL,
			"rarity":      def.Rarity,
			"awarded_at":  ub.AwardedAt,
			"metadata":    ub.Metadata,
		})
	}
	return out, nil
}
