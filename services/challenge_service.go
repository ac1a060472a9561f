package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"skillquest-reward-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var ErrInvalidChallengeXP = errors.New("challenge xp must be >= 1")

type ChallengeService struct {
	DB *gorm.DB
}

func NewChallengeService(db *gorm.DB) *ChallengeService {
	return &ChallengeService{DB: db}
}

// CreateChallenge creates a draft (or immediately published) challenge.
func (s *ChallengeService) CreateChallenge(title, description, difficulty string, xp int64, published bool, publishAt *time.Time, createdBy string) (*models.Challenge, error) {
	if xp < 1 {
		return nil, ErrInvalidChallengeXP
	}

	challengeSlug, err := s.uniqueSlug(title)
	if err != nil {
		return nil, err
	}

	challenge := &models.Challenge{
		ID:          uuid.NewString(),
		Title:       title,
		Slug:        challengeSlug,
		Description: description,
		Difficulty:  difficulty,
		XP:          xp,
		Published:   published,
		PublishAt:   publishAt,
	}
	if createdBy != "" {
		challenge.CreatedBy = &createdBy
	}

	if err := s.DB.Create(challenge).Error; err != nil {
		return nil, err
	}
	return challenge, nil
}

// uniqueSlug derives a URL slug from the title, suffixing on collision.
func (s *ChallengeService) uniqueSlug(title string) (string, error) {
	base := slug.Make(title)
	candidate := base
	for i := 2; ; i++ {
		var count int64
		if err := s.DB.Model(&models.Challenge{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("slug collision check failed: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// Publish flips a challenge to published immediately.
func (s *ChallengeService) Publish(challengeID string) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := s.DB.Where("id = ?", challengeID).First(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	challenge.Published = true
	challenge.PublishAt = nil
	if err := s.DB.Save(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

// GetChallenge resolves by id or slug. The id column is typed uuid, so the
// lookup column is chosen by whether the input parses as one; binding a slug
// against a uuid column is a 22P02 bind error on postgres, not a miss.
func (s *ChallengeService) GetChallenge(idOrSlug string) (*models.Challenge, error) {
	q := s.DB.Where("slug = ?", idOrSlug)
	if _, err := uuid.Parse(idOrSlug); err == nil {
		q = s.DB.Where("id = ?", idOrSlug)
	}

	var challenge models.Challenge
	if err := q.First(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return &challenge, nil
}

// ListChallenges returns published challenges (optionally filtered), newest first.
func (s *ChallengeService) ListChallenges(difficulty string, page, size int) ([]models.Challenge, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 12
	}

	q := s.DB.Model(&models.Challenge{}).Where("published = ?", true)
	if difficulty != "" {
		q = q.Where("difficulty = ?", difficulty)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var challenges []models.Challenge
	err := q.Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&challenges).Error
	return challenges, total, err
}

// StartPublishScheduler auto-publishes scheduled challenges once per minute.
func (s *ChallengeService) StartPublishScheduler(sched gocron.Scheduler) {
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var challenges []models.Challenge
			now := time.Now()
			err := s.DB.Where("published = ? AND publish_at IS NOT NULL AND publish_at <= ?", false, now).
				Find(&challenges).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, c := range challenges {
				c.Published = true
				c.PublishAt = nil
				if err := s.DB.Save(&c).Error; err != nil {
					log.Printf("[Scheduler] Failed to publish challenge %s: %v", c.ID, err)
				} else {
					log.Printf("✅ Auto-published challenge: %s", c.Title)
				}
			}
		}),
	)
}
