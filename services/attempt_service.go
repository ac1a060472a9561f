package services

import (
	"errors"
	"time"

	"skillquest-reward-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrChallengeNotFound    = errors.New("challenge not found")
	ErrChallengeUnpublished = errors.New("challenge is not published")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrNotAttemptOwner      = errors.New("attempt belongs to another user")
	ErrAlreadySubmitted     = errors.New("attempt already submitted")
	ErrInvalidScore         = errors.New("score must be between 0 and 100")
)

// RewardEnqueuer hands a submitted attempt id to the async reward pipeline.
type RewardEnqueuer interface {
	Enqueue(attemptID string)
}

// AttemptService owns the started → submitted half of the attempt lifecycle.
// Resolution (submitted → passed/failed) belongs exclusively to the reward
// worker.
type AttemptService struct {
	DB       *gorm.DB
	Enqueuer RewardEnqueuer
}

func NewAttemptService(db *gorm.DB, enqueuer RewardEnqueuer) *AttemptService {
	return &AttemptService{DB: db, Enqueuer: enqueuer}
}

// StartAttempt creates a started attempt. The target challenge must exist and
// be published.
func (s *AttemptService) StartAttempt(userID, challengeID string) (*models.Attempt, error) {
	// The id column is typed uuid; a non-uuid input is a miss, not a bind error.
	if _, err := uuid.Parse(challengeID); err != nil {
		return nil, ErrChallengeNotFound
	}

	var challenge models.Challenge
	if err := s.DB.Where("id = ?", challengeID).First(&challenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	if !challenge.Published {
		return nil, ErrChallengeUnpublished
	}

	attempt := &models.Attempt{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: challengeID,
		Status:      models.AttemptStarted,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.DB.Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

// SubmitAttempt records a score and moves the attempt to submitted, then hands
// it to the reward pipeline. Only the owning user may submit, only from
// started. A second submit is a conflict, never a double award.
func (s *AttemptService) SubmitAttempt(attemptID, userID string, score float64, solution string, metadata map[string]interface{}) (*models.Attempt, error) {
	if score < 0 || score > 100 {
		return nil, ErrInvalidScore
	}
	if _, err := uuid.Parse(attemptID); err != nil {
		return nil, ErrAttemptNotFound
	}

	var attempt models.Attempt
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", attemptID).First(&attempt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttemptNotFound
			}
			return err
		}
		if attempt.UserID != userID {
			return ErrNotAttemptOwner
		}
		if attempt.Status != models.AttemptStarted {
			return ErrAlreadySubmitted
		}

		meta := models.JSONMap{}
		for k, v := range metadata {
			meta[k] = v
		}
		if solution != "" {
			meta["solution"] = solution
		}

		now := time.Now().UTC()
		// Conditional update on status: a concurrent submit loses here and
		// surfaces as a conflict rather than a second reward job.
		res := tx.Model(&models.Attempt{}).
			Where("id = ? AND status = ?", attemptID, models.AttemptStarted).
			Updates(map[string]interface{}{
				"status":       models.AttemptSubmitted,
				"score":        score,
				"submitted_at": now,
				"metadata":     meta,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadySubmitted
		}

		attempt.Status = models.AttemptSubmitted
		attempt.Score = &score
		attempt.SubmittedAt = &now
		attempt.Metadata = meta
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Enqueue only after commit so the worker can see the row.
	s.Enqueuer.Enqueue(attempt.ID)
	return &attempt, nil
}

// GetAttempt returns a single attempt, owner-only.
func (s *AttemptService) GetAttempt(attemptID, userID string) (*models.Attempt, error) {
	if _, err := uuid.Parse(attemptID); err != nil {
		return nil, ErrAttemptNotFound
	}

	var attempt models.Attempt
	if err := s.DB.Where("id = ?", attemptID).First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, ErrNotAttemptOwner
	}
	return &attempt, nil
}

// ListAttempts returns the user's attempts, newest first.
func (s *AttemptService) ListAttempts(userID string, page, size int) ([]models.Attempt, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var total int64
	if err := s.DB.Model(&models.Attempt{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []models.Attempt
	err := s.DB.Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&attempts).Error
	return attempts, total, err
}
