package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"skillquest-reward-system/models"
	"skillquest-reward-system/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardWorker consumes submitted attempt ids and finalizes them: resolve
// passed/failed, award XP, recompute level, award badges, refresh the ranking
// cache. Delivery is at-least-once: the in-process queue is complemented by a
// re-drive loop that picks up attempts stuck in submitted (crash, overload, or
// a full queue), so every submission eventually resolves.
type RewardWorker struct {
	DB          *gorm.DB
	Leaderboard *services.LeaderboardService

	jobs            chan string
	workerCount     int
	redriveInterval time.Duration
	// An attempt still submitted this long after submission is considered
	// stuck and re-driven.
	processingDeadline time.Duration
}

func NewRewardWorker(db *gorm.DB, leaderboard *services.LeaderboardService) *RewardWorker {
	return &RewardWorker{
		DB:                 db,
		Leaderboard:        leaderboard,
		jobs:               make(chan string, 256),
		workerCount:        4,
		redriveInterval:    1 * time.Minute,
		processingDeadline: 2 * time.Minute,
	}
}

// Enqueue hands an attempt id to the pool. Never blocks the caller: if the
// queue is full the attempt stays in submitted and the re-drive loop delivers
// it later.
func (w *RewardWorker) Enqueue(attemptID string) {
	select {
	case w.jobs <- attemptID:
	default:
		log.Printf("⚠️ [REWARD] Queue full, attempt %s deferred to re-drive", attemptID)
	}
}

// Start launches the worker pool and the re-drive loop.
func (w *RewardWorker) Start(ctx context.Context) {
	log.Printf("🔁 Starting Reward Worker (%d workers)…", w.workerCount)
	for i := 0; i < w.workerCount; i++ {
		go w.run(ctx)
	}
	go w.redrive(ctx)
}

func (w *RewardWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case attemptID := <-w.jobs:
			// A failed job is not retried here; the attempt stays in
			// submitted and the re-drive loop delivers it again.
			if err := w.ProcessAttempt(ctx, attemptID); err != nil {
				log.Printf("❌ [REWARD] Attempt %s failed: %v", attemptID, err)
			}
		}
	}
}

// redrive periodically re-enqueues attempts stuck in submitted. Duplicate
// deliveries are harmless: resolution is guarded by the status check.
func (w *RewardWorker) redrive(ctx context.Context) {
	// Initial pass picks up anything left over from a previous run.
	w.redriveBatch(ctx)

	ticker := time.NewTicker(w.redriveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Reward re-drive loop stopped")
			return
		case <-ticker.C:
			w.redriveBatch(ctx)
		}
	}
}

func (w *RewardWorker) redriveBatch(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.processingDeadline)

	var stuck []string
	err := w.DB.WithContext(ctx).Model(&models.Attempt{}).
		Where("status = ? AND submitted_at < ?", models.AttemptSubmitted, cutoff).
		Limit(cap(w.jobs)).
		Pluck("id", &stuck).Error
	if err != nil {
		log.Printf("❌ [REWARD] Re-drive scan failed: %v", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	log.Printf("🔁 [REWARD] Re-driving %d stuck attempt(s)", len(stuck))
	for _, id := range stuck {
		w.Enqueue(id)
	}
}

// ProcessAttempt runs the reward pipeline for one attempt as one logical unit:
//
//  1. load the attempt and its challenge's current XP value
//  2. resolve passed/failed and persist xp_awarded (guarded on status)
//  3. if passed, atomically credit the user's total XP and recompute level
//  4. if passed, award newly-qualifying badges
//  5. if passed, refresh the ranking cache entry
//
// Steps 2–4 share one transaction, so a crash anywhere leaves the attempt in
// submitted and the whole job safe to re-deliver. An attempt already terminal
// is a no-op. Step 5 runs after commit and may lag; the reconciliation
// rebuild recovers a lost cache write.
func (w *RewardWorker) ProcessAttempt(ctx context.Context, attemptID string) error {
	var creditedUser *models.User

	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attempt models.Attempt
		if err := tx.Where("id = ?", attemptID).First(&attempt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("attempt not found")
			}
			return err
		}

		if attempt.Status != models.AttemptSubmitted {
			// Terminal or not yet submitted: duplicate delivery, nothing to do.
			log.Printf("[REWARD] Attempt %s is %s, skipping", attemptID, attempt.Status)
			return nil
		}

		var challenge models.Challenge
		if err := tx.Where("id = ?", attempt.ChallengeID).First(&challenge).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Logic error: retrying won't help, needs manual intervention.
				return fmt.Errorf("challenge %s missing for attempt", attempt.ChallengeID)
			}
			return err
		}

		score := 0.0
		if attempt.Score != nil {
			score = *attempt.Score
		}

		xpAwarded := services.XPAwarded(challenge.XP, score)
		passed := services.IsPassing(score, services.DefaultPassThreshold)
		newStatus := models.AttemptFailed
		if passed {
			newStatus = models.AttemptPassed
		}

		// Single-writer guard: only one resolver can win this update. A
		// concurrent duplicate sees RowsAffected == 0 and backs off.
		res := tx.Model(&models.Attempt{}).
			Where("id = ? AND status = ?", attempt.ID, models.AttemptSubmitted).
			Updates(map[string]interface{}{
				"status":     newStatus,
				"xp_awarded": xpAwarded,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			log.Printf("[REWARD] Attempt %s resolved by a concurrent worker, skipping", attemptID)
			return nil
		}

		if !passed {
			log.Printf("📉 [REWARD] Attempt %s failed (score %.1f), no XP", attemptID, score)
			return nil
		}

		// Atomic read-modify-write at the storage layer. Never load-add-store
		// across round trips, or concurrent passes lose updates.
		if err := tx.Model(&models.User{}).
			Where("id = ?", attempt.UserID).
			UpdateColumn("total_xp", gorm.Expr("total_xp + ?", xpAwarded)).Error; err != nil {
			return err
		}

		var user models.User
		if err := tx.Where("id = ?", attempt.UserID).First(&user).Error; err != nil {
			return fmt.Errorf("user %s missing for attempt: %w", attempt.UserID, err)
		}

		newLevel := services.LevelFromXP(user.TotalXP)
		if newLevel != user.Level {
			now := time.Now().UTC()
			if err := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Updates(map[string]interface{}{
					"level":            newLevel,
					"last_level_up_at": now,
				}).Error; err != nil {
				return err
			}
			user.Level = newLevel
			log.Printf("🎮 [REWARD] User %s reached level %d", user.ID, newLevel)
		}

		if err := w.awardBadges(tx, &user, attempt.ID); err != nil {
			return err
		}

		log.Printf("🏆 [REWARD] Awarded %d XP to user %s for attempt %s (total %d)",
			xpAwarded, user.ID, attempt.ID, user.TotalXP)

		creditedUser = &user
		return nil
	})
	if err != nil {
		return fmt.Errorf("process attempt %s: %w", attemptID, err)
	}

	// Cache update outside the transaction: a derived projection, allowed to
	// lag, recovered wholesale by the reconciliation rebuild.
	if creditedUser != nil {
		if err := w.Leaderboard.SyncUser(ctx, creditedUser.ID, creditedUser.TotalXP); err != nil {
			log.Printf("⚠️ [REWARD] Leaderboard sync failed for user %s (rebuild will recover): %v",
				creditedUser.ID, err)
		}
	}
	return nil
}

// awardBadges evaluates conditions against the freshly-credited totals and
// creates the new UserBadge rows. ON CONFLICT DO NOTHING on (user_id,
// badge_id) makes a duplicate award from a racing job a silent no-op.
func (w *RewardWorker) awardBadges(tx *gorm.DB, user *models.User, attemptID string) error {
	evaluator := services.NewBadgeEvaluator(tx)
	badges, err := evaluator.Qualifying(user.ID, user.TotalXP)
	if err != nil {
		return err
	}

	for _, badge := range badges {
		userBadge := models.UserBadge{
			ID:      uuid.NewString(),
			UserID:  user.ID,
			BadgeID: badge.ID,
			Metadata: models.JSONMap{
				"attempt_id": attemptID,
				"total_xp":   user.TotalXP,
			},
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
			DoNothing: true,
		}).Create(&userBadge).Error; err != nil {
			return fmt.Errorf("failed to award badge %q: %w", badge.Name, err)
		}
		log.Printf("🎖️ Badge awarded: %s → %s", badge.Name, user.ID)
	}
	return nil
}
