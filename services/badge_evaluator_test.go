package services_test

import (
	"testing"
	"time"

	"skillquest-reward-system/models"
	"skillquest-reward-system/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func seedUser(t *testing.T, db *gorm.DB, totalXP int64) *models.User {
	t.Helper()
	user := &models.User{
		ID:             uuid.NewString(),
		ExternalUserID: uuid.NewString(),
		Username:       "tester",
		TotalXP:        totalXP,
		Level:          services.LevelFromXP(totalXP),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func seedBadge(t *testing.T, db *gorm.DB, name string, cond models.BadgeCondition) *models.Badge {
	t.Helper()
	badge := &models.Badge{
		ID:        uuid.NewString(),
		Name:      name,
		Condition: cond,
	}
	if err := db.Create(badge).Error; err != nil {
		t.Fatalf("failed to seed badge %q: %v", name, err)
	}
	return badge
}

func seedResolvedAttempt(t *testing.T, db *gorm.DB, userID string, status models.AttemptStatus, submittedAt time.Time) {
	t.Helper()
	attempt := &models.Attempt{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: uuid.NewString(),
		Status:      status,
		SubmittedAt: &submittedAt,
	}
	if err := db.Create(attempt).Error; err != nil {
		t.Fatalf("failed to seed attempt: %v", err)
	}
}

func qualifyingNames(t *testing.T, db *gorm.DB, userID string, totalXP int64) map[string]bool {
	t.Helper()
	badges, err := services.NewBadgeEvaluator(db).Qualifying(userID, totalXP)
	if err != nil {
		t.Fatalf("Qualifying failed: %v", err)
	}
	names := map[string]bool{}
	for _, b := range badges {
		if names[b.Name] {
			t.Fatalf("badge %q returned twice in one evaluation", b.Name)
		}
		names[b.Name] = true
	}
	return names
}

func TestXPThresholdCondition(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 150)
	seedBadge(t, db, "centurion", models.BadgeCondition{Type: models.ConditionXPThreshold, Threshold: 100})
	seedBadge(t, db, "legend", models.BadgeCondition{Type: models.ConditionXPThreshold, Threshold: 1000})

	names := qualifyingNames(t, db, user.ID, user.TotalXP)
	if !names["centurion"] {
		t.Error("threshold 100 should qualify at 150 XP")
	}
	if names["legend"] {
		t.Error("threshold 1000 should not qualify at 150 XP")
	}
}

func TestXPThresholdIsInclusive(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 100)
	seedBadge(t, db, "centurion", models.BadgeCondition{Type: models.ConditionXPThreshold, Threshold: 100})

	if !qualifyingNames(t, db, user.ID, user.TotalXP)["centurion"] {
		t.Error("threshold should be inclusive")
	}
}

func TestHeldBadgesAreExcluded(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 500)
	badge := seedBadge(t, db, "centurion", models.BadgeCondition{Type: models.ConditionXPThreshold, Threshold: 100})

	held := &models.UserBadge{ID: uuid.NewString(), UserID: user.ID, BadgeID: badge.ID}
	if err := db.Create(held).Error; err != nil {
		t.Fatalf("failed to seed user badge: %v", err)
	}

	if qualifyingNames(t, db, user.ID, user.TotalXP)["centurion"] {
		t.Error("an already-held badge must never re-qualify, even if its condition is still true")
	}
}

func TestAttemptCountCondition(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 0)
	seedBadge(t, db, "grinder", models.BadgeCondition{Type: models.ConditionAttemptCount, Count: 3, Status: models.AttemptPassed})
	seedBadge(t, db, "resilient", models.BadgeCondition{Type: models.ConditionAttemptCount, Count: 2, Status: models.AttemptFailed})

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedResolvedAttempt(t, db, user.ID, models.AttemptPassed, now)
	}
	seedResolvedAttempt(t, db, user.ID, models.AttemptFailed, now)

	names := qualifyingNames(t, db, user.ID, user.TotalXP)
	if !names["grinder"] {
		t.Error("3 passed attempts should satisfy count=3 passed")
	}
	if names["resilient"] {
		t.Error("1 failed attempt should not satisfy count=2 failed")
	}
}

func TestDistinctActiveDaysCondition(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 0)
	seedBadge(t, db, "regular", models.BadgeCondition{Type: models.ConditionConsecutiveDays, Days: 3})

	// Three passes on day 1, one on day 5, one on day 20: 3 distinct days,
	// not contiguous. The condition counts distinct days only.
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedResolvedAttempt(t, db, user.ID, models.AttemptPassed, base)
	seedResolvedAttempt(t, db, user.ID, models.AttemptPassed, base.Add(2*time.Hour))
	seedResolvedAttempt(t, db, user.ID, models.AttemptPassed, base.Add(4*time.Hour))
	seedResolvedAttempt(t, db, user.ID, models.AttemptPassed, base.AddDate(0, 0, 4))
	seedResolvedAttempt(t, db, user.ID, models.AttemptPassed, base.AddDate(0, 0, 19))
	// Failed attempts never count towards active days.
	seedResolvedAttempt(t, db, user.ID, models.AttemptFailed, base.AddDate(0, 0, 25))

	if !qualifyingNames(t, db, user.ID, user.TotalXP)["regular"] {
		t.Error("3 distinct passed days should satisfy days=3 (contiguity is not required)")
	}
}

func TestDistinctActiveDaysBelowRequirement(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 0)
	seedBadge(t, db, "regular", models.BadgeCondition{Type: models.ConditionConsecutiveDays, Days: 3})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedResolvedAttempt(t, db, user.ID, models.AttemptPassed, base)
	seedResolvedAttempt(t, db, user.ID, models.AttemptPassed, base.Add(time.Hour))

	if qualifyingNames(t, db, user.ID, user.TotalXP)["regular"] {
		t.Error("2 passes on 1 day should not satisfy days=3")
	}
}

func TestMalformedConditionFailsEvaluation(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 0)
	seedBadge(t, db, "broken", models.BadgeCondition{Type: "bogus"})

	if _, err := services.NewBadgeEvaluator(db).Qualifying(user.ID, user.TotalXP); err == nil {
		t.Fatal("a malformed condition must fail the evaluation, not be skipped silently")
	}
}

func TestBadgeConditionValidate(t *testing.T) {
	for name, testcase := range map[string]struct {
		cond        models.BadgeCondition
		expectError bool
	}{
		"valid xp condition":            {cond: models.BadgeCondition{Type: models.ConditionXPThreshold, Threshold: 100}},
		"xp without threshold":          {cond: models.BadgeCondition{Type: models.ConditionXPThreshold}, expectError: true},
		"valid attempt count":           {cond: models.BadgeCondition{Type: models.ConditionAttemptCount, Count: 5, Status: models.AttemptPassed}},
		"attempt count non-terminal":    {cond: models.BadgeCondition{Type: models.ConditionAttemptCount, Count: 5, Status: models.AttemptStarted}, expectError: true},
		"valid consecutive days":        {cond: models.BadgeCondition{Type: models.ConditionConsecutiveDays, Days: 7}},
		"consecutive days without days": {cond: models.BadgeCondition{Type: models.ConditionConsecutiveDays}, expectError: true},
		"unknown type":                  {cond: models.BadgeCondition{Type: "mystery"}, expectError: true},
	} {
		t.Run(name, func(t *testing.T) {
			err := testcase.cond.Validate()
			if testcase.expectError && err == nil {
				t.Error("expected a validation error")
			}
			if !testcase.expectError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
