package services_test

import (
	"context"
	"testing"

	"skillquest-reward-system/models"
	"skillquest-reward-system/services"

	"gorm.io/gorm"
)

func seedRankedUser(t *testing.T, db *gorm.DB, id string, totalXP int64) {
	t.Helper()
	user := &models.User{
		ID:             id,
		ExternalUserID: "ext-" + id,
		Username:       "user-" + id,
		TotalXP:        totalXP,
		Level:          services.LevelFromXP(totalXP),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
}

func TestMemoryRankingStore(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryRankingStore()

	for id, xp := range map[string]int64{"a": 100, "b": 300, "c": 200} {
		if err := store.Set(ctx, id, xp); err != nil {
			t.Fatalf("Set(%s) failed: %v", id, err)
		}
	}

	top, err := store.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	expected := []services.RankedUser{
		{UserID: "b", TotalXP: 300},
		{UserID: "c", TotalXP: 200},
		{UserID: "a", TotalXP: 100},
	}
	if len(top) != len(expected) {
		t.Fatalf("Top returned %d entries, expected %d", len(top), len(expected))
	}
	for i := range expected {
		if top[i] != expected[i] {
			t.Errorf("Top[%d] = %+v, expected %+v", i, top[i], expected[i])
		}
	}

	// Limit applies.
	top2, err := store.Top(ctx, 2)
	if err != nil {
		t.Fatalf("Top(2) failed: %v", err)
	}
	if len(top2) != 2 || top2[0].UserID != "b" || top2[1].UserID != "c" {
		t.Errorf("Top(2) = %+v", top2)
	}

	rank, ok, err := store.Rank(ctx, "c")
	if err != nil || !ok || rank != 2 {
		t.Errorf("Rank(c) = (%d, %v, %v), expected (2, true, nil)", rank, ok, err)
	}
	if _, ok, _ := store.Rank(ctx, "nobody"); ok {
		t.Error("Rank for an absent user must report ok=false")
	}

	// Upsert moves the member rather than adding a second entry.
	if err := store.Set(ctx, "a", 500); err != nil {
		t.Fatalf("re-Set failed: %v", err)
	}
	if rank, _, _ := store.Rank(ctx, "a"); rank != 1 {
		t.Errorf("after upsert Rank(a) = %d, expected 1", rank)
	}
	if top, _ := store.Top(ctx, 10); len(top) != 3 {
		t.Errorf("upsert grew the set to %d entries", len(top))
	}
}

func TestMemoryRankingStoreSetIsMonotone(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryRankingStore()

	if err := store.Set(ctx, "a", 300); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	// A stale sync arriving late must not lower the entry.
	if err := store.Set(ctx, "a", 200); err != nil {
		t.Fatalf("stale Set failed: %v", err)
	}
	top, err := store.Top(ctx, 1)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 1 || top[0].TotalXP != 300 {
		t.Errorf("Top = %+v, expected a at 300 (stale write must be ignored)", top)
	}

	// Replace is authoritative and may lower values.
	if err := store.Replace(ctx, []services.RankedUser{{UserID: "a", TotalXP: 200}}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	top, _ = store.Top(ctx, 1)
	if len(top) != 1 || top[0].TotalXP != 200 {
		t.Errorf("after Replace Top = %+v, expected a at 200", top)
	}
}

func TestMemoryRankingStoreTieBreak(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryRankingStore()
	for _, id := range []string{"aaa", "zzz", "mmm"} {
		if err := store.Set(ctx, id, 100); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	top, err := store.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	// Equal scores order by member id descending.
	want := []string{"zzz", "mmm", "aaa"}
	for i, id := range want {
		if top[i].UserID != id {
			t.Errorf("Top[%d] = %s, expected %s", i, top[i].UserID, id)
		}
	}
}

func TestMemoryRankingStoreReplace(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryRankingStore()
	if err := store.Set(ctx, "stale", 999); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := store.Replace(ctx, []services.RankedUser{{UserID: "fresh", TotalXP: 10}}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if _, ok, _ := store.Rank(ctx, "stale"); ok {
		t.Error("Replace must drop entries absent from the new snapshot")
	}
	if rank, ok, _ := store.Rank(ctx, "fresh"); !ok || rank != 1 {
		t.Errorf("Rank(fresh) = (%d, %v), expected (1, true)", rank, ok)
	}

	if err := store.Replace(ctx, nil); err != nil {
		t.Fatalf("Replace(nil) failed: %v", err)
	}
	if top, _ := store.Top(ctx, 10); len(top) != 0 {
		t.Errorf("Replace(nil) left %d entries behind", len(top))
	}
}

func TestLeaderboardTopFallsBackToDB(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := services.NewLeaderboardService(db, services.NewMemoryRankingStore())

	seedRankedUser(t, db, "u-1", 150)
	seedRankedUser(t, db, "u-2", 400)
	seedRankedUser(t, db, "u-3", 400)

	// Cold cache: Top must come from the users table with the same ordering.
	top, err := svc.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	want := []services.RankedUser{
		{UserID: "u-3", TotalXP: 400},
		{UserID: "u-2", TotalXP: 400},
		{UserID: "u-1", TotalXP: 150},
	}
	if len(top) != len(want) {
		t.Fatalf("Top returned %d entries, expected %d", len(top), len(want))
	}
	for i := range want {
		if top[i] != want[i] {
			t.Errorf("Top[%d] = %+v, expected %+v", i, top[i], want[i])
		}
	}
}

func TestLeaderboardRankFallsBackToDB(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := services.NewLeaderboardService(db, services.NewMemoryRankingStore())

	seedRankedUser(t, db, "u-1", 150)
	seedRankedUser(t, db, "u-2", 400)
	seedRankedUser(t, db, "u-3", 400)

	cases := map[string]struct {
		userID string
		rank   int64
		ok     bool
	}{
		"tie broken by id desc, winner": {userID: "u-3", rank: 1, ok: true},
		"tie broken by id desc, loser":  {userID: "u-2", rank: 2, ok: true},
		"last place":                    {userID: "u-1", rank: 3, ok: true},
		"unknown user":                  {userID: "ghost", rank: 0, ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rank, ok, err := svc.Rank(ctx, tc.userID)
			if err != nil {
				t.Fatalf("Rank failed: %v", err)
			}
			if rank != tc.rank || ok != tc.ok {
				t.Errorf("Rank(%s) = (%d, %v), expected (%d, %v)", tc.userID, rank, ok, tc.rank, tc.ok)
			}
		})
	}
}

func TestLeaderboardRebuild(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := services.NewMemoryRankingStore()
	svc := services.NewLeaderboardService(db, store)

	// A stale cache entry for a user who no longer exists.
	if err := store.Set(ctx, "deleted-user", 9999); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	seedRankedUser(t, db, "u-1", 100)
	seedRankedUser(t, db, "u-2", 250)

	if err := svc.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	top, err := store.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("rebuilt cache has %d entries, expected 2", len(top))
	}
	if top[0].UserID != "u-2" || top[0].TotalXP != 250 {
		t.Errorf("Top[0] = %+v, expected u-2 with 250 XP", top[0])
	}
	if _, ok, _ := store.Rank(ctx, "deleted-user"); ok {
		t.Error("Rebuild must drop cache entries with no backing user row")
	}

	// SyncUser after a reward keeps the projection current.
	if err := svc.SyncUser(ctx, "u-1", 300); err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if rank, _, _ := store.Rank(ctx, "u-1"); rank != 1 {
		t.Errorf("after SyncUser Rank(u-1) = %d, expected 1", rank)
	}
}
