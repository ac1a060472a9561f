package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"skillquest-reward-system/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	leaderboardKey        = "leaderboard"
	leaderboardStagingKey = "leaderboard:rebuild"
	rebuildPageSize       = 500
)

// RankedUser is one leaderboard row: a user id and the XP total the cache
// holds for it.
type RankedUser struct {
	UserID  string `json:"user_id"`
	TotalXP int64  `json:"total_xp"`
}

// RankingStore is the derived, order-queryable XP projection. Ties are broken
// by user id descending (the order ZREVRANGE yields for equal scores); every
// implementation must match. It is never the source of truth and must always
// be reconstructible from users.total_xp.
type RankingStore interface {
	// Set is an idempotent, monotone upsert of a user's XP total: an older
	// sync arriving late never lowers the entry. Replace is the only path
	// that can decrease a value.
	Set(ctx context.Context, userID string, totalXP int64) error
	// Top returns up to n entries, highest XP first.
	Top(ctx context.Context, n int64) ([]RankedUser, error)
	// Rank returns a 1-indexed position, or ok=false if the user is absent.
	Rank(ctx context.Context, userID string) (rank int64, ok bool, err error)
	// Replace atomically swaps the whole projection for the given entries.
	Replace(ctx context.Context, entries []RankedUser) error
}

// RedisRankingStore keeps the leaderboard in a Redis sorted set.
type RedisRankingStore struct {
	Client *redis.Client
}

// InitRedis connects using REDIS_URL-style addressing.
func InitRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.PoolSize = 50
	opts.MinIdleConns = 5

	rdb := redis.NewClient(opts)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	log.Println("Redis connection established")
	return rdb, nil
}

func NewRedisRankingStore(client *redis.Client) *RedisRankingStore {
	return &RedisRankingStore{Client: client}
}

func (s *RedisRankingStore) Set(ctx context.Context, userID string, totalXP int64) error {
	// GT: two post-commit syncs for the same user can land out of order;
	// only a greater score may replace an existing one. New members are
	// still added.
	return s.Client.ZAddArgs(ctx, leaderboardKey, redis.ZAddArgs{
		GT:      true,
		Members: []redis.Z{{Score: float64(totalXP), Member: userID}},
	}).Err()
}

func (s *RedisRankingStore) Top(ctx context.Context, n int64) ([]RankedUser, error) {
	zs, err := s.Client.ZRevRangeWithScores(ctx, leaderboardKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]RankedUser, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, RankedUser{UserID: member, TotalXP: int64(z.Score)})
	}
	return entries, nil
}

func (s *RedisRankingStore) Rank(ctx context.Context, userID string) (int64, bool, error) {
	rank, err := s.Client.ZRevRank(ctx, leaderboardKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank + 1, true, nil // 1-indexed
}

// Replace builds the new set under a staging key and RENAMEs it over the live
// one, so readers never observe a half-built leaderboard.
func (s *RedisRankingStore) Replace(ctx context.Context, entries []RankedUser) error {
	pipe := s.Client.TxPipeline()
	pipe.Del(ctx, leaderboardStagingKey)
	for _, e := range entries {
		pipe.ZAdd(ctx, leaderboardStagingKey, &redis.Z{Score: float64(e.TotalXP), Member: e.UserID})
	}
	if len(entries) == 0 {
		pipe.Del(ctx, leaderboardKey)
	} else {
		pipe.Rename(ctx, leaderboardStagingKey, leaderboardKey)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// MemoryRankingStore is an in-process RankingStore. Used by tests and as a
// degraded mode when no Redis is configured.
type MemoryRankingStore struct {
	mu     sync.RWMutex
	scores map[string]int64
}

func NewMemoryRankingStore() *MemoryRankingStore {
	return &MemoryRankingStore{scores: make(map[string]int64)}
}

func (s *MemoryRankingStore) Set(_ context.Context, userID string, totalXP int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.scores[userID]; ok && current >= totalXP {
		return nil
	}
	s.scores[userID] = totalXP
	return nil
}

func (s *MemoryRankingStore) sorted() []RankedUser {
	entries := make([]RankedUser, 0, len(s.scores))
	for id, xp := range s.scores {
		entries = append(entries, RankedUser{UserID: id, TotalXP: xp})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalXP != entries[j].TotalXP {
			return entries[i].TotalXP > entries[j].TotalXP
		}
		return entries[i].UserID > entries[j].UserID
	})
	return entries
}

func (s *MemoryRankingStore) Top(_ context.Context, n int64) ([]RankedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.sorted()
	if int64(len(entries)) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (s *MemoryRankingStore) Rank(_ context.Context, userID string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.scores[userID]; !ok {
		return 0, false, nil
	}
	for i, e := range s.sorted() {
		if e.UserID == userID {
			return int64(i) + 1, true, nil
		}
	}
	return 0, false, nil
}

func (s *MemoryRankingStore) Replace(_ context.Context, entries []RankedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = make(map[string]int64, len(entries))
	for _, e := range entries {
		s.scores[e.UserID] = e.TotalXP
	}
	return nil
}

// LeaderboardService serves leaderboard reads from the ranking cache, falling
// back to the store of record when the cache is cold or unavailable: slower,
// never stale-presented-as-current.
type LeaderboardService struct {
	DB    *gorm.DB
	Store RankingStore
}

func NewLeaderboardService(db *gorm.DB, store RankingStore) *LeaderboardService {
	return &LeaderboardService{DB: db, Store: store}
}

// SyncUser upserts one user's cache entry. Called by the reward worker after a
// pass commits; a failure here only delays visibility (Rebuild catches up).
func (s *LeaderboardService) SyncUser(ctx context.Context, userID string, totalXP int64) error {
	return s.Store.Set(ctx, userID, totalXP)
}

// Top returns the n highest-XP users. An empty or failing cache falls through
// to the store of record with the same ordering.
func (s *LeaderboardService) Top(ctx context.Context, n int64) ([]RankedUser, error) {
	entries, err := s.Store.Top(ctx, n)
	if err != nil {
		log.Printf("⚠️ [LEADERBOARD] cache read failed, serving from DB: %v", err)
	} else if len(entries) > 0 {
		return entries, nil
	}
	return s.topFromDB(ctx, n)
}

func (s *LeaderboardService) topFromDB(ctx context.Context, n int64) ([]RankedUser, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).
		Order("total_xp DESC, id DESC").
		Limit(int(n)).
		Find(&users).Error; err != nil {
		return nil, err
	}
	entries := make([]RankedUser, 0, len(users))
	for _, u := range users {
		entries = append(entries, RankedUser{UserID: u.ID, TotalXP: u.TotalXP})
	}
	return entries, nil
}

// Rank returns the user's 1-indexed leaderboard position, computing it from
// the store of record when the cache has no entry.
func (s *LeaderboardService) Rank(ctx context.Context, userID string) (int64, bool, error) {
	rank, ok, err := s.Store.Rank(ctx, userID)
	if err != nil {
		log.Printf("⚠️ [LEADERBOARD] cache rank failed, serving from DB: %v", err)
	} else if ok {
		return rank, true, nil
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}

	var ahead int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("total_xp > ? OR (total_xp = ? AND id > ?)", user.TotalXP, user.TotalXP, user.ID).
		Count(&ahead).Error; err != nil {
		return 0, false, err
	}
	return ahead + 1, true, nil
}

// Rebuild recomputes the entire projection from users.total_xp. Safe to run at
// any time; used at startup and on a reconciliation schedule.
func (s *LeaderboardService) Rebuild(ctx context.Context) error {
	var entries []RankedUser
	var page []models.User
	lastID := ""
	for {
		q := s.DB.WithContext(ctx).Order("id ASC").Limit(rebuildPageSize)
		if lastID != "" {
			q = q.Where("id > ?", lastID)
		}
		page = page[:0]
		if err := q.Find(&page).Error; err != nil {
			return fmt.Errorf("leaderboard rebuild scan failed: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, u := range page {
			entries = append(entries, RankedUser{UserID: u.ID, TotalXP: u.TotalXP})
		}
		lastID = page[len(page)-1].ID
		if len(page) < rebuildPageSize {
			break
		}
	}

	if err := s.Store.Replace(ctx, entries); err != nil {
		return fmt.Errorf("leaderboard rebuild swap failed: %w", err)
	}
	log.Printf("✅ [LEADERBOARD] Rebuilt ranking cache with %d user(s)", len(entries))
	return nil
}
