package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"skillquest-reward-system/handlers"
	"skillquest-reward-system/middleware"
	"skillquest-reward-system/models"
	"skillquest-reward-system/services"
	"skillquest-reward-system/utils"
	"skillquest-reward-system/workers"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, largest payload is a badge icon
	})

	// 🔐 GLOBAL: Only Gateway requests allowed, no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	originsList := strings.Split(allowedOrigins, ",")
	for i, origin := range originsList {
		originsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(originsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Name, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.Attempt{},
		&models.Badge{},
		&models.UserBadge{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Ranking cache: Redis when configured, in-process fallback otherwise.
	var rankingStore services.RankingStore
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Println("⚠️  REDIS_URL not set, leaderboard runs on in-process store (single instance only)")
		rankingStore = services.NewMemoryRankingStore()
	} else {
		rdb, err := services.InitRedis(redisURL)
		if err != nil {
			log.Fatal("failed to connect to redis:", err)
		}
		rankingStore = services.NewRedisRankingStore(rdb)
	}

	userService := services.NewUserService(db)
	challengeService := services.NewChallengeService(db)
	leaderboardService := services.NewLeaderboardService(db, rankingStore)

	rewardWorker := workers.NewRewardWorker(db, leaderboardService)
	attemptService := services.NewAttemptService(db, rewardWorker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rewardWorker.Start(ctx)

	// Warm the ranking cache from the store of record before serving reads.
	if err := leaderboardService.Rebuild(ctx); err != nil {
		log.Printf("⚠️  Initial leaderboard rebuild failed: %v", err)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal("failed to create scheduler:", err)
	}
	challengeService.StartPublishScheduler(sched)

	// Reconciliation: the cache is a derived projection, rebuild it wholesale
	// on a schedule so a missed sync can never persist.
	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			if err := leaderboardService.Rebuild(context.Background()); err != nil {
				log.Printf("[Scheduler] Leaderboard rebuild failed: %v", err)
			}
		}),
	)
	sched.Start()

	handlers.SetupChallengeRoutes(app, challengeService)
	handlers.SetupAttemptRoutes(app, attemptService, userService)
	handlers.SetupBadgeRoutes(app, db, userService)
	handlers.SetupLeaderboardRoutes(app, db, leaderboardService, userService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Reward worker running")
	log.Println("✅ Challenge publish scheduler running (every 1m)")
	log.Println("✅ Leaderboard reconciliation running (every 10m)")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
