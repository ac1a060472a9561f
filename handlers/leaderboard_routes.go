// handlers/leaderboard_routes.go
package handlers

import (
	"errors"
	"strconv"

	"skillquest-reward-system/middleware"
	"skillquest-reward-system/models"
	"skillquest-reward-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupLeaderboardRoutes(app *fiber.App, db *gorm.DB, leaderboard *services.LeaderboardService, userService *services.UserService) {
	// Top N, served from the ranking cache (DB fallback when cold).
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "10"))
		if limit < 1 || limit > 100 {
			limit = 10
		}

		entries, err := leaderboard.Top(c.Context(), int64(limit))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load leaderboard", "cause": err.Error()})
		}

		// Decorate with user details from the store of record.
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.UserID)
		}
		usersByID := map[string]models.User{}
		if len(ids) > 0 {
			var users []models.User
			if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load users", "cause": err.Error()})
			}
			for _, u := range users {
				usersByID[u.ID] = u
			}
		}

		rows := make([]fiber.Map, 0, len(entries))
		for i, e := range entries {
			row := fiber.Map{
				"rank":     i + 1,
				"user_id":  e.UserID,
				"total_xp": e.TotalXP,
			}
			if u, ok := usersByID[e.UserID]; ok {
				row["username"] = u.Username
				row["level"] = u.Level
			}
			rows = append(rows, row)
		}

		return c.JSON(fiber.Map{
			"entries":     rows,
			"total_count": len(rows),
		})
	})

	// Calling user's own rank.
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/leaderboard/rank", func(c *fiber.Ctx) error {
		user, err := currentUser(c, userService)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve user", "cause": err.Error()})
		}

		rank, ok, err := leaderboard.Rank(c.Context(), user.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute rank", "cause": err.Error()})
		}
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not ranked yet"})
		}

		return c.JSON(fiber.Map{
			"user_id":  user.ID,
			"rank":     rank,
			"total_xp": user.TotalXP,
		})
	})

	// Detailed progress for any user (public profile data).
	app.Get("/users/:id/progress", func(c *fiber.Ctx) error {
		progress, err := userService.GetProgress(c.Params("id"))
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load progress", "cause": err.Error()})
		}
		return c.JSON(progress)
	})
}
