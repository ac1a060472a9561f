// handlers/challenge_routes.go
package handlers

import (
	"errors"
	"strconv"
	"time"

	"skillquest-reward-system/middleware"
	"skillquest-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challengeService *services.ChallengeService) {
	// Public catalog, published challenges only.
	app.Get("/challenges", func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "12"))
		difficulty := c.Query("difficulty")

		challenges, total, err := challengeService.ListChallenges(difficulty, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list challenges", "cause": err.Error()})
		}

		return c.JSON(fiber.Map{
			"challenges": challenges,
			"page":       page,
			"size":       size,
			"total":      total,
		})
	})

	app.Get("/challenges/:idOrSlug", func(c *fiber.Ctx) error {
		challenge, err := challengeService.GetChallenge(c.Params("idOrSlug"))
		if errors.Is(err, services.ErrChallengeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "challenge not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load challenge", "cause": err.Error()})
		}
		if !challenge.Published {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "challenge not found"})
		}
		return c.JSON(challenge)
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	adminGroup.Post("/challenges", func(c *fiber.Ctx) error {
		var req struct {
			Title       string     `json:"title"`
			Description string     `json:"description"`
			Difficulty  string     `json:"difficulty"`
			XP          int64      `json:"xp"`
			Published   bool       `json:"published"`
			PublishAt   *time.Time `json:"publish_at"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
		}

		createdBy, _ := c.Locals("user_id").(string)
		challenge, err := challengeService.CreateChallenge(
			req.Title, req.Description, req.Difficulty, req.XP, req.Published, req.PublishAt, createdBy,
		)
		if errors.Is(err, services.ErrInvalidChallengeXP) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "xp must be >= 1"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create challenge", "cause": err.Error()})
		}

		return c.Status(fiber.StatusCreated).JSON(challenge)
	})

	adminGroup.Post("/challenges/:id/publish", func(c *fiber.Ctx) error {
		challenge, err := challengeService.Publish(c.Params("id"))
		if errors.Is(err, services.ErrChallengeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "challenge not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to publish challenge", "cause": err.Error()})
		}
		return c.JSON(challenge)
	})
}
