// handlers/attempt_routes.go
package handlers

import (
	"errors"
	"strconv"

	"skillquest-reward-system/middleware"
	"skillquest-reward-system/models"
	"skillquest-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

// currentUser resolves the gateway identity headers into a local User row
// (created on first sight with xp=0, level=1).
func currentUser(c *fiber.Ctx, userService *services.UserService) (*models.User, error) {
	externalID, _ := c.Locals("user_id").(string)
	username, _ := c.Locals("username").(string)
	if username == "" {
		username = externalID
	}
	return userService.EnsureUser(externalID, username)
}

func SetupAttemptRoutes(app *fiber.App, attemptService *services.AttemptService, userService *services.UserService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Start a new attempt at a published challenge.
	secured.Post("/attempts", func(c *fiber.Ctx) error {
		var req struct {
			ChallengeID string `json:"challenge_id"`
		}
		if err := c.BodyParser(&req); err != nil || req.ChallengeID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "challenge_id is required"})
		}

		user, err := currentUser(c, userService)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve user", "cause": err.Error()})
		}

		attempt, err := attemptService.StartAttempt(user.ID, req.ChallengeID)
		switch {
		case errors.Is(err, services.ErrChallengeNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "challenge not found"})
		case errors.Is(err, services.ErrChallengeUnpublished):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "challenge is not published"})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to start attempt", "cause": err.Error()})
		}

		return c.Status(fiber.StatusCreated).JSON(attempt)
	})

	// Submit a score. Moves the attempt to submitted and enqueues the reward
	// job; XP, level, and badges land asynchronously.
	secured.Post("/attempts/:id/submit", func(c *fiber.Ctx) error {
		var req struct {
			Score    *float64               `json:"score"`
			Solution string                 `json:"solution"`
			Metadata map[string]interface{} `json:"metadata"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Score == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "score is required"})
		}

		user, err := currentUser(c, userService)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve user", "cause": err.Error()})
		}

		attempt, err := attemptService.SubmitAttempt(c.Params("id"), user.ID, *req.Score, req.Solution, req.Metadata)
		switch {
		case errors.Is(err, services.ErrInvalidScore):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "score must be between 0 and 100"})
		case errors.Is(err, services.ErrAttemptNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "attempt not found"})
		case errors.Is(err, services.ErrNotAttemptOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized to submit this attempt"})
		case errors.Is(err, services.ErrAlreadySubmitted):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "attempt already submitted"})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to submit attempt", "cause": err.Error()})
		}

		return c.JSON(attempt)
	})

	secured.Get("/attempts", func(c *fiber.Ctx) error {
		user, err := currentUser(c, userService)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve user", "cause": err.Error()})
		}

		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		attempts, total, err := attemptService.ListAttempts(user.ID, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list attempts", "cause": err.Error()})
		}

		return c.JSON(fiber.Map{
			"attempts": attempts,
			"page":     page,
			"size":     size,
			"total":    total,
		})
	})

	secured.Get("/attempts/:id", func(c *fiber.Ctx) error {
		user, err := currentUser(c, userService)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve user", "cause": err.Error()})
		}

		attempt, err := attemptService.GetAttempt(c.Params("id"), user.ID)
		switch {
		case errors.Is(err, services.ErrAttemptNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "attempt not found"})
		case errors.Is(err, services.ErrNotAttemptOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not authorized to view this attempt"})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load attempt", "cause": err.Error()})
		}

		return c.JSON(attempt)
	})
}
