// handlers/badge_routes.go
package handlers

import (
	"path/filepath"

	"skillquest-reward-system/middleware"
	"skillquest-reward-system/models"
	"skillquest-reward-system/services"
	"skillquest-reward-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func SetupBadgeRoutes(app *fiber.App, db *gorm.DB, userService *services.UserService) {
	// Public badge catalog.
	app.Get("/badges", func(c *fiber.Ctx) error {
		var badges []models.Badge
		if err := db.Order("created_at ASC").Find(&badges).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list badges", "cause": err.Error()})
		}
		return c.JSON(badges)
	})

	// Badges earned by the calling user.
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/user/badges", func(c *fiber.Ctx) error {
		user, err := currentUser(c, userService)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve user", "cause": err.Error()})
		}

		badges, err := userService.ListBadges(user.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list badges", "cause": err.Error()})
		}
		return c.JSON(badges)
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	adminGroup.Post("/badges", func(c *fiber.Ctx) error {
		var req struct {
			Name        string                `json:"name"`
			Description string                `json:"description"`
			Rarity      string                `json:"rarity"`
			Condition   models.BadgeCondition `json:"condition"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
		}
		// Reject malformed conditions here so the reward worker never sees one.
		if err := req.Condition.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid condition", "cause": err.Error()})
		}
		if req.Rarity == "" {
			req.Rarity = "common"
		}

		badge := models.Badge{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Description: req.Description,
			Rarity:      req.Rarity,
			Condition:   req.Condition,
		}
		if err := db.Create(&badge).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create badge", "cause": err.Error()})
		}

		return c.Status(fiber.StatusCreated).JSON(badge)
	})

	// Badge icon upload → R2 (small, public asset)
	adminGroup.Post("/badges/:id/icon", func(c *fiber.Ctx) error {
		var badge models.Badge
		if err := db.Where("id = ?", c.Params("id")).First(&badge).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "badge not found"})
		}

		iconFile, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon file is required"})
		}

		iconExt := filepath.Ext(iconFile.Filename)
		if iconExt == "" {
			iconExt = ".png"
		}
		iconKey := "badges/" + uuid.NewString() + iconExt
		iconURL, err := utils.UploadFileToR2(iconFile, iconKey)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload icon to R2"})
		}

		badge.IconURL = iconURL
		if err := db.Save(&badge).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save badge", "cause": err.Error()})
		}

		return c.JSON(badge)
	})
}
