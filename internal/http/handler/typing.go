package handler

import (
	"backend-support/internal/config"
	"backend-support/internal/helper"
	"backend-support/internal/models"
	"backend-support/internal/typingstate"

	"github.com/gofiber/fiber/v2"
)

// Typing flags are role-scoped: the user endpoint only accepts callers
// with the user role, the admin endpoint only admins. Flags expire on
// their own after typingstate.TTL, so a vanished client cannot leave a
// flag stuck on.

func setTypingFlag(c *fiber.Ctx, flagRole string) error {
	ticket, ok := ticketForChat(c)
	if !ok {
		return nil
	}

	callerRole, _ := c.Locals("role").(string)
	if err := helper.CanSetTypingFlag(callerRole, flagRole); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var req models.SetTypingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := typingstate.Set(config.Ctx, config.Redis, ticket.ID, flagRole, req.Typing); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update typing state",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// SetUserTyping - POST /api/tickets/:id/typing/user
func SetUserTyping(c *fiber.Ctx) error {
	return setTypingFlag(c, models.RoleUser)
}

// SetAdminTyping - POST /api/tickets/:id/typing/admin
func SetAdminTyping(c *fiber.Ctx) error {
	return setTypingFlag(c, models.RoleAdmin)
}
