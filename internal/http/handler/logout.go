package handler

import "github.com/gofiber/fiber/v2"

// Logout is stateless: the client drops its token. Kept as an endpoint
// so clients have a single call for the sign-out flow.
func Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}
