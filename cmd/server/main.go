package main

import (
	"log"
	"os"
	"runtime"

	"backend-support/internal/config"
	"backend-support/internal/http/handler"
	"backend-support/internal/http/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	app := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		StrictRouting: true,
	})

	config.LoadEnv()
	config.InitRedis()
	config.InitDB()
	defer config.CloseDB()

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Support API running",
		})
	})

	// Attachments are addressed by their /public/... path; clients
	// derive this origin by stripping /api from the API base URL.
	app.Static("/public", "./public")

	app.Post("/api/auth/register", handler.Register)
	app.Post("/api/auth/login", handler.Login)

	// Snapshot push over websocket (token rides in the query string).
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/tickets/:id", websocket.New(handler.ChatTicketWS))

	// Base API (login required)
	api := app.Group("/api", middleware.JWTAuth())

	// Auth
	api.Get("/auth/me", handler.Me)
	api.Post("/logout", handler.Logout)

	// ===== ADMIN ROUTES =====
	// Registered before /tickets/:id so "admin" never parses as an id.
	api.Get("/tickets/admin", middleware.RoleAuth("admin"), handler.GetAdminTickets)
	api.Patch("/tickets/admin/:id", middleware.RoleAuth("admin"), handler.UpdateTicketStatus)
	api.Delete("/tickets/admin/:id", middleware.RoleAuth("admin"), handler.DeleteTicket)

	// Customers
	api.Get("/customers", middleware.RoleAuth("admin"), handler.GetAllCustomers)
	api.Post("/customers", middleware.RoleAuth("admin"), handler.CreateCustomer)
	api.Put("/customers/id/:id", middleware.RoleAuth("admin"), handler.UpdateCustomer)
	api.Delete("/customers/id/:id", middleware.RoleAuth("admin"), handler.DeleteCustomer)

	// ===== TICKET ROUTES (both roles) =====
	api.Post("/tickets", handler.CreateTicket)
	api.Get("/tickets/my", handler.GetMyTickets)
	api.Get("/tickets/:id", handler.GetTicket)

	// Chat
	api.Get("/tickets/:id/messages", handler.GetMessages)
	api.Post("/tickets/:id/messages", handler.SendMessage)
	api.Post("/tickets/:id/typing/user", handler.SetUserTyping)
	api.Post("/tickets/:id/typing/admin", handler.SetAdminTyping)

	addr := os.Getenv("APP_HOST") + ":" + config.GetEnv("APP_PORT", "4000")
	log.Println("Server running on", addr)
	log.Fatal(app.Listen(addr))
}
