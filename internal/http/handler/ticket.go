package handler

import (
	"database/sql"
	"strconv"
	"strings"

	"backend-support/internal/config"
	"backend-support/internal/helper"
	"backend-support/internal/models"

	"github.com/gofiber/fiber/v2"
)

const ticketColumns = "id, customer_id, subject, category, status, created_at, updated_at"

func scanTicket(row *sql.Row) (models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(
		&t.ID,
		&t.CustomerID,
		&t.Subject,
		&t.Category,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func getTicketByID(id int64) (models.Ticket, error) {
	row := config.DB.QueryRow("SELECT "+ticketColumns+" FROM tickets WHERE id = ?", id)
	return scanTicket(row)
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// CreateTicket - open a new support ticket for the logged-in customer.
// New tickets always start as Open.
func CreateTicket(c *fiber.Ctx) error {
	customerID, _ := c.Locals("customer_id").(int64)

	var req models.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" || req.Category == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Subject and category are required",
		})
	}

	if !models.IsValidCategory(req.Category) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown category",
		})
	}

	result, err := config.DB.Exec(
		"INSERT INTO tickets (customer_id, subject, category, status) VALUES (?, ?, ?, ?)",
		customerID, req.Subject, req.Category, models.StatusOpen,
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create ticket",
		})
	}

	id, _ := result.LastInsertId()
	ticket, err := getTicketByID(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read created ticket",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"ticket":  ticket,
	})
}

// GetMyTickets - tickets owned by the logged-in customer
func GetMyTickets(c *fiber.Ctx) error {
	customerID, _ := c.Locals("customer_id").(int64)

	rows, err := config.DB.Query(
		"SELECT "+ticketColumns+" FROM tickets WHERE customer_id = ? ORDER BY created_at DESC, id DESC",
		customerID,
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load tickets",
		})
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		var t models.Ticket
		err := rows.Scan(
			&t.ID,
			&t.CustomerID,
			&t.Subject,
			&t.Category,
			&t.Status,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			continue
		}
		tickets = append(tickets, t)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"tickets": tickets,
	})
}

// GetTicket - single ticket detail; visible to the owner and to admins
func GetTicket(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ticket id",
		})
	}

	ticket, err := getTicketByID(id)
	if err == sql.ErrNoRows {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Ticket not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load ticket",
		})
	}

	role, _ := c.Locals("role").(string)
	customerID, _ := c.Locals("customer_id").(int64)
	if err := helper.CanViewTicket(role, ticket.CustomerID, customerID); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"ticket":  ticket,
	})
}
