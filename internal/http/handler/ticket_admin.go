package handler

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"strings"

	"backend-support/internal/config"
	"backend-support/internal/helper"
	"backend-support/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetAdminTickets - all tickets, optionally filtered by status
func GetAdminTickets(c *fiber.Ctx) error {
	query := "SELECT " + ticketColumns + " FROM tickets WHERE 1=1"
	args := []interface{}{}

	if status := c.Query("status"); status != "" {
		normalized, ok := models.NormalizeStatus(status)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown status",
			})
		}
		query += " AND status = ?"
		args = append(args, normalized)
	}

	if search := c.Query("search"); search != "" {
		search = "%" + strings.TrimSpace(search) + "%"
		query += " AND subject LIKE ?"
		args = append(args, search)
	}

	query += " ORDER BY created_at DESC, id DESC"

	rows, err := config.DB.Query(query, args...)
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

// UpdateTicketStatus - admin-only status transition. Any status may be
// set from any other; the updated ticket is re-read so the response is
// authoritative, never the optimistic input.
func UpdateTicketStatus(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ticket id",
		})
	}

	var req models.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	status, ok := models.NormalizeStatus(req.Status)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown status",
		})
	}

	result, err := config.DB.Exec("UPDATE tickets SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update ticket status",
		})
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		// RowsAffected is 0 for both "missing" and "unchanged"; re-read
		// below settles which one it was.
		if _, err := getTicketByID(id); err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Ticket not found",
			})
		}
	}

	ticket, err := getTicketByID(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read updated ticket",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"ticket":  ticket,
	})
}

// DeleteTicket - admin-only, and only for Resolved or Closed tickets.
// The same rule is checked client-side before the request is sent; this
// is the server half of the defense in depth.
func DeleteTicket(c *fiber.Ctx) error {
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
	if err := helper.CanDeleteTicket(role, ticket.Status); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Collect attachment paths before the rows go away.
	attachments := []string{}
	rows, err := config.DB.Query(
		"SELECT attachment FROM messages WHERE ticket_id = ? AND attachment IS NOT NULL", id,
	)
	if err == nil {
		for rows.Next() {
			var path string
			if rows.Scan(&path) == nil {
				attachments = append(attachments, path)
			}
		}
		rows.Close()
	}

	// Messages and ticket go in one transaction; a failure between the
	// two must not strand a ticket with no conversation.
	tx, err := config.DB.Begin()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete ticket",
		})
	}
	if _, err := tx.Exec("DELETE FROM messages WHERE ticket_id = ?", id); err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete ticket messages",
		})
	}
	if _, err := tx.Exec("DELETE FROM tickets WHERE id = ?", id); err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete ticket",
		})
	}
	if err := tx.Commit(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete ticket",
		})
	}

	// Best effort: the DB rows are already gone, a leftover file only
	// wastes disk.
	for _, publicPath := range attachments {
		name := filepath.Base(publicPath)
		if err := os.Remove(filepath.Join(UploadBasePath, name)); err != nil {
			log.Printf("[ticket] failed to remove attachment %s: %v", name, err)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Ticket deleted",
	})
}
