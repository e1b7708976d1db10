package handler

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"backend-support/internal/config"
	"backend-support/internal/helper"
	"backend-support/internal/models"
	"backend-support/internal/typingstate"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	MaxAttachmentSize = 5 * 1024 * 1024 // 5MB
	UploadBasePath    = "./public/uploads"
)

// loadSnapshot reads the full message list and both typing flags for a
// ticket. The result is one payload so a client can replace its state
// atomically; there is no incremental/merge variant.
func loadSnapshot(ticketID int64) (models.MessagesSnapshot, error) {
	rows, err := config.DB.Query(`
		SELECT id, ticket_id, sender_role, COALESCE(message, ''), attachment, attachment_type, created_at
		FROM messages
		WHERE ticket_id = ?
		ORDER BY created_at ASC, id ASC
	`, ticketID)
	if err != nil {
		return models.MessagesSnapshot{}, err
	}
	defer rows.Close()

	snapshot := models.MessagesSnapshot{Messages: []models.Message{}}
	for rows.Next() {
		var m models.Message
		err := rows.Scan(
			&m.ID,
			&m.TicketID,
			&m.SenderRole,
			&m.Message,
			&m.Attachment,
			&m.AttachmentType,
			&m.CreatedAt,
		)
		if err != nil {
			continue
		}
		snapshot.Messages = append(snapshot.Messages, m)
	}

	typing, err := typingstate.Snapshot(config.Ctx, config.Redis, ticketID)
	if err != nil {
		// An expired-or-absent flag and an unreadable flag look the same
		// to the viewer; don't fail the whole snapshot over it.
		log.Printf("[chat] typing snapshot for ticket %d: %v", ticketID, err)
		typing = models.TypingSnapshot{}
	}
	snapshot.Typing = typing

	return snapshot, nil
}

// ticketForChat loads the ticket and checks the caller can see it.
// Shared by the snapshot, send, and typing handlers.
func ticketForChat(c *fiber.Ctx) (models.Ticket, bool) {
	id, err := parseTicketID(c)
	if err != nil {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid ticket id",
		})
		return models.Ticket{}, false
	}

	ticket, err := getTicketByID(id)
	if err == sql.ErrNoRows {
		c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Ticket not found",
		})
		return models.Ticket{}, false
	}
	if err != nil {
		c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load ticket",
		})
		return models.Ticket{}, false
	}

	role, _ := c.Locals("role").(string)
	customerID, _ := c.Locals("customer_id").(int64)
	if err := helper.CanViewTicket(role, ticket.CustomerID, customerID); err != nil {
		c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": err.Error(),
		})
		return models.Ticket{}, false
	}

	return ticket, true
}

// GetMessages - message + typing snapshot for one ticket
func GetMessages(c *fiber.Ctx) error {
	ticket, ok := ticketForChat(c)
	if !ok {
		return nil
	}

	snapshot, err := loadSnapshot(ticket.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load messages",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"messages": snapshot.Messages,
		"typing":   snapshot.Typing,
	})
}

// SendMessage - append one message to a ticket's conversation.
//
// Accepts either a JSON body {"message": "..."} or a multipart form
// with an optional "message" field and at most one "attachment" file.
// Text plus attachment is a single message row, never two.
func SendMessage(c *fiber.Ctx) error {
	ticket, ok := ticketForChat(c)
	if !ok {
		return nil
	}

	role, _ := c.Locals("role").(string)

	var text string
	var attachmentPath, attachmentType *string

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		text = strings.TrimSpace(c.FormValue("message"))

		file, err := c.FormFile("attachment")
		if err == nil && file != nil {
			if file.Size > MaxAttachmentSize {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": fmt.Sprintf("Attachment size limit is %d MB", MaxAttachmentSize/(1024*1024)),
				})
			}

			if err := os.MkdirAll(UploadBasePath, 0755); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to prepare upload directory",
				})
			}

			storedName := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
			destinationPath := filepath.Join(UploadBasePath, storedName)

			src, err := file.Open()
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to open uploaded file",
				})
			}
			defer src.Close()

			dst, err := os.Create(destinationPath)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to store attachment",
				})
			}
			defer dst.Close()

			if _, err := io.Copy(dst, src); err != nil {
				os.Remove(destinationPath)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to store attachment",
				})
			}

			publicPath := "/public/uploads/" + storedName
			attachmentPath = &publicPath

			declaredType := file.Header.Get("Content-Type")
			if declaredType == "" {
				declaredType = "application/octet-stream"
			}
			attachmentType = &declaredType
		}
	} else {
		var req models.SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		text = strings.TrimSpace(req.Message)
	}

	if text == "" && attachmentPath == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message text or attachment is required",
		})
	}

	var messageValue interface{}
	if text != "" {
		messageValue = text
	}

	result, err := config.DB.Exec(
		"INSERT INTO messages (ticket_id, sender_role, message, attachment, attachment_type) VALUES (?, ?, ?, ?, ?)",
		ticket.ID, role, messageValue, attachmentPath, attachmentType,
	)
	if err != nil {
		// The row is the source of truth; an orphaned file must not
		// outlive a failed insert.
		if attachmentPath != nil {
			os.Remove(filepath.Join(UploadBasePath, filepath.Base(*attachmentPath)))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store message",
		})
	}

	id, _ := result.LastInsertId()

	var m models.Message
	err = config.DB.QueryRow(`
		SELECT id, ticket_id, sender_role, COALESCE(message, ''), attachment, attachment_type, created_at
		FROM messages WHERE id = ?
	`, id).Scan(
		&m.ID,
		&m.TicketID,
		&m.SenderRole,
		&m.Message,
		&m.Attachment,
		&m.AttachmentType,
		&m.CreatedAt,
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read stored message",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    m,
	})
}
