package handler

import (
	"database/sql"
	"strings"

	"backend-support/internal/config"
	"backend-support/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// Register - create a new customer account (role "user")
func Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.AccountName = strings.TrimSpace(req.AccountName)
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	req.CCANumber = strings.TrimSpace(req.CCANumber)

	if req.AccountName == "" || req.AccountNumber == "" || req.CCANumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Account name, account number and CCA number are required",
		})
	}

	var count int
	err := config.DB.QueryRow(
		"SELECT COUNT(*) FROM customers WHERE account_number = ?", req.AccountNumber,
	).Scan(&count)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}
	if count > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Account number already registered",
		})
	}

	ccaHash, err := bcrypt.GenerateFromPassword([]byte(req.CCANumber), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to secure account credentials",
		})
	}

	result, err := config.DB.Exec(
		"INSERT INTO customers (account_name, account_number, cca_number, role) VALUES (?, ?, ?, ?)",
		req.AccountName, req.AccountNumber, string(ccaHash), models.RoleUser,
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create account",
		})
	}

	id, _ := result.LastInsertId()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Account registered. You can now log in.",
		"user": models.CustomerResponse{
			ID:            id,
			AccountName:   req.AccountName,
			AccountNumber: req.AccountNumber,
			Role:          models.RoleUser,
		},
	})
}

// Login - authenticate with account name + account id.
// The account id may be the account number (stored plain) or the CCA
// number (stored as a bcrypt hash).
func Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.AccountName = strings.TrimSpace(req.AccountName)
	req.AccountID = strings.TrimSpace(req.AccountID)

	if req.AccountName == "" || req.AccountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Account name and account number / CCA number are required",
		})
	}

	var customer models.Customer
	query := `SELECT id, account_name, account_number, cca_number, role, created_at, updated_at
	          FROM customers WHERE account_name = ?`
	err := config.DB.QueryRow(query, req.AccountName).Scan(
		&customer.ID,
		&customer.AccountName,
		&customer.AccountNumber,
		&customer.CCANumber,
		&customer.Role,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Account name or account number is incorrect",
		})
	}

	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	matched := req.AccountID == customer.AccountNumber
	if !matched {
		matched = bcrypt.CompareHashAndPassword([]byte(customer.CCANumber), []byte(req.AccountID)) == nil
	}
	if !matched {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Account name or account number is incorrect",
		})
	}

	token, err := config.GenerateToken(customer.ID, customer.AccountName, customer.Role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.JSON(models.LoginResponse{
		Token:   token,
		User:    models.ToCustomerResponse(customer),
		Message: "Welcome back, " + customer.AccountName,
	})
}

// Me - current account derived from the JWT claims
func Me(c *fiber.Ctx) error {
	customerID, _ := c.Locals("customer_id").(int64)

	var customer models.Customer
	query := `SELECT id, account_name, account_number, cca_number, role, created_at, updated_at
	          FROM customers WHERE id = ?`
	err := config.DB.QueryRow(query, customerID).Scan(
		&customer.ID,
		&customer.AccountName,
		&customer.AccountNumber,
		&customer.CCANumber,
		&customer.Role,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    models.ToCustomerResponse(customer),
	})
}
