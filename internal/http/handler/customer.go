package handler

import (
	"database/sql"
	"strings"

	"backend-support/internal/config"
	"backend-support/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// GetAllCustomers - list customer accounts (admin only)
func GetAllCustomers(c *fiber.Ctx) error {
	query := `
		SELECT id, account_name, account_number, cca_number, role, created_at, updated_at
		FROM customers
		WHERE 1=1
	`
	args := []interface{}{}

	if role := c.Query("role"); role != "" {
		query += " AND role = ?"
		args = append(args, role)
	}

	if search := c.Query("search"); search != "" {
		search = "%" + strings.TrimSpace(search) + "%"
		query += " AND (account_name LIKE ? OR account_number LIKE ?)"
		args = append(args, search, search)
	}

	query += " ORDER BY created_at DESC"

	rows, err := config.DB.Query(query, args...)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load customers",
		})
	}
	defer rows.Close()

	customers := []models.CustomerResponse{}
	for rows.Next() {
		var customer models.Customer
		err := rows.Scan(
			&customer.ID,
			&customer.AccountName,
			&customer.AccountNumber,
			&customer.CCANumber,
			&customer.Role,
			&customer.CreatedAt,
			&customer.UpdatedAt,
		)
		if err != nil {
			continue
		}
		customers = append(customers, models.ToCustomerResponse(customer))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    customers,
	})
}

// CreateCustomer - create a customer account with an explicit role
// (admin only; registration is the self-service path)
func CreateCustomer(c *fiber.Ctx) error {
	var req struct {
		AccountName   string `json:"accountName"`
		AccountNumber string `json:"accountNumber"`
		CCANumber     string `json:"ccaNumber"`
		Role          string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.AccountName = strings.TrimSpace(req.AccountName)
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	req.CCANumber = strings.TrimSpace(req.CCANumber)
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	if req.AccountName == "" || req.AccountNumber == "" || req.CCANumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Account name, account number and CCA number are required",
		})
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAdmin {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown role",
		})
	}

	var count int
	if err := config.DB.QueryRow(
		"SELECT COUNT(*) FROM customers WHERE account_number = ?", req.AccountNumber,
	).Scan(&count); err != nil {
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
		req.AccountName, req.AccountNumber, string(ccaHash), req.Role,
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create customer",
		})
	}

	id, _ := result.LastInsertId()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": models.CustomerResponse{
			ID:            id,
			AccountName:   req.AccountName,
			AccountNumber: req.AccountNumber,
			Role:          req.Role,
		},
	})
}

// UpdateCustomer - update account fields (admin only)
func UpdateCustomer(c *fiber.Ctx) error {
	id := c.Params("id")

	var req struct {
		AccountName *string `json:"accountName"`
		CCANumber   *string `json:"ccaNumber"`
		Role        *string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var customer models.Customer
	err := config.DB.QueryRow(
		"SELECT id, account_name, account_number, cca_number, role, created_at, updated_at FROM customers WHERE id = ?", id,
	).Scan(
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
			"error": "Customer not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if req.AccountName != nil && strings.TrimSpace(*req.AccountName) != "" {
		customer.AccountName = strings.TrimSpace(*req.AccountName)
	}
	if req.Role != nil {
		if *req.Role != models.RoleUser && *req.Role != models.RoleAdmin {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown role",
			})
		}
		customer.Role = *req.Role
	}
	if req.CCANumber != nil && strings.TrimSpace(*req.CCANumber) != "" {
		ccaHash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(*req.CCANumber)), bcrypt.DefaultCost)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to secure account credentials",
			})
		}
		customer.CCANumber = string(ccaHash)
	}

	_, err = config.DB.Exec(
		"UPDATE customers SET account_name = ?, cca_number = ?, role = ? WHERE id = ?",
		customer.AccountName, customer.CCANumber, customer.Role, id,
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update customer",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    models.ToCustomerResponse(customer),
	})
}

// DeleteCustomer - remove a customer account (admin only). Tickets and
// messages stay behind for audit; they reference the customer id only.
func DeleteCustomer(c *fiber.Ctx) error {
	id := c.Params("id")

	result, err := config.DB.Exec("DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete customer",
		})
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Customer not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Customer deleted",
	})
}
