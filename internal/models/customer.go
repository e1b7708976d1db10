package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

/*
|--------------------------------------------------------------------------
| DATABASE MODEL (INTERNAL)
|--------------------------------------------------------------------------
| Used for DB queries. CCANumber holds the bcrypt hash, never the plain
| CCA number.
*/
type Customer struct {
	ID            int64
	AccountName   string
	AccountNumber string
	CCANumber     string
	Role          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/
type RegisterRequest struct {
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	CCANumber     string `json:"ccaNumber"`
}

type LoginRequest struct {
	AccountName string `json:"accountName"`
	// AccountID is either the account number or the CCA number.
	AccountID string `json:"accountId"`
}

/*
|--------------------------------------------------------------------------
| RESPONSE DTO
|--------------------------------------------------------------------------
*/
type CustomerResponse struct {
	ID            int64  `json:"id"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	Role          string `json:"role"`
}

type LoginResponse struct {
	Token   string           `json:"token"`
	User    CustomerResponse `json:"user"`
	Message string           `json:"message"`
}

/*
|--------------------------------------------------------------------------
| MAPPER
|--------------------------------------------------------------------------
| Convert Customer (DB) -> CustomerResponse (API)
*/
func ToCustomerResponse(c Customer) CustomerResponse {
	return CustomerResponse{
		ID:            c.ID,
		AccountName:   c.AccountName,
		AccountNumber: c.AccountNumber,
		Role:          c.Role,
	}
}
