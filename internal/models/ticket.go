package models

import "time"

const (
	StatusOpen     = "Open"
	StatusOngoing  = "Ongoing"
	StatusResolved = "Resolved"
	StatusClosed   = "Closed"

	// StatusPending is an input alias for Ongoing kept for backwards
	// compatibility with older clients.
	StatusPending = "Pending"
)

var TicketCategories = []string{
	"Connection Issue",
	"Billing Concern",
	"Technical Problem",
}

/*
|--------------------------------------------------------------------------
| DATABASE MODEL
|--------------------------------------------------------------------------
*/
type Ticket struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Subject    string    `json:"subject"`
	Category   string    `json:"category"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/
type CreateTicketRequest struct {
	Subject  string `json:"subject"`
	Category string `json:"category"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

/*
|--------------------------------------------------------------------------
| STATUS RULES
|--------------------------------------------------------------------------
| Any status may transition to any other, but only through an admin.
| Deletion is stricter: only Resolved or Closed tickets may go.
*/

// NormalizeStatus maps an incoming status string to its canonical form.
// Returns false for unknown statuses.
func NormalizeStatus(s string) (string, bool) {
	switch s {
	case StatusOpen, StatusOngoing, StatusResolved, StatusClosed:
		return s, true
	case StatusPending:
		return StatusOngoing, true
	default:
		return "", false
	}
}

// IsDeletableStatus reports whether a ticket in the given status may be
// deleted. Enforced both client-side and server-side.
func IsDeletableStatus(s string) bool {
	return s == StatusResolved || s == StatusClosed
}

func IsValidCategory(c string) bool {
	for _, cat := range TicketCategories {
		if c == cat {
			return true
		}
	}
	return false
}
