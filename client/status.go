package client

import "errors"

// Role of the acting principal. Every role-gated decision in this
// package goes through the predicates below instead of comparing
// strings inline.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Ticket lifecycle states. Any state may transition to any other, but
// only an admin may trigger the transition.
const (
	StatusOpen     = "Open"
	StatusOngoing  = "Ongoing"
	StatusResolved = "Resolved"
	StatusClosed   = "Closed"

	// StatusPending is the legacy label for Ongoing; the server
	// normalizes it on input.
	StatusPending = "Pending"
)

var (
	ErrNotAdmin     = errors.New("admin role required")
	ErrBadStatus    = errors.New("unknown ticket status")
	ErrNotDeletable = errors.New("only Resolved or Closed tickets may be deleted")
)

// CanManageTickets reports whether the role may change status, delete
// tickets, or list all tickets.
func (r Role) CanManageTickets() bool {
	return r == RoleAdmin
}

// TypingFlag returns the flag this role is allowed to set. A role can
// only ever signal its own flag.
func (r Role) TypingFlag() Role {
	return r
}

// NormalizeStatus maps a status string to its canonical form, folding
// the legacy Pending label into Ongoing.
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

// CanDeleteStatus is the client half of the deletion gate: it must be
// checked before any delete request leaves the process. The server
// enforces the same rule independently.
func CanDeleteStatus(status string) bool {
	normalized, ok := NormalizeStatus(status)
	if !ok {
		return false
	}
	return normalized == StatusResolved || normalized == StatusClosed
}
