package helper

import (
	"errors"

	"backend-support/internal/models"
)

var (
	ErrNotAdmin        = errors.New("admin role required")
	ErrWrongTypingRole = errors.New("cannot set another role's typing flag")
	ErrTicketNotOwned  = errors.New("ticket belongs to another account")
	ErrNotDeletable    = errors.New("only Resolved or Closed tickets may be deleted")
)

// Every role-gated decision in the handlers goes through this file, so
// the rules live in exactly one place.

func IsAdmin(role string) bool {
	return role == models.RoleAdmin
}

// CanManageTickets reports whether the role may change ticket status,
// list all tickets, or delete tickets.
func CanManageTickets(role string) error {
	if !IsAdmin(role) {
		return ErrNotAdmin
	}
	return nil
}

// CanSetTypingFlag checks that the caller only touches its own role's
// flag: a user cannot raise the admin flag and vice versa.
func CanSetTypingFlag(callerRole, flagRole string) error {
	if callerRole != flagRole {
		return ErrWrongTypingRole
	}
	return nil
}

// CanViewTicket allows the owning customer and any admin.
func CanViewTicket(role string, ownerID, customerID int64) error {
	if IsAdmin(role) || ownerID == customerID {
		return nil
	}
	return ErrTicketNotOwned
}

// CanDeleteTicket combines the role gate with the status gate.
func CanDeleteTicket(role, status string) error {
	if err := CanManageTickets(role); err != nil {
		return err
	}
	if !models.IsDeletableStatus(status) {
		return ErrNotDeletable
	}
	return nil
}
