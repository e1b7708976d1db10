package client

import "context"

// StatusController performs the admin-only ticket lifecycle operations
// with list-and-detail consistency. There is no optimistic update: the
// displayed status changes only after the server confirms and the
// authoritative re-fetch lands.
type StatusController struct {
	client *Client
	role   Role
}

func NewStatusController(c *Client, role Role) *StatusController {
	return &StatusController{client: c, role: role}
}

// CanManage reports whether the controller's principal may be offered
// the status/delete controls at all.
func (s *StatusController) CanManage() bool {
	return s.role.CanManageTickets()
}

// UpdateStatus sets a new status and then re-fetches both the ticket
// detail and the full ticket list, so any view observing aggregate
// counts stays consistent with the detail view.
func (s *StatusController) UpdateStatus(ctx context.Context, ticketID int64, status string) (*Ticket, []Ticket, error) {
	if !s.role.CanManageTickets() {
		return nil, nil, ErrNotAdmin
	}
	normalized, ok := NormalizeStatus(status)
	if !ok {
		return nil, nil, ErrBadStatus
	}

	if _, err := s.client.UpdateStatus(ctx, ticketID, normalized); err != nil {
		return nil, nil, err
	}

	detail, err := s.client.Ticket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.client.AdminTickets(ctx)
	if err != nil {
		return detail, nil, err
	}
	return detail, list, nil
}

// Delete removes a ticket. The status gate runs before any request is
// sent: a ticket that is not Resolved or Closed is rejected locally,
// and the server enforces the same rule independently.
func (s *StatusController) Delete(ctx context.Context, ticketID int64, currentStatus string) error {
	if !s.role.CanManageTickets() {
		return ErrNotAdmin
	}
	if !CanDeleteStatus(currentStatus) {
		return ErrNotDeletable
	}
	return s.client.DeleteTicket(ctx, ticketID)
}
