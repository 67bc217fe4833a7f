package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusClosed   TicketStatus = "CLOSED"
	TicketStatusArchived TicketStatus = "ARCHIVED"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusClosed, TicketStatusArchived:
		return true
	}
	return false
}

// Ticket is the aggregate for one support conversation. The record is
// never physically removed: deletion closes the ticket and tears down
// the channel, leaving the row behind as an audit trail.
type Ticket struct {
	ID          string
	WorkspaceID string
	Number      int
	CreatorID   string
	ChannelID   string
	CategoryID  string
	Status      TicketStatus
	ClaimantID  *string
	CloseReason *string
	ClosedByID  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// ChannelName encodes the assigned ticket number into the channel name,
// zero-padded for stable lexical ordering.
func (t *Ticket) ChannelName(prefix string) string {
	if prefix == "" {
		prefix = "ticket"
	}
	return fmt.Sprintf("%s-%04d", prefix, t.Number)
}

// IsClaimedBy reports whether the given principal currently owns the ticket.
func (t *Ticket) IsClaimedBy(principalID string) bool {
	return t.ClaimantID != nil && *t.ClaimantID == principalID
}
