package events

import (
	"time"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketClaimed       EventType = "ticket_claimed"
	EventTicketUnclaimed     EventType = "ticket_unclaimed"
	EventTicketDeleted       EventType = "ticket_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	TicketID    string    `json:"ticket_id"`
	WorkspaceID string    `json:"workspace_id"`
	ActorID     string    `json:"actor_id"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number     int    `json:"number"`
	CreatorID  string `json:"creator_id"`
	ChannelID  string `json:"channel_id"`
	CategoryID string `json:"category_id"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	ClaimantID string `json:"claimant_id"`
}

// TicketUnclaimedPayload payload.
type TicketUnclaimedPayload struct {
	ReleasedByID string `json:"released_by_id"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	ChannelID      string `json:"channel_id"`
	ChannelRemoved bool   `json:"channel_removed"`
}
