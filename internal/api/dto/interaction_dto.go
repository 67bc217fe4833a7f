package dto

import "time"

// InteractionType discriminates the inbound interaction variant. Each
// variant dispatches to exactly one core entry point.
type InteractionType string

const (
	InteractionTypeCommand InteractionType = "command"
	InteractionTypeButton  InteractionType = "button"
	InteractionTypeMenu    InteractionType = "menu"
)

// Interaction is the tagged payload the chat gateway posts for every
// user action: a slash command, a button click, or a menu selection.
type Interaction struct {
	Type        InteractionType `json:"type"`
	ActionID    string          `json:"action_id"`
	WorkspaceID string          `json:"workspace_id"`
	ChannelID   string          `json:"channel_id"`
	// Value carries the menu selection or command argument, e.g. the
	// chosen category id for ticket creation.
	Value string `json:"value,omitempty"`
	// Note is an optional contextual note attached by upstream flows.
	Note string `json:"note,omitempty"`
}

// TicketResponse describes a ticket in interaction results.
type TicketResponse struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Number      int        `json:"number"`
	ChannelID   string     `json:"channel_id"`
	CategoryID  string     `json:"category_id"`
	Status      string     `json:"status"`
	ClaimantID  *string    `json:"claimant_id,omitempty"`
	CloseReason *string    `json:"close_reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// InteractionResult is the generic success envelope for an interaction.
type InteractionResult struct {
	Action   string          `json:"action"`
	Ticket   *TicketResponse `json:"ticket,omitempty"`
	Degraded bool            `json:"degraded,omitempty"`
	// PendingConfirmationID is set when the action opened a
	// confirmation gate and awaits a follow-up click.
	PendingConfirmationID string `json:"pending_confirmation_id,omitempty"`
	Ignored               bool   `json:"ignored,omitempty"`
}
