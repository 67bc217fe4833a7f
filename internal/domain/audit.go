package domain

import "time"

// AuditChangeType enumerates recorded ticket changes.
type AuditChangeType string

const (
	AuditChangeStatus   AuditChangeType = "STATUS"
	AuditChangeClaimant AuditChangeType = "CLAIMANT"
	AuditChangeCreated  AuditChangeType = "CREATED"
)

// TicketAudit records one mutation of a ticket for the audit trail.
type TicketAudit struct {
	ID         string
	TicketID   string
	ActorID    *string
	ChangeType AuditChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
