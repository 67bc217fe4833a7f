package domain

import "time"

// TicketCategory groups tickets and controls where their channels are
// provisioned. Disabled categories are excluded from ticket creation
// but stay resolvable for display on existing tickets.
type TicketCategory struct {
	ID              string
	WorkspaceID     string
	Name            string
	Description     string
	Emoji           string
	SupportRoleID   *string
	Enabled         bool
	Position        int
	WelcomeTemplate string
	ParentGroupID   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
