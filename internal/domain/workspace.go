package domain

import "time"

// WorkspaceConfig holds per-workspace ticket system settings. The core
// only reads it as a validation gate; administrative flows own writes.
type WorkspaceConfig struct {
	WorkspaceID    string
	TicketsEnabled bool
	Categories     []TicketCategory
	UpdatedAt      time.Time
}

// CategoryByID resolves a category from the workspace's list, enabled
// or not.
func (w *WorkspaceConfig) CategoryByID(id string) *TicketCategory {
	for i := range w.Categories {
		if w.Categories[i].ID == id {
			return &w.Categories[i]
		}
	}
	return nil
}
