package domain

// Principal identifies the actor behind an interaction. Identity and
// role membership come from the chat platform; the bot never stores
// credentials.
type Principal struct {
	ID          string
	DisplayName string
	Roles       []string
	Staff       bool
	Admin       bool
}

// HasRole reports membership in the given platform role.
func (p *Principal) HasRole(roleID string) bool {
	for _, r := range p.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// CanManageTickets reports whether the principal holds the
// administrative capability required for destructive actions.
func (p *Principal) CanManageTickets() bool {
	return p.Admin
}
