package domain

import "testing"

func TestChannelName_ZeroPadsNumber(t *testing.T) {
	cases := []struct {
		number int
		prefix string
		want   string
	}{
		{1, "ticket", "ticket-0001"},
		{42, "support", "support-0042"},
		{12345, "ticket", "ticket-12345"},
		{7, "", "ticket-0007"},
	}
	for _, tc := range cases {
		ticket := &Ticket{Number: tc.number}
		if got := ticket.ChannelName(tc.prefix); got != tc.want {
			t.Errorf("ChannelName(%q) with number %d = %q, want %q", tc.prefix, tc.number, got, tc.want)
		}
	}
}

func TestTicketStatus_Valid(t *testing.T) {
	for _, s := range []TicketStatus{TicketStatusOpen, TicketStatusClosed, TicketStatusArchived} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if TicketStatus("DELETED").Valid() {
		t.Error("unknown status must be invalid")
	}
}

func TestIsClaimedBy(t *testing.T) {
	claimant := "sam"
	ticket := &Ticket{ClaimantID: &claimant}
	if !ticket.IsClaimedBy("sam") {
		t.Error("expected claim by sam")
	}
	if ticket.IsClaimedBy("tess") {
		t.Error("unexpected claim by tess")
	}
	if (&Ticket{}).IsClaimedBy("sam") {
		t.Error("unclaimed ticket must not report a claimant")
	}
}

func TestCategoryByID(t *testing.T) {
	cfg := &WorkspaceConfig{Categories: []TicketCategory{
		{ID: "cat-a", Enabled: true},
		{ID: "cat-b", Enabled: false},
	}}
	if got := cfg.CategoryByID("cat-b"); got == nil || got.ID != "cat-b" {
		t.Errorf("expected cat-b even when disabled, got %v", got)
	}
	if cfg.CategoryByID("cat-z") != nil {
		t.Error("expected nil for unknown category")
	}
}

func TestPrincipalCapabilities(t *testing.T) {
	admin := Principal{ID: "root", Admin: true}
	if !admin.CanManageTickets() {
		t.Error("admins manage tickets")
	}
	staff := Principal{ID: "sam", Staff: true, Roles: []string{"role-support"}}
	if staff.CanManageTickets() {
		t.Error("staff without admin must not manage tickets")
	}
	if !staff.HasRole("role-support") || staff.HasRole("role-other") {
		t.Error("role membership check failed")
	}
}
