package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/events"
	"github.com/spec-kit/helpdesk-bot/internal/gateway"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
)

// fakeTicketRepo is an in-memory TicketRepository that mirrors the SQL
// semantics: per-workspace number assignment is atomic, channel ids
// are unique, claim writes re-check the current claimant.
type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	nextID  int

	createErr error
	// beforeClaim runs at the top of ClaimIfUnclaimed, inside a window
	// where a competing claim may land.
	beforeClaim func()
	// beforeUnclaim runs at the top of UnclaimIfClaimedBy, inside a
	// window where the claimant may change under the caller.
	beforeUnclaim func()
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	max := 0
	for _, t := range r.tickets {
		if t.ChannelID == ticket.ChannelID {
			return fmt.Errorf("duplicate channel id %s", ticket.ChannelID)
		}
		if t.WorkspaceID == ticket.WorkspaceID && t.CreatorID == ticket.CreatorID && t.Status == domain.TicketStatusOpen {
			return repository.ErrDuplicateOpenTicket
		}
		if t.WorkspaceID == ticket.WorkspaceID && t.Number > max {
			max = t.Number
		}
	}
	r.nextID++
	ticket.ID = fmt.Sprintf("ticket-%d", r.nextID)
	ticket.Number = max + 1
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTicketRepo) GetByChannel(_ context.Context, channelID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.ChannelID == channelID {
			copied := *t
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListOpenByCreator(_ context.Context, workspaceID, creatorID string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.WorkspaceID == workspaceID && t.CreatorID == creatorID && t.Status == domain.TicketStatusOpen {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) UpdateStatus(_ context.Context, id string, status domain.TicketStatus, actorID, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	t.ClosedByID = actorID
	t.CloseReason = reason
	if status == domain.TicketStatusOpen {
		t.ClosedAt = nil
	} else {
		now := time.Now()
		t.ClosedAt = &now
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTicketRepo) ClaimIfUnclaimed(_ context.Context, id, claimantID string) (bool, error) {
	if r.beforeClaim != nil {
		r.beforeClaim()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if t.ClaimantID != nil {
		return false, nil
	}
	t.ClaimantID = &claimantID
	t.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeTicketRepo) UnclaimIfClaimedBy(_ context.Context, id, claimantID string) (bool, error) {
	if r.beforeUnclaim != nil {
		r.beforeUnclaim()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if t.ClaimantID == nil || *t.ClaimantID != claimantID {
		return false, nil
	}
	t.ClaimantID = nil
	t.UpdatedAt = time.Now()
	return true, nil
}

// setClaimant overwrites the claimant directly, standing in for a
// write that lands from a concurrent request.
func (r *fakeTicketRepo) setClaimant(id string, claimantID *string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tickets[id]; ok {
		t.ClaimantID = claimantID
	}
}

// seed installs a ticket directly, bypassing number assignment.
func (r *fakeTicketRepo) seed(t domain.Ticket) *domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		r.nextID++
		t.ID = fmt.Sprintf("ticket-%d", r.nextID)
	}
	copied := t
	r.tickets[t.ID] = &copied
	return &copied
}

type fakeWorkspaceRepo struct {
	configs map[string]*domain.WorkspaceConfig
}

func newFakeWorkspaceRepo() *fakeWorkspaceRepo {
	return &fakeWorkspaceRepo{configs: make(map[string]*domain.WorkspaceConfig)}
}

func (r *fakeWorkspaceRepo) GetConfig(_ context.Context, workspaceID string) (*domain.WorkspaceConfig, error) {
	cfg, ok := r.configs[workspaceID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cfg, nil
}

func (r *fakeWorkspaceRepo) InvalidateConfig(context.Context, string) error { return nil }

type fakeCategoryRepo struct {
	categories map[string]*domain.TicketCategory
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: make(map[string]*domain.TicketCategory)}
}

func (r *fakeCategoryRepo) GetByID(_ context.Context, id string) (*domain.TicketCategory, error) {
	c, ok := r.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

func (r *fakeCategoryRepo) ListByWorkspace(_ context.Context, workspaceID string) ([]domain.TicketCategory, error) {
	var out []domain.TicketCategory
	for _, c := range r.categories {
		if c.WorkspaceID == workspaceID {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.TicketAudit
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *domain.TicketAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.TicketAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketAudit
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeProvisioner records channel operations and supports failure
// injection per method.
type fakeProvisioner struct {
	mu       sync.Mutex
	counter  int
	channels map[string]string
	renames  map[string]string
	deleted  []string

	createErr error
	renameErr error
	deleteErr error
	existsErr error
	visErrs   map[string]error

	visibility []visibilityCall
}

type visibilityCall struct {
	channelID string
	targetID  string
	rules     gateway.VisibilityRules
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{
		channels: make(map[string]string),
		renames:  make(map[string]string),
	}
}

func (p *fakeProvisioner) CreateChannel(_ context.Context, input gateway.CreateChannelInput) (*gateway.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.counter++
	id := fmt.Sprintf("chan-%d", p.counter)
	p.channels[id] = input.Name
	return &gateway.Channel{ID: id, Name: input.Name}, nil
}

func (p *fakeProvisioner) RenameChannel(_ context.Context, channelID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.renameErr != nil {
		return p.renameErr
	}
	p.renames[channelID] = name
	return nil
}

func (p *fakeProvisioner) SetVisibility(_ context.Context, channelID, targetID string, rules gateway.VisibilityRules) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.visErrs[targetID]; ok {
		return err
	}
	p.visibility = append(p.visibility, visibilityCall{channelID: channelID, targetID: targetID, rules: rules})
	return nil
}

func (p *fakeProvisioner) DeleteChannel(_ context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.channels, channelID)
	p.deleted = append(p.deleted, channelID)
	return nil
}

func (p *fakeProvisioner) ChannelExists(_ context.Context, channelID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.existsErr != nil {
		return false, p.existsErr
	}
	_, ok := p.channels[channelID]
	return ok, nil
}

// register marks a channel as existing without going through
// CreateChannel, for seeding pre-existing tickets.
func (p *fakeProvisioner) register(channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[channelID] = channelID
}

func (p *fakeProvisioner) deleteCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deleted)
}

type sentMessage struct {
	channelID string
	msg       gateway.Message
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []sentMessage
	dms   []sentMessage
	sends int

	sendErr error
	dmErr   error
}

func (n *fakeNotifier) Send(_ context.Context, channelID string, msg gateway.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends++
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, sentMessage{channelID: channelID, msg: msg})
	return nil
}

func (n *fakeNotifier) DirectMessage(_ context.Context, principalID string, msg gateway.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dmErr != nil {
		return n.dmErr
	}
	n.dms = append(n.dms, sentMessage{channelID: principalID, msg: msg})
	return nil
}

func (n *fakeNotifier) lastSent() *sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return nil
	}
	return &n.sent[len(n.sent)-1]
}

type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) byType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
