package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/clock"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/gateway"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// ConfirmationGate runs the bounded confirm/cancel flow guarding
// deletion. Each pending confirmation is scoped to the requesting
// principal, accepts only its own confirm/cancel action ids, and
// resolves exactly once: by confirm, by cancel, or by deadline expiry.
type ConfirmationGate struct {
	mu      sync.Mutex
	pending map[string]*pendingConfirmation

	tickets  *TicketService
	notifier gateway.Notifier
	clock    clock.Clock
	window   time.Duration
	logger   *zap.Logger
}

type pendingConfirmation struct {
	id          string
	principalID string
	ticketID    string
	channelID   string
	timer       clock.Timer
	resolved    bool
}

// NewConfirmationGate constructs the gate.
func NewConfirmationGate(tickets *TicketService, notifier gateway.Notifier, c clock.Clock, window time.Duration, logger *zap.Logger) *ConfirmationGate {
	if c == nil {
		c = clock.New()
	}
	if window <= 0 {
		window = 30 * time.Second
	}
	return &ConfirmationGate{
		pending:  make(map[string]*pendingConfirmation),
		tickets:  tickets,
		notifier: notifier,
		clock:    c,
		window:   window,
		logger:   logger,
	}
}

// PendingConfirmation is the handle returned to the routing layer.
type PendingConfirmation struct {
	ID        string
	TicketID  string
	ExpiresAt time.Time
}

// RequestDelete opens the gate for a deletion: it checks the actor's
// permission up front, renders the confirm/cancel prompt into the
// ticket channel, and arms the expiry deadline.
func (g *ConfirmationGate) RequestDelete(ctx context.Context, ticketID string, actor domain.Principal) (*PendingConfirmation, error) {
	if !actor.CanManageTickets() {
		return nil, apperrors.NewPermissionDenied("deleting tickets requires ticket management permission")
	}
	ticket, err := g.tickets.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	entry := &pendingConfirmation{
		id:          uuid.NewString(),
		principalID: actor.ID,
		ticketID:    ticket.ID,
		channelID:   ticket.ChannelID,
	}

	prompt := deleteConfirmPrompt(ticket, entry.id, g.window)
	if err := g.notifier.Send(ctx, ticket.ChannelID, prompt); err != nil {
		// Without a visible prompt the user cannot answer; abort.
		return nil, apperrors.NewDeliveryDegraded(err)
	}

	g.mu.Lock()
	g.pending[entry.id] = entry
	entry.timer = g.clock.AfterFunc(g.window, func() { g.expire(entry.id) })
	g.mu.Unlock()

	return &PendingConfirmation{
		ID:        entry.id,
		TicketID:  ticket.ID,
		ExpiresAt: g.clock.Now().Add(g.window),
	}, nil
}

// ConfirmationOutcome reports how a Resolve call ended. Ignored is set
// for duplicate or stale deliveries, which must not re-execute the
// delete.
type ConfirmationOutcome struct {
	Ignored   bool
	Confirmed bool
	Ticket    *domain.Ticket
}

// Resolve handles a confirm or cancel click. Only the requesting
// principal may resolve; duplicate deliveries after resolution are
// ignored.
func (g *ConfirmationGate) Resolve(ctx context.Context, actionID string, actor domain.Principal) (*ConfirmationOutcome, error) {
	confirmationID, confirmed, ok := parseConfirmationAction(actionID)
	if !ok {
		return nil, apperrors.NewValidationError("unknown confirmation action", map[string]any{"action_id": actionID})
	}

	g.mu.Lock()
	entry, exists := g.pending[confirmationID]
	if !exists || entry.resolved {
		g.mu.Unlock()
		return &ConfirmationOutcome{Ignored: true}, nil
	}
	if entry.principalID != actor.ID {
		g.mu.Unlock()
		return nil, apperrors.NewPermissionDenied("this confirmation belongs to another user")
	}
	entry.resolved = true
	delete(g.pending, confirmationID)
	if entry.timer != nil {
		entry.timer.Stop()
	}
	g.mu.Unlock()

	if !confirmed {
		if err := g.notifier.Send(ctx, entry.channelID, deleteCancelledMessage()); err != nil {
			g.logger.Warn("cancel notice failed", zap.String("channel_id", entry.channelID), zap.Error(err))
		}
		return &ConfirmationOutcome{Confirmed: false}, nil
	}

	ticket, err := g.tickets.Delete(ctx, entry.ticketID, actor)
	if err != nil {
		return nil, err
	}
	return &ConfirmationOutcome{Confirmed: true, Ticket: ticket}, nil
}

// expire fires when the window elapses without an answer. It reports
// the timeout into the channel; the entry is gone afterwards, so a
// late click resolves to Ignored.
func (g *ConfirmationGate) expire(confirmationID string) {
	g.mu.Lock()
	entry, exists := g.pending[confirmationID]
	if !exists || entry.resolved {
		g.mu.Unlock()
		return
	}
	entry.resolved = true
	delete(g.pending, confirmationID)
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.notifier.Send(ctx, entry.channelID, deleteExpiredMessage()); err != nil {
		g.logger.Warn("timeout notice failed", zap.String("channel_id", entry.channelID), zap.Error(err))
	}
	g.logger.Info("delete confirmation expired",
		zap.String("ticket_id", entry.ticketID),
		zap.String("principal_id", entry.principalID))
}

// PendingCount reports open confirmations, for health introspection.
func (g *ConfirmationGate) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func parseConfirmationAction(actionID string) (confirmationID string, confirmed, ok bool) {
	if id, found := strings.CutPrefix(actionID, ActionDeleteConfirmPrefix); found {
		return id, true, true
	}
	if id, found := strings.CutPrefix(actionID, ActionDeleteCancelPrefix); found {
		return id, false, true
	}
	return "", false, false
}
