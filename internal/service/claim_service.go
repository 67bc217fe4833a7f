package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/clock"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/events"
	"github.com/spec-kit/helpdesk-bot/internal/gateway"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// ClaimService arbitrates ticket ownership. Toggle is the single entry
// point: it claims, unclaims, or rejects depending on the current
// claimant, and the claim write re-checks the claimant atomically so
// two staff members cannot race past each other.
type ClaimService struct {
	tickets    repository.TicketRepository
	categories repository.CategoryRepository
	audit      repository.TicketAuditRepository
	notifier   gateway.Notifier
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// ClaimDependencies bundles collaborators for the arbiter.
type ClaimDependencies struct {
	TicketRepo   repository.TicketRepository
	CategoryRepo repository.CategoryRepository
	AuditRepo    repository.TicketAuditRepository
	Notifier     gateway.Notifier
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
}

// NewClaimService constructs the service.
func NewClaimService(deps ClaimDependencies) *ClaimService {
	c := deps.Clock
	if c == nil {
		c = clock.New()
	}
	return &ClaimService{
		tickets:    deps.TicketRepo,
		categories: deps.CategoryRepo,
		audit:      deps.AuditRepo,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		clock:      c,
		logger:     deps.Logger,
	}
}

// ClaimResult reports the arbitration outcome.
type ClaimResult struct {
	Ticket *domain.Ticket
	// Claimed is true after a claim, false after an unclaim.
	Claimed bool
}

// Toggle claims an unclaimed ticket, releases the actor's own claim,
// or fails with AlreadyClaimed when someone else owns the ticket.
func (s *ClaimService) Toggle(ctx context.Context, ticketID string, actor domain.Principal) (*ClaimResult, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusOpen {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(ticket.Status))
	}

	if ticket.ClaimantID != nil {
		if *ticket.ClaimantID != actor.ID {
			return nil, apperrors.NewAlreadyClaimed(*ticket.ClaimantID)
		}
		return s.unclaim(ctx, ticket, actor)
	}
	return s.claim(ctx, ticket, actor)
}

func (s *ClaimService) claim(ctx context.Context, ticket *domain.Ticket, actor domain.Principal) (*ClaimResult, error) {
	if err := s.checkClaimPermission(ctx, ticket, actor); err != nil {
		return nil, err
	}

	// Re-check the claimant at write time: another claim may have
	// landed between our read and this write.
	won, err := s.tickets.ClaimIfUnclaimed(ctx, ticket.ID, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !won {
		current, err := s.getTicket(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		claimant := "someone else"
		if current.ClaimantID != nil {
			claimant = *current.ClaimantID
		}
		return nil, apperrors.NewAlreadyClaimed(claimant)
	}

	s.recordClaimChange(ctx, actor.ID, ticket.ID, ticket.ClaimantID, &actor.ID)
	s.publish(ctx, events.EventTicketClaimed, ticket, actor.ID, events.TicketClaimedPayload{ClaimantID: actor.ID})
	s.notifyBestEffort(ctx, ticket.ChannelID, claimedMessage(actor))

	updated, err := s.getTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &ClaimResult{Ticket: updated, Claimed: true}, nil
}

func (s *ClaimService) unclaim(ctx context.Context, ticket *domain.Ticket, actor domain.Principal) (*ClaimResult, error) {
	// Clear the claimant only while it is still the actor. A rival claim
	// landing between the read and this write must not be wiped out.
	released, err := s.tickets.UnclaimIfClaimedBy(ctx, ticket.ID, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !released {
		current, err := s.getTicket(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		if current.ClaimantID == nil {
			// Already released elsewhere; nothing left to undo.
			return &ClaimResult{Ticket: current, Claimed: false}, nil
		}
		return nil, apperrors.NewAlreadyClaimed(*current.ClaimantID)
	}

	s.recordClaimChange(ctx, actor.ID, ticket.ID, ticket.ClaimantID, nil)
	s.publish(ctx, events.EventTicketUnclaimed, ticket, actor.ID, events.TicketUnclaimedPayload{ReleasedByID: actor.ID})
	s.notifyBestEffort(ctx, ticket.ChannelID, unclaimedMessage(actor))

	updated, err := s.getTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &ClaimResult{Ticket: updated, Claimed: false}, nil
}

// checkClaimPermission requires the administrative capability or
// membership in the category's support role.
func (s *ClaimService) checkClaimPermission(ctx context.Context, ticket *domain.Ticket, actor domain.Principal) error {
	if actor.CanManageTickets() {
		return nil
	}
	category, err := s.categories.GetByID(ctx, ticket.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewPermissionDenied("only support staff can claim tickets")
		}
		return apperrors.MapError(err)
	}
	if category.SupportRoleID != nil && actor.HasRole(*category.SupportRoleID) {
		return nil
	}
	return apperrors.NewPermissionDenied("only support staff can claim tickets")
}

func (s *ClaimService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *ClaimService) recordClaimChange(ctx context.Context, actorID, ticketID string, oldClaimant, newClaimant *string) {
	if s.audit == nil {
		return
	}
	entry := &domain.TicketAudit{
		TicketID:   ticketID,
		ActorID:    &actorID,
		ChangeType: domain.AuditChangeClaimant,
		OldValue:   map[string]any{"claimant_id": strPtrValue(oldClaimant)},
		NewValue:   map[string]any{"claimant_id": strPtrValue(newClaimant)},
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func strPtrValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (s *ClaimService) publish(ctx context.Context, eventType events.EventType, ticket *domain.Ticket, actorID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		TicketID:    ticket.ID,
		WorkspaceID: ticket.WorkspaceID,
		ActorID:     actorID,
		Timestamp:   s.clock.Now(),
		Payload:     payload,
	})
}

func (s *ClaimService) notifyBestEffort(ctx context.Context, channelID string, msg gateway.Message) {
	if err := s.notifier.Send(ctx, channelID, msg); err != nil {
		s.logger.Warn("channel notification failed",
			zap.String("channel_id", channelID),
			zap.Error(err))
	}
}
