package service

import (
	"context"
	"errors"
	"time"

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

// Interaction action identifiers routed to the ticket services.
const (
	ActionTicketCreate  = "ticket_create"
	ActionTicketClose   = "ticket_close"
	ActionTicketReopen  = "ticket_reopen"
	ActionTicketArchive = "ticket_archive"
	ActionTicketClaim   = "ticket_claim"
	ActionTicketDelete  = "ticket_delete"

	// Confirmation controls carry the pending confirmation id after the
	// colon, e.g. "ticket_delete_confirm:<uuid>".
	ActionDeleteConfirmPrefix = "ticket_delete_confirm:"
	ActionDeleteCancelPrefix  = "ticket_delete_cancel:"
)

const reasonArchived = "archived"

// TicketService owns the ticket lifecycle state machine: the guarded
// transitions between OPEN, CLOSED and ARCHIVED, and the teardown
// orchestration for deletion.
type TicketService struct {
	tickets     repository.TicketRepository
	categories  repository.CategoryRepository
	audit       repository.TicketAuditRepository
	provisioner gateway.ChannelProvisioner
	notifier    gateway.Notifier
	dispatcher  events.Dispatcher
	clock       clock.Clock
	logger      *zap.Logger
	deleteDelay time.Duration
}

// TicketDependencies bundles collaborators for the lifecycle service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CategoryRepo repository.CategoryRepository
	AuditRepo    repository.TicketAuditRepository
	Provisioner  gateway.ChannelProvisioner
	Notifier     gateway.Notifier
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
	DeleteDelay  time.Duration
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	c := deps.Clock
	if c == nil {
		c = clock.New()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		categories:  deps.CategoryRepo,
		audit:       deps.AuditRepo,
		provisioner: deps.Provisioner,
		notifier:    deps.Notifier,
		dispatcher:  deps.Dispatcher,
		clock:       c,
		logger:      deps.Logger,
		deleteDelay: deps.DeleteDelay,
	}
}

// Close transitions an OPEN ticket to CLOSED. Allowed for the creator,
// the current claimant, and staff.
func (s *TicketService) Close(ctx context.Context, ticketID string, actor domain.Principal, reason string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canClose(ticket, actor) {
		return nil, apperrors.NewPermissionDenied("you cannot close this ticket")
	}
	if ticket.Status != domain.TicketStatusOpen {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusClosed))
	}

	if err := s.transition(ctx, ticket, domain.TicketStatusClosed, actor.ID, reason); err != nil {
		return nil, err
	}

	// Closed tickets stay visible but the creator can no longer post.
	s.setVisibilityBestEffort(ctx, ticket.ChannelID, ticket.CreatorID, gateway.VisibilityRules{View: true, Post: false})

	s.notifyBestEffort(ctx, ticket.ChannelID, closedMessage(actor, reason))
	return s.getTicket(ctx, ticketID)
}

// Reopen returns a non-OPEN ticket to OPEN and clears its close
// metadata. Archived tickets may be reopened: the only guard is that
// the ticket is not already open.
func (s *TicketService) Reopen(ctx context.Context, ticketID string, actor domain.Principal) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canClose(ticket, actor) {
		return nil, apperrors.NewPermissionDenied("you cannot reopen this ticket")
	}
	if ticket.Status == domain.TicketStatusOpen {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusOpen))
	}

	if err := s.transition(ctx, ticket, domain.TicketStatusOpen, "", ""); err != nil {
		return nil, err
	}

	// Re-establish write access for the creator and the category's
	// support role; revoke general posting. All best-effort.
	s.setVisibilityBestEffort(ctx, ticket.ChannelID, ticket.CreatorID, gateway.VisibilityRules{View: true, Post: true})
	if category, err := s.categories.GetByID(ctx, ticket.CategoryID); err == nil && category.SupportRoleID != nil {
		s.setVisibilityBestEffort(ctx, ticket.ChannelID, *category.SupportRoleID, gateway.VisibilityRules{View: true, Post: true})
	}
	s.setVisibilityBestEffort(ctx, ticket.ChannelID, gateway.EveryoneTarget, gateway.VisibilityRules{View: false, Post: false})

	s.notifyBestEffort(ctx, ticket.ChannelID, reopenedMessage(actor))
	return s.getTicket(ctx, ticketID)
}

// Archive marks a ticket ARCHIVED. Legal from any status except
// ARCHIVED itself.
func (s *TicketService) Archive(ctx context.Context, ticketID string, actor domain.Principal) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.Staff && !actor.Admin {
		return nil, apperrors.NewPermissionDenied("only staff can archive tickets")
	}
	if ticket.Status == domain.TicketStatusArchived {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusArchived))
	}

	if err := s.transition(ctx, ticket, domain.TicketStatusArchived, actor.ID, reasonArchived); err != nil {
		return nil, err
	}
	s.notifyBestEffort(ctx, ticket.ChannelID, archivedMessage(actor))
	return s.getTicket(ctx, ticketID)
}

// Delete closes the ticket record first, then requests physical
// channel removal after a short grace period. The record's CLOSED
// status is authoritative even when channel removal fails; the failure
// is reported to the actor, never rolled back.
func (s *TicketService) Delete(ctx context.Context, ticketID string, actor domain.Principal) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageTickets() {
		return nil, apperrors.NewPermissionDenied("deleting tickets requires ticket management permission")
	}

	// Always persist CLOSED before touching the channel, regardless of
	// prior status, so a removal failure cannot leave the record
	// claiming an open conversation.
	if ticket.Status != domain.TicketStatusClosed {
		if err := s.transition(ctx, ticket, domain.TicketStatusClosed, actor.ID, "deleted"); err != nil {
			return nil, err
		}
	}

	s.notifyBestEffort(ctx, ticket.ChannelID, deletionNoticeMessage())

	channelID := ticket.ChannelID
	actorID := actor.ID
	s.clock.AfterFunc(s.deleteDelay, func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		removed := true
		if err := s.provisioner.DeleteChannel(removeCtx, channelID); err != nil {
			removed = false
			s.logger.Error("ticket channel removal failed",
				zap.String("ticket_id", ticketID),
				zap.String("channel_id", channelID),
				zap.Error(err))
			s.dmBestEffort(removeCtx, actorID, channelRemovalFailedMessage(ticket))
		}
		s.publishEvent(removeCtx, events.Event{
			Type:        events.EventTicketDeleted,
			TicketID:    ticketID,
			WorkspaceID: ticket.WorkspaceID,
			ActorID:     actorID,
			Payload: events.TicketDeletedPayload{
				ChannelID:      channelID,
				ChannelRemoved: removed,
			},
		})
	})

	return s.getTicket(ctx, ticketID)
}

// transition persists a status change, appends the audit row, and
// publishes the event. Reopen passes empty actor/reason to clear the
// close metadata.
func (s *TicketService) transition(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus, actorID, reason string) error {
	var actorPtr, reasonPtr *string
	if actorID != "" {
		actorPtr = &actorID
	}
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.tickets.UpdateStatus(ctx, ticket.ID, next, actorPtr, reasonPtr); err != nil {
		return apperrors.MapError(err)
	}
	s.recordStatusChange(ctx, actorPtr, ticket.ID, ticket.Status, next, reason)
	s.publishEvent(ctx, events.Event{
		Type:        events.EventTicketStatusChanged,
		TicketID:    ticket.ID,
		WorkspaceID: ticket.WorkspaceID,
		ActorID:     actorID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: ticket.Status,
			NewStatus: next,
			Reason:    reason,
		},
	})
	return nil
}

// GetByChannel resolves the ticket bound to a channel. Interactions
// arriving from inside a ticket channel are addressed this way.
func (s *TicketService) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func canClose(ticket *domain.Ticket, actor domain.Principal) bool {
	if actor.Staff || actor.Admin {
		return true
	}
	if ticket.CreatorID == actor.ID {
		return true
	}
	return ticket.IsClaimedBy(actor.ID)
}

func (s *TicketService) setVisibilityBestEffort(ctx context.Context, channelID, targetID string, rules gateway.VisibilityRules) {
	if err := s.provisioner.SetVisibility(ctx, channelID, targetID, rules); err != nil {
		s.logger.Warn("channel visibility update failed",
			zap.String("channel_id", channelID),
			zap.String("target_id", targetID),
			zap.Error(err))
	}
}

func (s *TicketService) notifyBestEffort(ctx context.Context, channelID string, msg gateway.Message) {
	if err := s.notifier.Send(ctx, channelID, msg); err != nil {
		s.logger.Warn("channel notification failed",
			zap.String("channel_id", channelID),
			zap.Error(err))
	}
}

func (s *TicketService) dmBestEffort(ctx context.Context, principalID string, msg gateway.Message) {
	if err := s.notifier.DirectMessage(ctx, principalID, msg); err != nil {
		s.logger.Warn("direct message failed",
			zap.String("principal_id", principalID),
			zap.Error(err))
	}
}

func (s *TicketService) recordStatusChange(ctx context.Context, actorID *string, ticketID string, oldStatus, newStatus domain.TicketStatus, reason string) {
	if s.audit == nil {
		return
	}
	entry := &domain.TicketAudit{
		TicketID:   ticketID,
		ActorID:    actorID,
		ChangeType: domain.AuditChangeStatus,
		OldValue:   map[string]any{"status": string(oldStatus)},
		NewValue:   map[string]any{"status": string(newStatus), "reason": reason},
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
