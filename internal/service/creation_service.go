package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/events"
	"github.com/spec-kit/helpdesk-bot/internal/gateway"
	"github.com/spec-kit/helpdesk-bot/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// CreationService orchestrates the multi-step ticket creation saga:
// duplicate check, validation, channel provisioning, record creation,
// channel finalization, welcome notification. The channel and the
// record fail independently, so a persistence failure after
// provisioning triggers a compensating channel delete.
type CreationService struct {
	tickets        repository.TicketRepository
	workspaces     repository.WorkspaceRepository
	audit          repository.TicketAuditRepository
	provisioner    gateway.ChannelProvisioner
	notifier       gateway.Notifier
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	botPrincipalID string
	channelPrefix  string
}

// CreationDependencies bundles collaborators for the saga.
type CreationDependencies struct {
	TicketRepo     repository.TicketRepository
	WorkspaceRepo  repository.WorkspaceRepository
	AuditRepo      repository.TicketAuditRepository
	Provisioner    gateway.ChannelProvisioner
	Notifier       gateway.Notifier
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	BotPrincipalID string
	ChannelPrefix  string
}

// NewCreationService constructs the service.
func NewCreationService(deps CreationDependencies) *CreationService {
	return &CreationService{
		tickets:        deps.TicketRepo,
		workspaces:     deps.WorkspaceRepo,
		audit:          deps.AuditRepo,
		provisioner:    deps.Provisioner,
		notifier:       deps.Notifier,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		botPrincipalID: deps.BotPrincipalID,
		channelPrefix:  deps.ChannelPrefix,
	}
}

// CreateTicketInput describes one creation request.
type CreateTicketInput struct {
	WorkspaceID string
	CategoryID  string
	Creator     domain.Principal
	// ContextNote is an optional originating question, e.g. when an
	// upstream assistant flow opened the ticket.
	ContextNote string
}

// CreationResult is the saga's success payload. Degraded means the
// ticket exists but the welcome notification could not be delivered.
type CreationResult struct {
	Ticket    *domain.Ticket
	ChannelID string
	Degraded  bool
}

// CreateTicket runs the saga. Exactly one of
// provision-then-rollback or provision-then-persist happens; there is
// no lasting state where a channel is visible to the creator without a
// backing record.
func (s *CreationService) CreateTicket(ctx context.Context, input CreateTicketInput) (*CreationResult, error) {
	// Step 1: a user holds at most one open ticket per workspace. A
	// record whose channel no longer resolves is stale: close it and
	// proceed.
	if err := s.checkExistingTicket(ctx, input); err != nil {
		return nil, err
	}

	// Step 2: prerequisite validation, no side effects on failure.
	category, err := s.validatePrerequisites(ctx, input)
	if err != nil {
		return nil, err
	}

	// Step 3: provision the channel, deny-by-default, visible to the
	// creator and to the bot itself.
	channel, err := s.provisionChannel(ctx, input, category)
	if err != nil {
		return nil, err
	}

	// Step 4: persist the record. This is the saga's point of no
	// return; on failure the channel must be deleted before reporting.
	ticket := &domain.Ticket{
		WorkspaceID: input.WorkspaceID,
		CreatorID:   input.Creator.ID,
		ChannelID:   channel.ID,
		CategoryID:  category.ID,
		Status:      domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		s.logger.Error("ticket persistence failed, rolling back channel",
			zap.String("workspace_id", input.WorkspaceID),
			zap.String("channel_id", channel.ID),
			zap.Error(err))
		if rollbackErr := s.provisioner.DeleteChannel(ctx, channel.ID); rollbackErr != nil {
			s.logger.Error("channel rollback failed, manual cleanup required",
				zap.String("channel_id", channel.ID),
				zap.Error(rollbackErr))
		}
		if errors.Is(err, repository.ErrDuplicateOpenTicket) {
			// Lost a concurrent-create race with ourselves.
			return nil, apperrors.NewDuplicateTicket(s.winningChannelID(ctx, input))
		}
		return nil, apperrors.NewPersistenceFailed(err)
	}
	s.recordCreation(ctx, ticket)

	// Step 5: encode the assigned number into the channel name.
	// Cosmetic, non-fatal.
	if err := s.provisioner.RenameChannel(ctx, channel.ID, ticket.ChannelName(s.channelPrefix)); err != nil {
		s.logger.Warn("channel rename failed",
			zap.String("channel_id", channel.ID),
			zap.Int("ticket_number", ticket.Number),
			zap.Error(err))
	}

	// Step 6: welcome message. Failure degrades the result but never
	// rolls back; the creator gets a DM fallback instead.
	degraded := false
	welcome := welcomeMessage(category, input.Creator, ticket, input.ContextNote)
	if err := s.notifier.Send(ctx, channel.ID, welcome); err != nil {
		degraded = true
		s.logger.Warn("welcome notification failed",
			zap.String("channel_id", channel.ID),
			zap.Error(err))
		if dmErr := s.notifier.DirectMessage(ctx, input.Creator.ID, welcomeFallbackMessage(ticket)); dmErr != nil {
			s.logger.Warn("welcome fallback DM failed",
				zap.String("principal_id", input.Creator.ID),
				zap.Error(dmErr))
		}
	}

	s.publishCreated(ctx, ticket)
	return &CreationResult{Ticket: ticket, ChannelID: channel.ID, Degraded: degraded}, nil
}

func (s *CreationService) checkExistingTicket(ctx context.Context, input CreateTicketInput) error {
	open, err := s.tickets.ListOpenByCreator(ctx, input.WorkspaceID, input.Creator.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	for i := range open {
		existing := &open[i]
		resolves, err := s.provisioner.ChannelExists(ctx, existing.ChannelID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if resolves {
			return apperrors.NewDuplicateTicket(existing.ChannelID)
		}
		// Self-heal: the record says open but the channel is gone.
		reason := "channel missing"
		if err := s.tickets.UpdateStatus(ctx, existing.ID, domain.TicketStatusClosed, nil, &reason); err != nil {
			return apperrors.MapError(err)
		}
		s.logger.Info("closed stale ticket with missing channel",
			zap.String("ticket_id", existing.ID),
			zap.String("channel_id", existing.ChannelID))
	}
	return nil
}

// winningChannelID looks up the channel of the ticket that won a
// concurrent-create race, for the duplicate error's detail.
func (s *CreationService) winningChannelID(ctx context.Context, input CreateTicketInput) string {
	open, err := s.tickets.ListOpenByCreator(ctx, input.WorkspaceID, input.Creator.ID)
	if err != nil || len(open) == 0 {
		return ""
	}
	return open[0].ChannelID
}

func (s *CreationService) validatePrerequisites(ctx context.Context, input CreateTicketInput) (*domain.TicketCategory, error) {
	cfg, err := s.workspaces.GetConfig(ctx, input.WorkspaceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("the ticket system is not configured for this workspace", nil)
		}
		return nil, apperrors.MapError(err)
	}
	if !cfg.TicketsEnabled {
		return nil, apperrors.NewValidationError("the ticket system is disabled in this workspace", nil)
	}
	category := cfg.CategoryByID(input.CategoryID)
	if category == nil {
		return nil, apperrors.NewValidationError("unknown ticket category",
			map[string]any{"category_id": input.CategoryID})
	}
	if !category.Enabled {
		return nil, apperrors.NewValidationError(fmt.Sprintf("category %q is disabled", category.Name), nil)
	}
	return category, nil
}

func (s *CreationService) provisionChannel(ctx context.Context, input CreateTicketInput, category *domain.TicketCategory) (*gateway.Channel, error) {
	channel, err := s.provisioner.CreateChannel(ctx, gateway.CreateChannelInput{
		WorkspaceID:   input.WorkspaceID,
		Name:          provisionalChannelName(s.channelPrefix),
		ParentGroupID: category.ParentGroupID,
		Overwrites: []gateway.VisibilityOverwrite{
			{TargetID: input.Creator.ID, Rules: gateway.VisibilityRules{View: true, Post: true}},
			{TargetID: s.botPrincipalID, Rules: gateway.VisibilityRules{View: true, Post: true}},
		},
	})
	if err != nil {
		return nil, apperrors.NewChannelProvisionFailed(err)
	}

	// Support-role access is best-effort: a failed grant must not abort
	// the creation.
	if category.SupportRoleID != nil {
		if err := s.provisioner.SetVisibility(ctx, channel.ID, *category.SupportRoleID, gateway.VisibilityRules{View: true, Post: true}); err != nil {
			s.logger.Warn("support role grant failed",
				zap.String("channel_id", channel.ID),
				zap.String("role_id", *category.SupportRoleID),
				zap.Error(err))
		}
	}
	return channel, nil
}

// provisionalChannelName is used until the ticket number is assigned
// and the channel is renamed.
func provisionalChannelName(prefix string) string {
	if prefix == "" {
		prefix = "ticket"
	}
	return prefix + "-pending-" + uuid.NewString()[:8]
}

func (s *CreationService) recordCreation(ctx context.Context, ticket *domain.Ticket) {
	if s.audit == nil {
		return
	}
	creatorID := ticket.CreatorID
	entry := &domain.TicketAudit{
		TicketID:   ticket.ID,
		ActorID:    &creatorID,
		ChangeType: domain.AuditChangeCreated,
		OldValue:   map[string]any{},
		NewValue: map[string]any{
			"number":      ticket.Number,
			"channel_id":  ticket.ChannelID,
			"category_id": ticket.CategoryID,
		},
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (s *CreationService) publishCreated(ctx context.Context, ticket *domain.Ticket) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:          uuid.NewString(),
		Type:        events.EventTicketCreated,
		TicketID:    ticket.ID,
		WorkspaceID: ticket.WorkspaceID,
		ActorID:     ticket.CreatorID,
		Timestamp:   ticket.CreatedAt,
		Payload: events.TicketCreatedPayload{
			Number:     ticket.Number,
			CreatorID:  ticket.CreatorID,
			ChannelID:  ticket.ChannelID,
			CategoryID: ticket.CategoryID,
		},
	})
}
