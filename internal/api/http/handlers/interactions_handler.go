package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-bot/internal/api/dto"
	"github.com/spec-kit/helpdesk-bot/internal/auth"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/observability"
	"github.com/spec-kit/helpdesk-bot/internal/service"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// InteractionsHandler routes inbound interactions to the core ticket
// operations by action id.
type InteractionsHandler struct {
	creation *service.CreationService
	tickets  *service.TicketService
	claims   *service.ClaimService
	gate     *service.ConfirmationGate
	metrics  *observability.Metrics
}

// NewInteractionsHandler constructs handler.
func NewInteractionsHandler(creation *service.CreationService, tickets *service.TicketService, claims *service.ClaimService, gate *service.ConfirmationGate, metrics *observability.Metrics) *InteractionsHandler {
	return &InteractionsHandler{
		creation: creation,
		tickets:  tickets,
		claims:   claims,
		gate:     gate,
		metrics:  metrics,
	}
}

// Handle POST /interactions.
func (h *InteractionsHandler) Handle(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("principal required")
	}
	var req dto.Interaction
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActionID == "" {
		return apperrors.NewValidationError("action_id required", nil)
	}
	switch req.Type {
	case dto.InteractionTypeCommand, dto.InteractionTypeButton, dto.InteractionTypeMenu:
	default:
		return apperrors.NewValidationError("unknown interaction type", map[string]any{"type": string(req.Type)})
	}
	h.metrics.RecordAction(req.ActionID)

	switch {
	case req.ActionID == service.ActionTicketCreate:
		return h.createTicket(c, *principal, req)
	case req.ActionID == service.ActionTicketClose:
		return h.withTicket(c, req, func(ticketID string) (*domain.Ticket, error) {
			return h.tickets.Close(c.UserContext(), ticketID, *principal, req.Value)
		})
	case req.ActionID == service.ActionTicketReopen:
		return h.withTicket(c, req, func(ticketID string) (*domain.Ticket, error) {
			return h.tickets.Reopen(c.UserContext(), ticketID, *principal)
		})
	case req.ActionID == service.ActionTicketArchive:
		return h.withTicket(c, req, func(ticketID string) (*domain.Ticket, error) {
			return h.tickets.Archive(c.UserContext(), ticketID, *principal)
		})
	case req.ActionID == service.ActionTicketClaim:
		return h.toggleClaim(c, *principal, req)
	case req.ActionID == service.ActionTicketDelete:
		return h.requestDelete(c, *principal, req)
	case strings.HasPrefix(req.ActionID, service.ActionDeleteConfirmPrefix),
		strings.HasPrefix(req.ActionID, service.ActionDeleteCancelPrefix):
		return h.resolveDelete(c, *principal, req)
	default:
		return apperrors.NewValidationError("unknown action", map[string]any{"action_id": req.ActionID})
	}
}

func (h *InteractionsHandler) createTicket(c *fiber.Ctx, principal domain.Principal, req dto.Interaction) error {
	if req.Value == "" {
		return apperrors.NewValidationError("category required", nil)
	}
	result, err := h.creation.CreateTicket(c.UserContext(), service.CreateTicketInput{
		WorkspaceID: req.WorkspaceID,
		CategoryID:  req.Value,
		Creator:     principal,
		ContextNote: req.Note,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.InteractionResult{
		Action:   req.ActionID,
		Ticket:   ticketResponse(result.Ticket),
		Degraded: result.Degraded,
	}})
}

// withTicket resolves the ticket bound to the interaction's channel and
// applies a lifecycle transition to it.
func (h *InteractionsHandler) withTicket(c *fiber.Ctx, req dto.Interaction, op func(ticketID string) (*domain.Ticket, error)) error {
	ticket, err := h.tickets.GetByChannel(c.UserContext(), req.ChannelID)
	if err != nil {
		return err
	}
	updated, err := op(ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.InteractionResult{
		Action: req.ActionID,
		Ticket: ticketResponse(updated),
	}})
}

func (h *InteractionsHandler) toggleClaim(c *fiber.Ctx, principal domain.Principal, req dto.Interaction) error {
	ticket, err := h.tickets.GetByChannel(c.UserContext(), req.ChannelID)
	if err != nil {
		return err
	}
	result, err := h.claims.Toggle(c.UserContext(), ticket.ID, principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.InteractionResult{
		Action: req.ActionID,
		Ticket: ticketResponse(result.Ticket),
	}})
}

func (h *InteractionsHandler) requestDelete(c *fiber.Ctx, principal domain.Principal, req dto.Interaction) error {
	ticket, err := h.tickets.GetByChannel(c.UserContext(), req.ChannelID)
	if err != nil {
		return err
	}
	pending, err := h.gate.RequestDelete(c.UserContext(), ticket.ID, principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.InteractionResult{
		Action:                req.ActionID,
		PendingConfirmationID: pending.ID,
	}})
}

func (h *InteractionsHandler) resolveDelete(c *fiber.Ctx, principal domain.Principal, req dto.Interaction) error {
	outcome, err := h.gate.Resolve(c.UserContext(), req.ActionID, principal)
	if err != nil {
		return err
	}
	result := dto.InteractionResult{Action: req.ActionID, Ignored: outcome.Ignored}
	if outcome.Ticket != nil {
		result.Ticket = ticketResponse(outcome.Ticket)
	}
	return c.JSON(fiber.Map{"data": result})
}

func ticketResponse(ticket *domain.Ticket) *dto.TicketResponse {
	if ticket == nil {
		return nil
	}
	return &dto.TicketResponse{
		ID:          ticket.ID,
		WorkspaceID: ticket.WorkspaceID,
		Number:      ticket.Number,
		ChannelID:   ticket.ChannelID,
		CategoryID:  ticket.CategoryID,
		Status:      string(ticket.Status),
		ClaimantID:  ticket.ClaimantID,
		CloseReason: ticket.CloseReason,
		CreatedAt:   ticket.CreatedAt,
		ClosedAt:    ticket.ClosedAt,
	}
}
