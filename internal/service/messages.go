package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
	"github.com/spec-kit/helpdesk-bot/internal/gateway"
)

const defaultWelcomeTemplate = "Support will be with you shortly. Describe your issue in as much detail as you can."

// welcomeMessage composes the first message in a fresh ticket channel:
// category, creator, creation time, the category's template or the
// default, and the optional originating note.
func welcomeMessage(category *domain.TicketCategory, creator domain.Principal, ticket *domain.Ticket, note string) gateway.Message {
	template := strings.TrimSpace(category.WelcomeTemplate)
	if template == "" {
		template = defaultWelcomeTemplate
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ticket #%04d (%s)\n", ticket.Number, categoryLabel(category))
	fmt.Fprintf(&b, "Opened by %s at %s\n\n", creator.DisplayName, ticket.CreatedAt.Format("2006-01-02 15:04 MST"))
	b.WriteString(template)
	if strings.TrimSpace(note) != "" {
		fmt.Fprintf(&b, "\n\nOriginal question:\n> %s", strings.TrimSpace(note))
	}

	return gateway.Message{
		Text: b.String(),
		Controls: []gateway.Control{
			{ActionID: ActionTicketClaim, Label: "Claim", Style: gateway.ControlStylePrimary},
			{ActionID: ActionTicketClose, Label: "Close", Style: gateway.ControlStyleNeutral},
		},
	}
}

func categoryLabel(category *domain.TicketCategory) string {
	if category.Emoji != "" {
		return category.Emoji + " " + category.Name
	}
	return category.Name
}

func welcomeFallbackMessage(ticket *domain.Ticket) gateway.Message {
	return gateway.Message{
		Text: fmt.Sprintf("Your ticket #%04d was created, but the welcome message could not be posted in its channel.", ticket.Number),
	}
}

func closedMessage(actor domain.Principal, reason string) gateway.Message {
	text := fmt.Sprintf("Ticket closed by %s.", actor.DisplayName)
	if strings.TrimSpace(reason) != "" {
		text += " Reason: " + reason
	}
	return gateway.Message{
		Text: text,
		Controls: []gateway.Control{
			{ActionID: ActionTicketReopen, Label: "Reopen", Style: gateway.ControlStyleNeutral},
			{ActionID: ActionTicketArchive, Label: "Archive", Style: gateway.ControlStyleNeutral},
			{ActionID: ActionTicketDelete, Label: "Delete", Style: gateway.ControlStyleDanger},
		},
	}
}

func reopenedMessage(actor domain.Principal) gateway.Message {
	return gateway.Message{
		Text: fmt.Sprintf("Ticket reopened by %s.", actor.DisplayName),
		Controls: []gateway.Control{
			{ActionID: ActionTicketClaim, Label: "Claim", Style: gateway.ControlStylePrimary},
			{ActionID: ActionTicketClose, Label: "Close", Style: gateway.ControlStyleNeutral},
		},
	}
}

func archivedMessage(actor domain.Principal) gateway.Message {
	return gateway.Message{
		Text: fmt.Sprintf("Ticket archived by %s.", actor.DisplayName),
	}
}

func claimedMessage(actor domain.Principal) gateway.Message {
	return gateway.Message{
		Text: fmt.Sprintf("%s claimed this ticket.", actor.DisplayName),
		Controls: []gateway.Control{
			{ActionID: ActionTicketClaim, Label: "Unclaim", Style: gateway.ControlStyleNeutral},
		},
	}
}

func unclaimedMessage(actor domain.Principal) gateway.Message {
	return gateway.Message{
		Text: fmt.Sprintf("%s released this ticket.", actor.DisplayName),
		Controls: []gateway.Control{
			{ActionID: ActionTicketClaim, Label: "Claim", Style: gateway.ControlStylePrimary},
		},
	}
}

func deleteConfirmPrompt(ticket *domain.Ticket, confirmationID string, window time.Duration) gateway.Message {
	return gateway.Message{
		Text: fmt.Sprintf("Delete ticket #%04d? The channel will be removed; the record is kept for auditing. This prompt expires in %d seconds.",
			ticket.Number, int(window.Seconds())),
		Controls: []gateway.Control{
			{ActionID: ActionDeleteConfirmPrefix + confirmationID, Label: "Delete", Style: gateway.ControlStyleDanger},
			{ActionID: ActionDeleteCancelPrefix + confirmationID, Label: "Cancel", Style: gateway.ControlStyleNeutral},
		},
	}
}

func deleteCancelledMessage() gateway.Message {
	return gateway.Message{Text: "Deletion cancelled."}
}

func deleteExpiredMessage() gateway.Message {
	return gateway.Message{Text: "Deletion prompt expired without an answer."}
}

func deletionNoticeMessage() gateway.Message {
	return gateway.Message{Text: "This ticket is being deleted. The channel will be removed shortly."}
}

func channelRemovalFailedMessage(ticket *domain.Ticket) gateway.Message {
	return gateway.Message{
		Text: fmt.Sprintf("Ticket #%04d is closed, but its channel could not be removed. Please clean it up manually.", ticket.Number),
	}
}
