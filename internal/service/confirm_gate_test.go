package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-bot/internal/clock"
	"github.com/spec-kit/helpdesk-bot/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

type gateEnv struct {
	*lifecycleEnv
	gate *ConfirmationGate
}

func newGateEnv() *gateEnv {
	env := newLifecycleEnv()
	gate := NewConfirmationGate(env.service, env.notifier, env.clock, 30*time.Second, testLogger())
	return &gateEnv{lifecycleEnv: env, gate: gate}
}

func TestRequestDelete_RequiresManagePermission(t *testing.T) {
	env := newGateEnv()
	ticket := env.seedOpenTicket()

	_, err := env.gate.RequestDelete(context.Background(), ticket.ID, staffActor("sam"))
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("expected PERMISSION_DENIED, got %v", err)
	}
	if env.gate.PendingCount() != 0 {
		t.Error("denied request must not register a pending confirmation")
	}
}

func TestRequestDelete_PromptFailureAborts(t *testing.T) {
	env := newGateEnv()
	ticket := env.seedOpenTicket()
	env.notifier.sendErr = errors.New("channel post failed")

	_, err := env.gate.RequestDelete(context.Background(), ticket.ID, adminActor("root"))
	if !apperrors.IsCode(err, apperrors.CodeDeliveryDegraded) {
		t.Fatalf("expected DELIVERY_DEGRADED, got %v", err)
	}
	if env.gate.PendingCount() != 0 {
		t.Error("failed prompt must not arm the gate")
	}
}

func TestRequestDelete_PromptCarriesConfirmationControls(t *testing.T) {
	env := newGateEnv()
	ticket := env.seedOpenTicket()

	pending, err := env.gate.RequestDelete(context.Background(), ticket.ID, adminActor("root"))
	if err != nil {
		t.Fatalf("RequestDelete failed: %v", err)
	}
	prompt := env.notifier.lastSent()
	if prompt == nil {
		t.Fatal("expected a confirmation prompt")
	}
	wantConfirm := ActionDeleteConfirmPrefix + pending.ID
	wantCancel := ActionDeleteCancelPrefix + pending.ID
	foundConfirm, foundCancel := false, false
	for _, control := range prompt.msg.Controls {
		switch control.ActionID {
		case wantConfirm:
			foundConfirm = true
		case wantCancel:
			foundCancel = true
		}
	}
	if !foundConfirm || !foundCancel {
		t.Errorf("expected confirm and cancel controls bound to %s, got %v", pending.ID, prompt.msg.Controls)
	}
}

func TestResolve_ConfirmExecutesDeleteOnce(t *testing.T) {
	env := newGateEnv()
	ticket := env.seedOpenTicket()
	actor := adminActor("root")

	pending, err := env.gate.RequestDelete(context.Background(), ticket.ID, actor)
	if err != nil {
		t.Fatalf("RequestDelete failed: %v", err)
	}

	outcome, err := env.gate.Resolve(context.Background(), ActionDeleteConfirmPrefix+pending.ID, actor)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !outcome.Confirmed || outcome.Ticket == nil {
		t.Fatalf("expected confirmed outcome with ticket, got %+v", outcome)
	}
	if outcome.Ticket.Status != domain.TicketStatusClosed {
		t.Errorf("expected CLOSED, got %s", outcome.Ticket.Status)
	}

	// Duplicate delivery of the same click.
	dup, err := env.gate.Resolve(context.Background(), ActionDeleteConfirmPrefix+pending.ID, actor)
	if err != nil {
		t.Fatalf("duplicate Resolve failed: %v", err)
	}
	if !dup.Ignored {
		t.Error("expected duplicate confirm to be ignored")
	}

	env.clock.Advance(time.Minute)
	if env.provisioner.deleteCount() != 1 {
		t.Errorf("expected exactly one channel removal, got %d", env.provisioner.deleteCount())
	}
}

func TestResolve_CancelKeepsTicket(t *testing.T) {
	env := newGateEnv()
	ticket := env.seedOpenTicket()
	actor := adminActor("root")

	pending, err := env.gate.RequestDelete(context.Background(), ticket.ID, actor)
	if err != nil {
		t.Fatalf("RequestDelete failed: %v", err)
	}

	outcome, err := env.gate.Resolve(context.Background(), ActionDeleteCancelPrefix+pending.ID, actor)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if outcome.Confirmed || outcome.Ignored {
		t.Fatalf("expected explicit cancel outcome, got %+v", outcome)
	}

	current, err := env.tickets.GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if current.Status != domain.TicketStatusOpen {
		t.Errorf("cancelled delete must not touch the ticket, got %s", current.Status)
	}
	env.clock.Advance(time.Minute)
	if env.provisioner.deleteCount() != 0 {
		t.Error("cancelled delete must not remove the channel")
	}
}

func TestResolve_WrongPrincipalRejectedWithoutConsuming(t *testing.T) {
	env := newGateEnv()
	ticket := env.seedOpenTicket()
	actor := adminActor("root")

	pending, err := env.gate.RequestDelete(context.Background(), ticket.ID, actor)
	if err != nil {
		t.Fatalf("RequestDelete failed: %v", err)
	}

	_, err = env.gate.Resolve(context.Background(), ActionDeleteConfirmPrefix+pending.ID, adminActor("other"))
	if !apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("expected PERMISSION_DENIED for foreign principal, got %v", err)
	}

	// The requester can still answer.
	outcome, err := env.gate.Resolve(context.Background(), ActionDeleteConfirmPrefix+pending.ID, actor)
	if err != nil {
		t.Fatalf("Resolve by requester failed: %v", err)
	}
	if !outcome.Confirmed {
		t.Error("expected the original requester to still confirm")
	}
}

func TestExpire_FiresOnceAndLateClickIsIgnored(t *testing.T) {
	env := newGateEnv()
	ticket := env.seedOpenTicket()
	actor := adminActor("root")

	pending, err := env.gate.RequestDelete(context.Background(), ticket.ID, actor)
	if err != nil {
		t.Fatalf("RequestDelete failed: %v", err)
	}
	sendsBefore := len(env.notifier.sent)

	env.clock.Advance(30 * time.Second)
	if env.gate.PendingCount() != 0 {
		t.Error("expected gate cleared after expiry")
	}
	if len(env.notifier.sent) != sendsBefore+1 {
		t.Errorf("expected one timeout notice, got %d new messages", len(env.notifier.sent)-sendsBefore)
	}

	outcome, err := env.gate.Resolve(context.Background(), ActionDeleteConfirmPrefix+pending.ID, actor)
	if err != nil {
		t.Fatalf("late Resolve failed: %v", err)
	}
	if !outcome.Ignored {
		t.Error("expected late click to be ignored")
	}
	env.clock.Advance(time.Minute)
	if env.provisioner.deleteCount() != 0 {
		t.Error("expired confirmation must never delete the channel")
	}
}

func TestResolve_RejectsUnknownAction(t *testing.T) {
	env := newGateEnv()

	_, err := env.gate.Resolve(context.Background(), "ticket_frobnicate:xyz", adminActor("root"))
	if !apperrors.IsCode(err, apperrors.CodeValidationFailed) {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
}

func TestResolve_StaleConfirmationIDIsIgnored(t *testing.T) {
	env := newGateEnv()

	outcome, err := env.gate.Resolve(context.Background(), ActionDeleteConfirmPrefix+"never-issued", adminActor("root"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !outcome.Ignored {
		t.Error("expected unknown confirmation id to be ignored")
	}
}

func TestConfirmationGate_DefaultWindow(t *testing.T) {
	env := newLifecycleEnv()
	gate := NewConfirmationGate(env.service, env.notifier, clock.NewFake(), 0, testLogger())
	if gate.window != 30*time.Second {
		t.Errorf("expected default 30s window, got %v", gate.window)
	}
}
