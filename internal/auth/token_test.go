package auth

import (
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret")
	principal := domain.Principal{
		ID:          "user-1",
		DisplayName: "Alice",
		Roles:       []string{"role-support"},
		Staff:       true,
	}

	token, err := tm.GenerateToken(principal, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	parsed := claims.Principal()
	if parsed.ID != principal.ID || parsed.DisplayName != principal.DisplayName {
		t.Errorf("principal mismatch: got %+v", parsed)
	}
	if !parsed.Staff || parsed.Admin {
		t.Errorf("capability flags mismatch: got %+v", parsed)
	}
	if !parsed.HasRole("role-support") {
		t.Error("expected support role to survive the round trip")
	}
}

func TestParseToken_RejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("secret-a")
	token, err := tm.GenerateToken(domain.Principal{ID: "user-1"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	other := NewTokenManager("secret-b")
	if _, err := other.ParseToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestParseToken_RejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret")
	token, err := tm.GenerateToken(domain.Principal{ID: "user-1"}, time.Nanosecond)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := tm.ParseToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseToken_RejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret")
	if _, err := tm.ParseToken("not.a.token"); err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
}
