package auth

import (
	"testing"
	"time"
)

func TestTokenManagerIssueAndVerify(t *testing.T) {
	manager, err := NewTokenManager("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	token, err := manager.Issue("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
}

func TestTokenManagerRejectsExpiredToken(t *testing.T) {
	manager, err := NewTokenManager("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	issued := time.Now()
	manager.now = func() time.Time { return issued }

	token, err := manager.Issue("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	manager.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := manager.Verify(token); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestTokenManagerRejectsForeignSecret(t *testing.T) {
	issuer, err := NewTokenManager("issuer-secret", time.Minute)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	verifier, err := NewTokenManager("other-secret", time.Minute)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	token, err := issuer.Issue("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected verification with a different secret to fail")
	}
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager("   ", time.Minute); err == nil {
		t.Fatal("expected empty secret to be rejected")
	}
}
