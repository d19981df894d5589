package auth

import (
	"errors"
	"testing"
	"time"
)

func TestMintAndVerifyToken(t *testing.T) {
	a := New("test-secret", "", time.Hour, true)

	token, expiry, err := a.MintToken("u1")
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}
	if token == "" {
		t.Fatalf("token should not be empty")
	}
	if !expiry.After(time.Now()) {
		t.Fatalf("expiry = %v, want in the future", expiry)
	}

	subject, err := a.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if subject != "u1" {
		t.Fatalf("subject = %q, want %q", subject, "u1")
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	a := New("secret-a", "", time.Hour, true)
	b := New("secret-b", "", time.Hour, true)

	token, _, err := a.MintToken("u1")
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}
	if _, err := b.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	a := New("test-secret", "", time.Minute, true)
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := a.MintToken("u1")
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}

	a.now = time.Now
	if _, err := a.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTokenRejectsEmpty(t *testing.T) {
	a := New("test-secret", "", time.Hour, true)
	if _, err := a.VerifyToken("  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("error = %v, want ErrMissingToken", err)
	}
}

func TestCheckAPIKey(t *testing.T) {
	open := New("s", "", time.Hour, true)
	if !open.CheckAPIKey("anything") {
		t.Fatalf("keyless server rejected caller")
	}

	gated := New("s", "k1", time.Hour, true)
	if !gated.CheckAPIKey("k1") {
		t.Fatalf("correct key rejected")
	}
	if gated.CheckAPIKey("k2") {
		t.Fatalf("wrong key accepted")
	}
}

func TestRandomSecretFallback(t *testing.T) {
	a := New("", "", time.Hour, true)
	token, _, err := a.MintToken("u1")
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}
	if _, err := a.VerifyToken(token); err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
}
