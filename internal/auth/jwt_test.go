package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionIssuer_IssueAndValidate(t *testing.T) {
	issuer, err := NewSessionIssuer([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}

	token, expiresAt, err := issuer.Issue("admin")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	if time.Until(expiresAt) <= 59*time.Minute {
		t.Errorf("Expected expiry about one hour ahead, got %v", expiresAt)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	if claims.Username != "admin" {
		t.Errorf("Expected username 'admin', got '%s'", claims.Username)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Expected role '%s', got '%s'", RoleAdmin, claims.Role)
	}
	if claims.ID == "" {
		t.Error("Expected token ID to be set")
	}
}

func TestSessionIssuer_RejectsForeignSecret(t *testing.T) {
	issuer, _ := NewSessionIssuer([]byte("secret-a"), time.Hour)
	other, _ := NewSessionIssuer([]byte("secret-b"), time.Hour)

	token, _, err := other.Issue("admin")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	if _, err := issuer.Validate(token); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}
}

func TestSessionIssuer_RejectsExpired(t *testing.T) {
	issuer, _ := NewSessionIssuer([]byte("test-secret"), time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := issuer.Issue("admin")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	issuer.now = time.Now
	_, err = issuer.Validate(token)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestSessionIssuer_RejectsOtherAlgorithms(t *testing.T) {
	issuer, _ := NewSessionIssuer([]byte("test-secret"), time.Hour)

	claims := &SessionClaims{
		Username: "admin",
		Role:     RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("Failed to build unsigned token: %v", err)
	}

	if _, err := issuer.Validate(token); err == nil {
		t.Error("Expected unsigned token to be rejected")
	}
}

func TestNewSessionIssuer_EmptySecret(t *testing.T) {
	if _, err := NewSessionIssuer(nil, time.Hour); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("Expected ErrEmptySecret, got %v", err)
	}
}
