package realtime_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/realtime"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestVerifyTokenClaimPriority(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"sub wins", jwt.MapClaims{"sub": "u1", "userId": "u2", "id": "u3"}, "u1"},
		{"userId fallback", jwt.MapClaims{"userId": "u2", "id": "u3"}, "u2"},
		{"id fallback", jwt.MapClaims{"id": "u3"}, "u3"},
		{"numeric id", jwt.MapClaims{"id": 42}, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := signToken(t, testSecret, tt.claims)
			ident, ok := realtime.VerifyToken(token, testSecret)
			if !ok {
				t.Fatal("expected token to verify")
			}
			if ident.UserID != tt.want {
				t.Errorf("expected user %q, got %q", tt.want, ident.UserID)
			}
		})
	}
}

func TestVerifyTokenSoftFails(t *testing.T) {
	valid := signToken(t, testSecret, jwt.MapClaims{"sub": "u1"})
	expired := signToken(t, testSecret, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	noSubject := signToken(t, testSecret, jwt.MapClaims{"scope": "none"})

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"no token", "", testSecret},
		{"no secret configured", valid, ""},
		{"wrong secret", valid, "other-secret"},
		{"expired", expired, testSecret},
		{"garbage", "not-a-jwt", testSecret},
		{"no subject claim", noSubject, testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident, ok := realtime.VerifyToken(tt.token, tt.secret)
			if ok {
				t.Errorf("expected soft failure, got identity %+v", ident)
			}
			if ident.UserID != "" {
				t.Errorf("expected empty identity, got %q", ident.UserID)
			}
		})
	}
}

func TestBearerFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/realtime", nil)
	r.Header.Set("Authorization", "Bearer abc")
	if got := realtime.BearerFromRequest(r); got != "abc" {
		t.Errorf("expected header token, got %q", got)
	}

	r = httptest.NewRequest("GET", "/realtime?token=xyz", nil)
	if got := realtime.BearerFromRequest(r); got != "xyz" {
		t.Errorf("expected query token, got %q", got)
	}

	r = httptest.NewRequest("GET", "/realtime", nil)
	if got := realtime.BearerFromRequest(r); got != "" {
		t.Errorf("expected empty token, got %q", got)
	}
}
