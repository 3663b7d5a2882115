package auth

import (
	"testing"
	"time"

	pkgerrors "kitarekayasa/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{Secret: "test-secret", Issuer: "kitarekayasa", AccessTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	return m
}

func TestTokenManagerRoundTrip(t *testing.T) {
	m := newTestManager(t)
	token, expiresAt, err := m.Issue(Caller{ID: 42, Role: RoleDesainer})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatal("expiry should be in the future")
	}

	caller, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if caller.ID != 42 || caller.Role != RoleDesainer {
		t.Fatalf("unexpected caller %+v", caller)
	}
}

func TestTokenManagerRejects(t *testing.T) {
	m := newTestManager(t)
	other, _ := NewTokenManager(TokenConfig{Secret: "other-secret", Issuer: "kitarekayasa"})
	foreign, _, _ := other.Issue(Caller{ID: 1, Role: RoleUmum})

	expired := newTestManager(t)
	expired.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	stale, _, _ := expired.Issue(Caller{ID: 1, Role: RoleUmum})

	refresh := signClaims(t, "test-secret", tokenClaims{
		Role:      "UMUM",
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "kitarekayasa",
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	badRole := signClaims(t, "test-secret", tokenClaims{
		Role:      "SUPERUSER",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "kitarekayasa",
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	cases := []struct {
		name string
		raw  string
		want pkgerrors.ErrorCode
	}{
		{"empty", "", pkgerrors.Unauthorized},
		{"garbage", "not-a-jwt", pkgerrors.TokenInvalid},
		{"wrong secret", foreign, pkgerrors.TokenInvalid},
		{"expired", stale, pkgerrors.TokenExpired},
		{"refresh type", refresh, pkgerrors.TokenInvalid},
		{"unknown role", badRole, pkgerrors.TokenInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Parse(tc.raw)
			if got := pkgerrors.GetCode(err); got != tc.want {
				t.Fatalf("code = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager(TokenConfig{}); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestCallerPredicates(t *testing.T) {
	if (Caller{}).Authenticated() {
		t.Fatal("zero caller must be anonymous")
	}
	if !(Caller{ID: 1, Role: RoleUmum}).CanPostChallenges() {
		t.Fatal("UMUM should post challenges")
	}
	if !(Caller{ID: 1, Role: RoleAdmin}).CanPostChallenges() {
		t.Fatal("ADMIN should post challenges")
	}
	if (Caller{ID: 1, Role: RoleDesainer}).CanPostChallenges() {
		t.Fatal("DESAINER must not post challenges")
	}
	if role, ok := ParseRole(" desainer "); !ok || role != RoleDesainer {
		t.Fatalf("ParseRole = %q, %v", role, ok)
	}
}

func signClaims(t *testing.T, secret string, claims tokenClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
