package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ogurasousui/onboarding-compliance/internal/core/identity"
)

const testSecret = "test-secret"

var testNow = time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()

	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(testNow.Add(time.Hour))
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestVerifier(issuer string) *Verifier {
	return NewVerifier(testSecret, issuer).WithClock(func() time.Time { return testNow })
}

func TestVerifier_InternalUser(t *testing.T) {
	t.Parallel()

	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		PrincipalType:       string(identity.TypeInternalUser),
		ProfileID:           "profile-1",
		ProfileName:         "Segurança",
		IntegrationApprover: true,
		Permissions:         []string{" employees.edit ", ""},
		RegisteredClaims:    jwt.RegisteredClaims{Subject: "user-1", Issuer: "onboarding"},
	})

	principal, err := newTestVerifier("onboarding").Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if principal.ID != "user-1" || principal.Type != identity.TypeInternalUser {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if !principal.IsIntegrationApprover() || !principal.CanEditEmployees() {
		t.Fatalf("expected approver with edit permission, got %+v", principal)
	}
	if principal.ActorName() != "Segurança" {
		t.Fatalf("unexpected actor name %q", principal.ActorName())
	}
}

func TestVerifier_ExternalCompanyRequiresCompany(t *testing.T) {
	t.Parallel()

	v := newTestVerifier("")

	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		PrincipalType:    string(identity.TypeExternalCompany),
		CompanyID:        "co-1",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "co-1"},
	})
	principal, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !principal.IsExternal() || principal.CompanyID != "co-1" {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	missing := sign(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
		PrincipalType:    string(identity.TypeExternalCompany),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "co-1"},
	})
	if _, err := v.Verify(missing); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()

	valid := Claims{
		PrincipalType:    string(identity.TypeInternalUser),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "onboarding"},
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Minute))

	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"

	noSubject := valid
	noSubject.Subject = ""

	unknownType := valid
	unknownType.PrincipalType = "robot"

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: " "},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: sign(t, jwt.SigningMethodHS256, []byte("other"), valid)},
		{name: "wrong algorithm", token: sign(t, jwt.SigningMethodHS512, []byte(testSecret), valid)},
		{name: "expired", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{name: "issuer", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer)},
		{name: "subject", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
		{name: "principal type", token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), unknownType)},
	}

	v := newTestVerifier("onboarding")
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := v.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
