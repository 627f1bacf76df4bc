package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ogurasousui/onboarding-compliance/internal/core/identity"
)

// ErrInvalidToken はトークンの検証に失敗した場合に返却されます。
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims は認証プロバイダが発行するトークンのクレームです。
type Claims struct {
	PrincipalType       string   `json:"principal_type"`
	CompanyID           string   `json:"company_id,omitempty"`
	ProfileID           string   `json:"profile_id,omitempty"`
	ProfileName         string   `json:"profile_name,omitempty"`
	IntegrationApprover bool     `json:"integration_approver,omitempty"`
	Permissions         []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Verifier は HS256 で署名されたトークンを検証し identity.Principal へ変換します。
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier は Verifier を生成します。issuer が空の場合は発行者を検証しません。
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock は検証に使う現在時刻を差し替えます。
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	if now != nil {
		v.now = now
	}
	return v
}

// Verify はトークンを検証します。
func (v *Verifier) Verify(token string) (identity.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return identity.Principal{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return identity.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return toPrincipal(claims)
}

func toPrincipal(c *Claims) (identity.Principal, error) {
	subject := strings.TrimSpace(c.Subject)
	if subject == "" {
		return identity.Principal{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}

	typ := identity.PrincipalType(c.PrincipalType)
	switch typ {
	case identity.TypeInternalUser:
	case identity.TypeExternalCompany:
		if strings.TrimSpace(c.CompanyID) == "" {
			return identity.Principal{}, fmt.Errorf("%w: company_id missing", ErrInvalidToken)
		}
	default:
		return identity.Principal{}, fmt.Errorf("%w: unknown principal type %q", ErrInvalidToken, c.PrincipalType)
	}

	perms := make([]identity.Permission, 0, len(c.Permissions))
	for _, p := range c.Permissions {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, identity.Permission(p))
		}
	}

	principal := identity.NewPrincipal(subject, typ, perms...)
	principal.CompanyID = strings.TrimSpace(c.CompanyID)
	principal.ProfileID = c.ProfileID
	principal.ProfileName = c.ProfileName
	principal.IntegrationApprover = c.IntegrationApprover
	return principal, nil
}
