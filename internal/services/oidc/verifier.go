package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/benvon/taskpulse/internal/models"
)

// ErrMissingSubject is returned for tokens without a sub claim
var ErrMissingSubject = errors.New("token missing subject claim")

// Verifier checks bearer tokens against an issuer's key set
type Verifier struct {
	jwks     *JWKSManager
	issuer   string
	jwksURL  string
	audience string
}

// NewVerifier creates a verifier for tokens issued by issuer and signed by a key at jwksURL.
// An empty audience disables the aud check.
func NewVerifier(jwks *JWKSManager, issuer, jwksURL, audience string) *Verifier {
	return &Verifier{
		jwks:     jwks,
		issuer:   issuer,
		jwksURL:  jwksURL,
		audience: audience,
	}
}

// Verify validates the token signature, expiry and issuer and returns its claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.TokenClaims, error) {
	keys, err := v.jwks.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	if token.Subject() == "" {
		return nil, ErrMissingSubject
	}

	claims := &models.TokenClaims{
		Subject: token.Subject(),
		Issuer:  token.Issuer(),
		Expiry:  token.Expiration(),
	}
	if email, ok := token.Get("email"); ok {
		claims.Email, _ = email.(string)
	}
	if name, ok := token.Get("name"); ok {
		claims.Name, _ = name.(string)
	}
	return claims, nil
}
