package auth

import (
	"context"
	"errors"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type AppClaims struct {
	// UserID is the verified subject of the identity provider's token.
	UserID    string `json:"-"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks a bearer token issued by the external identity provider
// and returns the verified claims.
type Verifier interface {
	Verify(tokenString string) (*AppClaims, error)
}

// JWKSVerifier validates tokens against the provider's published JWKS.
// Key caching and refresh are handled by keyfunc based on HTTP cache headers.
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	issuer string
}

func NewJWKSVerifier(ctx context.Context, jwksURL, issuer string) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, err
	}

	return &JWKSVerifier{jwks: jwks, issuer: issuer}, nil
}

func (v *JWKSVerifier) Verify(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, v.jwks.Keyfunc)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Tylko klucze asymetryczne - ochrona przed podmianą algorytmu
	switch token.Method.Alg() {
	case "RS256", "ES256":
	default:
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*AppClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrInvalidToken
	}

	claims.UserID = claims.Subject
	return claims, nil
}
