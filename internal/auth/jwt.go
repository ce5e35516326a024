package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ctxKey namespaces context values this package sets, following the
// teacher's typed-context-key convention.
type ctxKey string

const (
	CtxTenantID  ctxKey = "tenant_id"
	CtxProjectID ctxKey = "project_id"
)

// tokenTTL is the bearer token's absolute lifetime from mint time.
const tokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is a structural rejection: bad signature, bad shape, or
// expiry — the codec doesn't distinguish these cases to the caller.
var ErrInvalidToken = errors.New("auth: invalid token")

type claims struct {
	jwt.RegisteredClaims
}

// Mint signs a bearer token over the tenant id, expiring seven days out.
// secret must be at least 32 bytes; callers enforce this at config load.
func Mint(secret string, tenantID uuid.UUID) (string, error) {
	now := time.Now().UTC()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenantID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString([]byte(secret))
}

// Verify checks signature and expiry, returning the tenant id carried as
// the subject claim. Any structural problem collapses to ErrInvalidToken.
func Verify(secret, tokenString string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	tenantID, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return tenantID, nil
}
