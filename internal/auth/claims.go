package auth

import (
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Claims are the token claims this core consumes. Token issuance and
// verification policy live upstream; we only check the signature and shape.
type Claims struct {
	jwt.RegisteredClaims
	TenantID  *int64   `json:"tenant_id,omitempty"`
	Subdomain string   `json:"tenant_subdomain,omitempty"`
	Roles     []string `json:"roles"`
}

// ParseToken validates the compact token with the shared secret and maps its
// claims onto an Identity.
func ParseToken(raw, secret string) (*shared.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, shared.ErrUnauthenticated
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || userID <= 0 {
		return nil, shared.ErrUnauthenticated
	}
	return &shared.Identity{
		UserID:    userID,
		TenantID:  claims.TenantID,
		Subdomain: claims.Subdomain,
		Roles:     claims.Roles,
	}, nil
}
