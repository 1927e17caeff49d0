package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/auth"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims auth.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func TestParseToken(t *testing.T) {
	tenantID := int64(42)
	raw := signToken(t, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "17",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID:  &tenantID,
		Subdomain: "st-marys",
		Roles:     []string{"director"},
	})

	id, err := auth.ParseToken(raw, testSecret)
	require.NoError(t, err)
	require.Equal(t, int64(17), id.UserID)
	require.NotNil(t, id.TenantID)
	require.Equal(t, int64(42), *id.TenantID)
	require.Equal(t, "st-marys", id.Subdomain)
	require.True(t, id.HasRole("director"))
	require.False(t, id.HasRole("teacher"))
}

func TestParseTokenRejectsBadInput(t *testing.T) {
	raw := signToken(t, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "17",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := auth.ParseToken(raw, "other-secret")
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = auth.ParseToken("not-a-token", testSecret)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	expired := signToken(t, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "17",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	_, err = auth.ParseToken(expired, testSecret)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	missingSubject := signToken(t, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	_, err = auth.ParseToken(missingSubject, testSecret)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}
