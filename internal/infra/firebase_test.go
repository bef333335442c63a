package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityFromClaims(t *testing.T) {
	id := identityFromClaims("uid-1", map[string]interface{}{
		"email": "tiger@princeton.edu",
		"name":  "Tiger",
		"admin": true,
	})
	require.Equal(t, "uid-1", id.Subject)
	require.Equal(t, "tiger@princeton.edu", id.Email)
	require.Equal(t, "Tiger", id.Name)
	require.False(t, id.EmailVerified)

	id = identityFromClaims("uid-3", map[string]interface{}{
		"email":          "tiger@princeton.edu",
		"email_verified": true,
	})
	require.True(t, id.EmailVerified)

	id = identityFromClaims("uid-4", map[string]interface{}{
		"email":          "tiger@princeton.edu",
		"email_verified": "true",
	})
	require.False(t, id.EmailVerified)

	id = identityFromClaims("uid-2", map[string]interface{}{"email": 42})
	require.Equal(t, "uid-2", id.Subject)
	require.Empty(t, id.Email)
}

func TestDevVerifier(t *testing.T) {
	id, err := DevVerifier{}.VerifyIDToken(context.Background(), "alice:alice@princeton.edu")
	require.NoError(t, err)
	require.Equal(t, "alice", id.Subject)
	require.Equal(t, "alice@princeton.edu", id.Email)
	require.True(t, id.EmailVerified)

	id, err = DevVerifier{}.VerifyIDToken(context.Background(), "bob")
	require.NoError(t, err)
	require.False(t, id.EmailVerified)

	_, err = DevVerifier{}.VerifyIDToken(context.Background(), ":x")
	require.Error(t, err)
}
