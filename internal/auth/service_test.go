package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/walletbook/walletbook/internal/identity"
)

func newAuthForTest(t *testing.T) (*Service, *identity.Service) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo).WithHashCost(bcrypt.MinCost)
	return NewService("test-secret", time.Hour, repo), ids
}

func TestIssueAndAuthorize(t *testing.T) {
	svc, ids := newAuthForTest(t)
	ctx := context.Background()
	user, err := ids.Register(ctx, identity.Credentials{Email: "ada@example.com", Password: "secret1", Name: "Ada"})
	require.NoError(t, err)

	token, err := svc.Issue(user)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	claims, err := svc.Verify(token.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, 0, claims.Version)

	got, err := svc.Authorize(ctx, token.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestLogoutRevokesIssuedTokens(t *testing.T) {
	svc, ids := newAuthForTest(t)
	ctx := context.Background()
	user, err := ids.Register(ctx, identity.Credentials{Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)

	token, err := svc.Issue(user)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, user.ID))

	_, err = svc.Authorize(ctx, token.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	refreshed, err := ids.Get(ctx, user.ID)
	require.NoError(t, err)
	fresh, err := svc.Issue(refreshed)
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, fresh.Value)
	assert.NoError(t, err)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	svc, _ := newAuthForTest(t)
	user := identity.User{ID: "u-1"}

	other := NewService("another-secret", time.Hour, nil)
	forged, err := other.Issue(user)
	require.NoError(t, err)
	_, err = svc.Verify(forged.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.Issue(user)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.Verify(expired.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorizeUnknownUser(t *testing.T) {
	svc, _ := newAuthForTest(t)
	token, err := svc.Issue(identity.User{ID: "ghost"})
	require.NoError(t, err)

	_, err = svc.Authorize(context.Background(), token.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
