package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/demo/auth"
)

func TestLogin_SucceedsWithCorrectPassword(t *testing.T) {
	store, err := auth.NewStore(map[string]string{"alice": "hunter2"})
	require.NoError(t, err)
	svc := auth.NewService(store, []byte("secret"), time.Hour)

	token, err := svc.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestLogin_FailsWithWrongPassword(t *testing.T) {
	store, err := auth.NewStore(map[string]string{"alice": "hunter2"})
	require.NoError(t, err)
	svc := auth.NewService(store, []byte("secret"), time.Hour)

	_, err = svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_FailsForUnknownUser(t *testing.T) {
	store, err := auth.NewStore(map[string]string{"alice": "hunter2"})
	require.NoError(t, err)
	svc := auth.NewService(store, []byte("secret"), time.Hour)

	_, err = svc.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestVerify_RejectsTokenFromDifferentSecret(t *testing.T) {
	store, err := auth.NewStore(map[string]string{"alice": "hunter2"})
	require.NoError(t, err)
	svc := auth.NewService(store, []byte("secret"), time.Hour)
	other := auth.NewService(store, []byte("other-secret"), time.Hour)

	token, err := svc.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	store, err := auth.NewStore(map[string]string{"alice": "hunter2"})
	require.NoError(t, err)
	svc := auth.NewService(store, []byte("secret"), -time.Hour)

	token, err := svc.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.Error(t, err)
}
