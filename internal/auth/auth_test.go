package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tassianasc/blablachat/internal/store"
)

func newAuthenticator(t *testing.T) (*Authenticator, *store.MemoryStore) {
	t.Helper()
	m := store.NewMemoryStore()
	t.Cleanup(func() { m.Close() })
	return New(m, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func TestLoginRejectsBlankFields(t *testing.T) {
	a, _ := newAuthenticator(t)

	_, err := a.Login(context.Background(), "", "secret")
	assert.ErrorIs(t, err, ErrMissingFields)
	_, err = a.Login(context.Background(), "alice", "   ")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestLoginAutoRegistersUnknownUser(t *testing.T) {
	a, m := newAuthenticator(t)
	ctx := context.Background()

	res, err := a.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Username)
	assert.True(t, res.Registered)

	// A credential record and a directory entry now exist.
	snap, err := m.ReadOnce(ctx, "credentials")
	require.NoError(t, err)
	children, err := snap.Children()
	require.NoError(t, err)
	require.Len(t, children, 1)

	snap, err = m.ReadOnce(ctx, "users/alice")
	require.NoError(t, err)
	assert.True(t, snap.Exists())
}

func TestLoginKnownUser(t *testing.T) {
	a, _ := newAuthenticator(t)
	ctx := context.Background()

	_, err := a.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	res, err := a.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.False(t, res.Registered)
}

func TestLoginWrongSecret(t *testing.T) {
	a, m := newAuthenticator(t)
	ctx := context.Background()

	_, err := a.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	_, err = a.Login(ctx, "alice", "nope")
	assert.ErrorIs(t, err, ErrBadCredentials)

	// The failed attempt must not have appended another credential record.
	snap, err := m.ReadOnce(ctx, "credentials")
	require.NoError(t, err)
	children, err := snap.Children()
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestLoginTrimsUsername(t *testing.T) {
	a, _ := newAuthenticator(t)
	ctx := context.Background()

	_, err := a.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	res, err := a.Login(ctx, "  alice  ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Username)
	assert.False(t, res.Registered)
}
