package presence

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tassianasc/blablachat/internal/store"
)

func newTracker(t *testing.T, self string) (*Tracker, *store.MemoryStore) {
	t.Helper()
	m := store.NewMemoryStore()
	t.Cleanup(func() { m.Close() })
	return NewTracker(m, self, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func readRecord(t *testing.T, m *store.MemoryStore, username string) Record {
	t.Helper()
	snap, err := m.ReadOnce(context.Background(), "presence/"+username)
	require.NoError(t, err)
	require.True(t, snap.Exists())
	var rec Record
	require.NoError(t, snap.Decode(&rec))
	return rec
}

func TestStartGoesOnline(t *testing.T) {
	tr, m := newTracker(t, "alice")
	require.NoError(t, tr.Start(context.Background()))
	assert.True(t, readRecord(t, m, "alice").IsOnline)
}

func TestAbruptDisconnectGoesOfflineViaLastWill(t *testing.T) {
	tr, m := newTracker(t, "alice")
	require.NoError(t, tr.Start(context.Background()))

	// No explicit teardown: the registered last-will flips the record.
	m.DropConnection()
	assert.False(t, readRecord(t, m, "alice").IsOnline)
}

func TestCleanStopGoesOffline(t *testing.T) {
	tr, m := newTracker(t, "alice")
	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, tr.Stop(context.Background()))
	assert.False(t, readRecord(t, m, "alice").IsOnline)

	// Last-will firing afterwards is idempotent.
	m.DropConnection()
	assert.False(t, readRecord(t, m, "alice").IsOnline)
}

func TestWatchSeesContactTransitions(t *testing.T) {
	tr, m := newTracker(t, "alice")
	bob := NewTracker(m, "bob", nil)

	var mu sync.Mutex
	var seen []bool
	sub, err := tr.Watch("bob", func(online bool) {
		mu.Lock()
		seen = append(seen, online)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	// Initial delivery: a user who never connected reads as offline.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && !seen[0]
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bob.Start(context.Background()))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 2 && seen[len(seen)-1]
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bob.Stop(context.Background()))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !seen[len(seen)-1]
	}, time.Second, 5*time.Millisecond)
}
