package server

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tassianasc/blablachat/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startDaemon brings up a hub behind httptest and returns the ws URL.
func startDaemon(t *testing.T, persist *Persistence) string {
	t.Helper()
	engine := store.NewMemoryStore()
	t.Cleanup(func() { engine.Close() })

	hub := NewHub(engine, persist, discard())
	require.NoError(t, hub.Restore(context.Background()))

	srv := New(Config{}, hub, discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *store.RemoteStore {
	t.Helper()
	rs, err := store.Dial(context.Background(), url, discard())
	require.NoError(t, err)
	return rs
}

func TestRemoteWriteReadRoundTrip(t *testing.T) {
	url := startDaemon(t, nil)
	rs := dial(t, url)
	defer rs.Close()
	ctx := context.Background()

	require.NoError(t, rs.Write(ctx, "users/alice", map[string]string{"username": "alice"}))

	snap, err := rs.ReadOnce(ctx, "users/alice")
	require.NoError(t, err)
	var u struct {
		Username string `json:"username"`
	}
	require.NoError(t, snap.Decode(&u))
	assert.Equal(t, "alice", u.Username)
}

func TestRemoteSubscribeSeesOtherClientsWrites(t *testing.T) {
	url := startDaemon(t, nil)
	alice := dial(t, url)
	defer alice.Close()
	bob := dial(t, url)
	defer bob.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var sizes []int
	sub, err := bob.Subscribe("messages/alice_bob", func(snap store.Snapshot) {
		children, err := snap.Children()
		if err != nil {
			return
		}
		mu.Lock()
		sizes = append(sizes, len(children))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	_, err = alice.Append(ctx, "messages/alice_bob", map[string]any{"text": "hi", "from": "alice"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sizes) >= 2 && sizes[len(sizes)-1] == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemoteLastWillRunsOnDisconnect(t *testing.T) {
	url := startDaemon(t, nil)
	alice := dial(t, url)
	bob := dial(t, url)
	defer bob.Close()
	ctx := context.Background()

	require.NoError(t, alice.Write(ctx, "presence/alice", map[string]any{"isOnline": true}))
	require.NoError(t, alice.OnDisconnectWrite("presence/alice", map[string]any{"isOnline": false}))

	// Socket goes away without any explicit offline write.
	alice.Close()

	require.Eventually(t, func() bool {
		snap, err := bob.ReadOnce(ctx, "presence/alice")
		if err != nil || !snap.Exists() {
			return false
		}
		var p struct {
			IsOnline bool `json:"isOnline"`
		}
		if err := snap.Decode(&p); err != nil {
			return false
		}
		return !p.IsOnline
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemoteAppendReturnsOrderedIDs(t *testing.T) {
	url := startDaemon(t, nil)
	rs := dial(t, url)
	defer rs.Close()
	ctx := context.Background()

	id1, err := rs.Append(ctx, "credentials", map[string]string{"username": "a"})
	require.NoError(t, err)
	id2, err := rs.Append(ctx, "credentials", map[string]string{"username": "b"})
	require.NoError(t, err)
	assert.Less(t, id1, id2)
}

func TestPersistenceSurvivesRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "blablachat.db")

	persist, err := OpenPersistence(dbPath)
	require.NoError(t, err)

	url := startDaemon(t, persist)
	rs := dial(t, url)
	require.NoError(t, rs.Write(context.Background(), "users/alice", map[string]string{"username": "alice"}))
	rs.Close()
	require.NoError(t, persist.Close())

	// Fresh daemon over the same file sees the write.
	persist2, err := OpenPersistence(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { persist2.Close() })

	url2 := startDaemon(t, persist2)
	rs2 := dial(t, url2)
	defer rs2.Close()

	snap, err := rs2.ReadOnce(context.Background(), "users/alice")
	require.NoError(t, err)
	assert.True(t, snap.Exists())
}

func TestPersistenceUpdateAndDelete(t *testing.T) {
	persist, err := OpenPersistence(filepath.Join(t.TempDir(), "nodes.db"))
	require.NoError(t, err)
	defer persist.Close()

	require.NoError(t, persist.SaveLeaf("a/b", []byte(`{"x":1}`)))
	require.NoError(t, persist.SaveLeaf("a/b", []byte(`{"x":2}`)))
	require.NoError(t, persist.SaveLeaf("a/b/c", []byte(`{"y":1}`)))

	leaves, err := persist.LoadLeaves()
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":2}`, string(leaves["a/b"]))

	require.NoError(t, persist.DeleteSubtree("a/b"))
	leaves, err = persist.LoadLeaves()
	require.NoError(t, err)
	assert.Empty(t, leaves)
}
