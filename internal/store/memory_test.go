package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreWriteReadOnce(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	err := m.Write(ctx, "users/alice", map[string]string{"username": "alice"})
	require.NoError(t, err)

	snap, err := m.ReadOnce(ctx, "users/alice")
	require.NoError(t, err)
	require.True(t, snap.Exists())

	var u struct {
		Username string `json:"username"`
	}
	require.NoError(t, snap.Decode(&u))
	assert.Equal(t, "alice", u.Username)

	snap, err = m.ReadOnce(ctx, "users/nobody")
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestMemoryStoreSnapshotComposesChildren(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "users/alice", map[string]string{"username": "alice"}))
	require.NoError(t, m.Write(ctx, "users/bob", map[string]string{"username": "bob"}))

	snap, err := m.ReadOnce(ctx, "users")
	require.NoError(t, err)
	children, err := snap.Children()
	require.NoError(t, err)
	assert.Len(t, children, 2)
	assert.Contains(t, children, "alice")
	assert.Contains(t, children, "bob")
}

func TestMemoryStoreSubscribeDeliversFullSnapshots(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var got []int
	sub, err := m.Subscribe("messages/a_b", func(snap Snapshot) {
		children, err := snap.Children()
		require.NoError(t, err)
		mu.Lock()
		got = append(got, len(children))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	// Initial delivery fires even for an absent node.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == 0
	}, time.Second, 5*time.Millisecond)

	_, err = m.Append(ctx, "messages/a_b", map[string]any{"text": "hi"})
	require.NoError(t, err)
	_, err = m.Append(ctx, "messages/a_b", map[string]any{"text": "yo"})
	require.NoError(t, err)

	// Every notification carries the whole collection, not a diff.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{0, 1, 2}, got)
	mu.Unlock()
}

func TestMemoryStoreSubscribeCancelStopsDelivery(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	sub, err := m.Subscribe("presence/bob", func(Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	sub.Cancel()
	require.NoError(t, m.Write(ctx, "presence/bob", map[string]any{"isOnline": true}))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, count)
	mu.Unlock()
}

func TestMemoryStoreUpdateMerges(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "conversations/a_b", map[string]any{
		"lastMessagePreview": "",
		"lastMessageAt":      0,
	}))
	require.NoError(t, m.Update(ctx, "conversations/a_b", map[string]any{
		"lastMessagePreview": "hi",
	}))

	snap, err := m.ReadOnce(ctx, "conversations/a_b")
	require.NoError(t, err)
	var conv struct {
		Preview string `json:"lastMessagePreview"`
		At      int64  `json:"lastMessageAt"`
	}
	require.NoError(t, snap.Decode(&conv))
	assert.Equal(t, "hi", conv.Preview)
	assert.Equal(t, int64(0), conv.At, "untouched field survives the merge")
}

func TestMemoryStoreUpdateCreatesMissingNode(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()

	require.NoError(t, m.Update(context.Background(), "presence/ghost", map[string]any{"isOnline": false}))
	snap, err := m.ReadOnce(context.Background(), "presence/ghost")
	require.NoError(t, err)
	assert.True(t, snap.Exists())
}

func TestMemoryStoreUpdateRejectsInnerNode(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "users/alice", map[string]string{"username": "alice"}))

	// An inner node's snapshot is composed from its children, so a merged
	// value would be invisible.
	err := m.Update(ctx, "users", map[string]any{"count": 1})
	require.Error(t, err)

	snap, err := m.ReadOnce(ctx, "users/alice")
	require.NoError(t, err)
	assert.True(t, snap.Exists(), "children survive the rejected update")
}

func TestMemoryStoreAppendIDsSortInCreationOrder(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 50; i++ {
		id, err := m.Append(ctx, "credentials", map[string]any{"n": i})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.True(t, sort.StringsAreSorted(ids), "push ids must sort in creation order")
}

func TestMemoryStoreLastWill(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "presence/alice", map[string]any{"isOnline": true}))
	require.NoError(t, m.OnDisconnectWrite("presence/alice", map[string]any{"isOnline": false}))

	m.DropConnection()

	snap, err := m.ReadOnce(ctx, "presence/alice")
	require.NoError(t, err)
	var p struct {
		IsOnline bool `json:"isOnline"`
	}
	require.NoError(t, snap.Decode(&p))
	assert.False(t, p.IsOnline)
}

func TestMemoryStoreLeaves(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "users/alice", map[string]string{"username": "alice"}))
	id, err := m.Append(ctx, "messages/a_b", map[string]any{"text": "hi"})
	require.NoError(t, err)

	leaves := m.Leaves()
	assert.Contains(t, leaves, "users/alice")
	assert.Contains(t, leaves, "messages/a_b/"+id)
}

func TestMemoryStoreInvalidPath(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()

	_, err := m.ReadOnce(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidPath)
	err = m.Write(context.Background(), "users//alice", "x")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestPathsRelated(t *testing.T) {
	assert.True(t, pathsRelated("messages/a_b", "messages/a_b"))
	assert.True(t, pathsRelated("messages/a_b", "messages/a_b/m1"))
	assert.True(t, pathsRelated("messages/a_b/m1", "messages/a_b"))
	assert.False(t, pathsRelated("messages/a_b", "messages/a_c"))
	assert.False(t, pathsRelated("messages/a_b", "messages/a_bc"))
}

func TestSnapshotDecodeRawJSON(t *testing.T) {
	snap := NewSnapshot(json.RawMessage(`{"k":"v"}`))
	var m map[string]string
	require.NoError(t, snap.Decode(&m))
	assert.Equal(t, "v", m["k"])

	empty := NewSnapshot(nil)
	assert.False(t, empty.Exists())
	ids, err := empty.ChildIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
