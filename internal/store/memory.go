package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. It backs the daemon's node tree and the
// package tests. Snapshot delivery runs on a single dispatcher goroutine, so
// a handler always observes notifications for its subscription in order.
type MemoryStore struct {
	mu        sync.Mutex
	cond      *sync.Cond
	root      *node
	subs      map[int64]*memSub
	nextSubID int64
	lastWills []lastWill
	queue     []pendingNotify
	closed    bool
}

type node struct {
	value    json.RawMessage
	children map[string]*node
}

type memSub struct {
	id        int64
	path      string
	fn        SnapshotFunc
	store     *MemoryStore
	cancelled bool
}

type lastWill struct {
	path string
	raw  json.RawMessage
}

type pendingNotify struct {
	sub  *memSub
	snap Snapshot
}

// NewMemoryStore constructs an empty MemoryStore and starts its dispatcher.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		root: &node{},
		subs: make(map[int64]*memSub),
	}
	m.cond = sync.NewCond(&m.mu)
	go m.dispatch()
	return m
}

func (m *MemoryStore) ReadOnce(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	segments, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	return NewSnapshot(m.find(segments).snapshot()), nil
}

func (m *MemoryStore) Subscribe(path string, fn SnapshotFunc) (Subscription, error) {
	if _, err := splitPath(path); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.nextSubID++
	sub := &memSub{id: m.nextSubID, path: path, fn: fn, store: m}
	m.subs[sub.id] = sub
	// Initial delivery of the current snapshot.
	m.enqueueLocked(sub)
	return sub, nil
}

func (m *MemoryStore) Write(ctx context.Context, path string, value any) error {
	raw, err := marshalValue(value)
	if err != nil {
		return err
	}
	return m.mutate(ctx, path, func(n *node) {
		n.value = raw
		n.children = nil
	})
}

func (m *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	var mergeErr error
	err := m.mutate(ctx, path, func(n *node) {
		// A node with children composes its snapshot from them, so a merged
		// value here would never be visible.
		if len(n.children) > 0 {
			mergeErr = fmt.Errorf("store: update inner node %q: has children", path)
			return
		}
		obj := make(map[string]json.RawMessage)
		if len(n.value) > 0 {
			if err := json.Unmarshal(n.value, &obj); err != nil {
				mergeErr = fmt.Errorf("store: update non-object node %q: %w", path, err)
				return
			}
		}
		for k, v := range fields {
			raw, err := marshalValue(v)
			if err != nil {
				mergeErr = err
				return
			}
			obj[k] = raw
		}
		merged, err := json.Marshal(obj)
		if err != nil {
			mergeErr = err
			return
		}
		n.value = merged
	})
	if err != nil {
		return err
	}
	return mergeErr
}

func (m *MemoryStore) Append(ctx context.Context, path string, value any) (string, error) {
	id := NewPushID()
	if err := m.Write(ctx, path+"/"+id, value); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) OnDisconnectWrite(path string, value any) error {
	if _, err := splitPath(path); err != nil {
		return err
	}
	raw, err := marshalValue(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.lastWills = append(m.lastWills, lastWill{path: path, raw: raw})
	return nil
}

// DropConnection simulates an abrupt disconnect: every registered last-will
// write is applied, as the server would on a dead connection.
func (m *MemoryStore) DropConnection() {
	m.mu.Lock()
	wills := m.lastWills
	m.lastWills = nil
	m.mu.Unlock()
	for _, w := range wills {
		segments, err := splitPath(w.path)
		if err != nil {
			continue
		}
		m.applyMutation(segments, func(n *node) {
			n.value = w.raw
			n.children = nil
		})
	}
}

// Close runs pending last-will writes (a vanished connection and a closed one
// look the same to the server) and stops the dispatcher.
func (m *MemoryStore) Close() error {
	m.DropConnection()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
	return nil
}

// Leaves returns every leaf node as path -> raw value. Used by the daemon to
// mirror the tree into its persistence layer on demand.
func (m *MemoryStore) Leaves() map[string]json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	leaves := make(map[string]json.RawMessage)
	collectLeaves("", m.root, leaves)
	return leaves
}

func collectLeaves(prefix string, n *node, out map[string]json.RawMessage) {
	if n == nil {
		return
	}
	if len(n.children) == 0 {
		if prefix != "" && len(n.value) > 0 {
			out[prefix] = n.value
		}
		return
	}
	for name, child := range n.children {
		p := name
		if prefix != "" {
			p = prefix + "/" + name
		}
		collectLeaves(p, child, out)
	}
}

func (s *memSub) Cancel() {
	s.store.mu.Lock()
	s.cancelled = true
	delete(s.store.subs, s.id)
	s.store.mu.Unlock()
}

func (m *MemoryStore) mutate(ctx context.Context, path string, apply func(*node)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	return m.applyMutation(segments, apply)
}

func (m *MemoryStore) applyMutation(segments []string, apply func(*node)) error {
	path := strings.Join(segments, "/")
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	n := m.root
	for _, seg := range segments {
		if n.children == nil {
			n.children = make(map[string]*node)
		}
		child, ok := n.children[seg]
		if !ok {
			child = &node{}
			n.children[seg] = child
		}
		n = child
	}
	apply(n)
	if n.value == nil && len(n.children) == 0 {
		m.prune(segments)
	}
	for _, sub := range m.subs {
		if pathsRelated(sub.path, path) {
			m.enqueueLocked(sub)
		}
	}
	m.mu.Unlock()
	return nil
}

// prune removes the node at segments and any ancestors left empty.
func (m *MemoryStore) prune(segments []string) {
	var walk func(n *node, rest []string) bool
	walk = func(n *node, rest []string) bool {
		if len(rest) == 0 {
			return n.value == nil && len(n.children) == 0
		}
		child, ok := n.children[rest[0]]
		if !ok {
			return false
		}
		if walk(child, rest[1:]) {
			delete(n.children, rest[0])
		}
		return n.value == nil && len(n.children) == 0
	}
	walk(m.root, segments)
}

// enqueueLocked schedules delivery of sub's current snapshot. Caller holds mu.
func (m *MemoryStore) enqueueLocked(sub *memSub) {
	segments, err := splitPath(sub.path)
	if err != nil {
		return
	}
	snap := NewSnapshot(m.find(segments).snapshot())
	m.queue = append(m.queue, pendingNotify{sub: sub, snap: snap})
	m.cond.Signal()
}

// dispatch delivers queued notifications outside the store lock, one at a
// time, so handlers may call back into the store.
func (m *MemoryStore) dispatch() {
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if len(m.queue) == 0 && m.closed {
			m.mu.Unlock()
			return
		}
		p := m.queue[0]
		m.queue = m.queue[1:]
		cancelled := p.sub.cancelled
		m.mu.Unlock()
		if !cancelled {
			p.sub.fn(p.snap)
		}
	}
}

// find returns the node at segments, or nil. Caller holds mu.
func (m *MemoryStore) find(segments []string) *node {
	n := m.root
	for _, seg := range segments {
		child, ok := n.children[seg]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// snapshot composes a node's JSON: a leaf is its value, an inner node is the
// object of its children.
func (n *node) snapshot() json.RawMessage {
	if n == nil {
		return nil
	}
	if len(n.children) == 0 {
		return n.value
	}
	obj := make(map[string]json.RawMessage, len(n.children))
	for name, child := range n.children {
		if raw := child.snapshot(); len(raw) > 0 {
			obj[name] = raw
		}
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	return raw
}

func marshalValue(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: marshal value: %w", err)
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

var _ Store = (*MemoryStore)(nil)
