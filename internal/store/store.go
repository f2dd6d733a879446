// Package store defines the realtime data store contract the chat client is
// built against, plus the in-memory and websocket-backed implementations.
//
// The store is a tree of JSON nodes addressed by slash-separated paths
// ("messages/alice_bob", "presence/alice"). Subscriptions are push-based and
// always deliver the entire current snapshot of the subscribed node, never a
// diff.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrClosed is returned by operations on a store that has been closed.
	ErrClosed = errors.New("store: closed")

	// ErrInvalidPath is returned for empty paths or paths with empty segments.
	ErrInvalidPath = errors.New("store: invalid path")
)

// SnapshotFunc receives the full current state of a subscribed node.
type SnapshotFunc func(Snapshot)

// Subscription is a live listener on a node. Cancel is idempotent and must be
// called when the owning screen or component goes away.
type Subscription interface {
	Cancel()
}

// Store is the realtime database contract. All blocking operations take a
// context; subscriptions are long-lived and resume their handler on every
// remote change.
type Store interface {
	// ReadOnce fetches the current snapshot of a node.
	ReadOnce(ctx context.Context, path string) (Snapshot, error)

	// Subscribe registers fn for the node at path. The current snapshot is
	// delivered immediately, then again after every change to the node or
	// anything beneath it.
	Subscribe(path string, fn SnapshotFunc) (Subscription, error)

	// Write replaces the node at path with value, discarding any children.
	Write(ctx context.Context, path string, value any) error

	// Update merges fields into the object stored at path, creating it if
	// absent. Setting a field to its current value is a no-op. Only leaf
	// nodes hold an object value, so updating a node that has children is
	// an error.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Append adds value under path with a generated child id and returns it.
	// Generated ids sort in creation order.
	Append(ctx context.Context, path string, value any) (string, error)

	// OnDisconnectWrite registers a server-side last-will write of value to
	// path, executed if the connection drops without a clean teardown.
	OnDisconnectWrite(path string, value any) error

	Close() error
}

// Snapshot is the full JSON state of a node at one point in time. The zero
// value represents an absent node.
type Snapshot struct {
	raw json.RawMessage
}

// NewSnapshot wraps raw JSON as a snapshot.
func NewSnapshot(raw json.RawMessage) Snapshot {
	return Snapshot{raw: raw}
}

// Exists reports whether the node was present.
func (s Snapshot) Exists() bool {
	return len(s.raw) > 0 && string(s.raw) != "null"
}

// Raw returns the underlying JSON, or nil for an absent node.
func (s Snapshot) Raw() json.RawMessage {
	if !s.Exists() {
		return nil
	}
	return s.raw
}

// Decode unmarshals the snapshot into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists() {
		return errors.New("store: snapshot is empty")
	}
	return json.Unmarshal(s.raw, v)
}

// Children decodes a collection node into its child id -> value map. An
// absent node yields an empty map.
func (s Snapshot) Children() (map[string]json.RawMessage, error) {
	if !s.Exists() {
		return map[string]json.RawMessage{}, nil
	}
	children := make(map[string]json.RawMessage)
	if err := json.Unmarshal(s.raw, &children); err != nil {
		return nil, err
	}
	return children, nil
}

// ChildIDs returns the child ids of a collection node in lexicographic order.
func (s Snapshot) ChildIDs() ([]string, error) {
	children, err := s.Children()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(children))
	for id := range children {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// NewPushID generates a store-assigned child id. UUIDv7 encodes the creation
// time in its leading bits, so ids compare lexicographically in creation
// order even for same-millisecond appends.
func NewPushID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// splitPath validates and splits a slash-separated path.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if seg == "" {
			return nil, ErrInvalidPath
		}
	}
	return segments, nil
}

// pathsRelated reports whether one path is the other or an ancestor of it,
// segment-wise. A mutation at one of the paths is visible in a snapshot of
// the other.
func pathsRelated(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
