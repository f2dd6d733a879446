// Package presence publishes the local user's online status and watches a
// contact's. Presence is best-effort: a failed write leaves the UI stale
// rather than failing the session.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tassianasc/blablachat/internal/store"
)

const presencePath = "presence"

// Record is a user's self-reported status. Only that user's own session
// writes it; everyone else just reads.
type Record struct {
	IsOnline    bool  `json:"isOnline"`
	LastChanged int64 `json:"lastChanged"`
}

// Tracker owns the presence record of one user for the lifetime of a session.
type Tracker struct {
	store store.Store
	self  string
	log   *slog.Logger
	now   func() time.Time
}

func NewTracker(st store.Store, self string, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{store: st, self: self, log: log, now: time.Now}
}

// Start marks the user online and registers the server-side last-will write
// that flips them offline if the connection drops without a clean teardown.
func (t *Tracker) Start(ctx context.Context) error {
	path := presencePath + "/" + t.self
	if err := t.store.Write(ctx, path, Record{IsOnline: true, LastChanged: t.now().UnixMilli()}); err != nil {
		return fmt.Errorf("presence: go online: %w", err)
	}
	if err := t.store.OnDisconnectWrite(path, Record{IsOnline: false, LastChanged: t.now().UnixMilli()}); err != nil {
		return fmt.Errorf("presence: register last-will: %w", err)
	}
	return nil
}

// Stop marks the user offline explicitly. Idempotent with the last-will
// write; running both is harmless.
func (t *Tracker) Stop(ctx context.Context) error {
	path := presencePath + "/" + t.self
	if err := t.store.Write(ctx, path, Record{IsOnline: false, LastChanged: t.now().UnixMilli()}); err != nil {
		return fmt.Errorf("presence: go offline: %w", err)
	}
	return nil
}

// Watch subscribes to a contact's presence record. fn sees false for an
// absent record: a user who never connected is simply offline.
func (t *Tracker) Watch(contact string, fn func(online bool)) (store.Subscription, error) {
	return t.store.Subscribe(presencePath+"/"+contact, func(snap store.Snapshot) {
		var rec Record
		if snap.Exists() {
			if err := snap.Decode(&rec); err != nil {
				t.log.Warn("bad presence record", "contact", contact, "error", err)
				return
			}
		}
		fn(rec.IsOnline)
	})
}
