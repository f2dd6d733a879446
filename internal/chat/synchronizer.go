// Package chat keeps a local, ordered view of one conversation's message
// stream in sync with the store, and pushes sends and edits back into it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tassianasc/blablachat/internal/attachment"
	"github.com/tassianasc/blablachat/internal/store"
)

const (
	messagesPath      = "messages"
	conversationsPath = "conversations"

	markReadTimeout = 10 * time.Second
)

var (
	// ErrEmptyMessage rejects blank sends and edits before any I/O.
	ErrEmptyMessage = errors.New("chat: message text is empty")

	// ErrNotEditable rejects edits of image, pdf and document messages.
	ErrNotEditable = errors.New("chat: only text messages can be edited")

	// ErrNotAuthor rejects edits of someone else's message.
	ErrNotAuthor = errors.New("chat: only the author can edit a message")
)

// ViewFunc receives the freshly rebuilt message view. Every call replaces
// the previous view wholesale and doubles as the cue to scroll to the newest
// message.
type ViewFunc func([]Message)

// Synchronizer is the live state of one open conversation. It owns exactly
// one store subscription, released by Close on every exit path.
type Synchronizer struct {
	store          store.Store
	log            *slog.Logger
	conversationID string
	self           string
	counterpart    string
	view           ViewFunc
	now            func() time.Time

	sub       store.Subscription
	closeOnce sync.Once
}

// Open subscribes to the conversation's message stream. The current view is
// delivered immediately, then again after every remote change. Inbound
// messages not yet marked read are read-marked as a side effect of each
// rebuild.
func Open(st store.Store, conversationID, self, counterpart string, view ViewFunc, log *slog.Logger) (*Synchronizer, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Synchronizer{
		store:          st,
		log:            log,
		conversationID: conversationID,
		self:           self,
		counterpart:    counterpart,
		view:           view,
		now:            time.Now,
	}
	sub, err := st.Subscribe(messagesPath+"/"+conversationID, s.onSnapshot)
	if err != nil {
		return nil, fmt.Errorf("chat: subscribe %s: %w", conversationID, err)
	}
	s.sub = sub
	return s, nil
}

// Close releases the subscription. Idempotent.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		s.sub.Cancel()
	})
}

func (s *Synchronizer) onSnapshot(snap store.Snapshot) {
	messages, err := Rebuild(snap)
	if err != nil {
		s.log.Warn("bad message snapshot", "conversation", s.conversationID, "error", err)
		return
	}
	s.view(messages)

	// Fire-and-forget read-marking. Completion is observed through the next
	// snapshot, and re-marking an already-read message is a no-op, so
	// redundant updates from near-simultaneous rebuilds are harmless.
	for _, m := range messages {
		if m.To == s.self && !m.Read {
			go s.markRead(m.ID)
		}
	}
}

func (s *Synchronizer) markRead(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), markReadTimeout)
	defer cancel()
	path := messagesPath + "/" + s.conversationID + "/" + id
	if err := s.store.Update(ctx, path, map[string]any{"read": true}); err != nil {
		s.log.Warn("mark-as-read failed", "message", id, "error", err)
	}
}

// SendText appends a text message and refreshes the conversation preview.
func (s *Synchronizer) SendText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	return s.append(ctx, Message{
		From:      s.self,
		To:        s.counterpart,
		Kind:      KindText,
		Text:      text,
		CreatedAt: s.now().UnixMilli(),
	})
}

// SendAttachment appends a message carrying an inline-encoded file.
func (s *Synchronizer) SendAttachment(ctx context.Context, att attachment.Inline) error {
	return s.append(ctx, Message{
		From:           s.self,
		To:             s.counterpart,
		Kind:           Kind(att.Kind),
		AttachmentURI:  att.URI,
		AttachmentName: att.Name,
		CreatedAt:      s.now().UnixMilli(),
	})
}

// append pushes the message, then updates the conversation's preview fields.
// The two writes are not transactional: if the preview update fails the
// stream is still correct and the preview is merely stale, so the send is
// reported as successful.
func (s *Synchronizer) append(ctx context.Context, msg Message) error {
	if _, err := s.store.Append(ctx, messagesPath+"/"+s.conversationID, msg); err != nil {
		return fmt.Errorf("chat: send: %w", err)
	}
	err := s.store.Update(ctx, conversationsPath+"/"+s.conversationID, map[string]any{
		"lastMessagePreview": msg.Preview(),
		"lastMessageAt":      msg.CreatedAt,
	})
	if err != nil {
		s.log.Warn("preview update failed", "conversation", s.conversationID, "error", err)
	}
	return nil
}

// Edit rewrites the text of the author's own text message, marks it edited
// and refreshes its createdAt, which reorders it to the end of the timeline.
// Policy violations are rejected before any I/O.
func (s *Synchronizer) Edit(ctx context.Context, msg Message, newText string) error {
	if msg.Kind != KindText {
		return ErrNotEditable
	}
	if msg.From != s.self {
		return ErrNotAuthor
	}
	if strings.TrimSpace(newText) == "" {
		return ErrEmptyMessage
	}
	path := messagesPath + "/" + s.conversationID + "/" + msg.ID
	err := s.store.Update(ctx, path, map[string]any{
		"text":      newText,
		"edited":    true,
		"createdAt": s.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("chat: edit %s: %w", msg.ID, err)
	}
	return nil
}
