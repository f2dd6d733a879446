// Package directory maintains the list of known users and resolves the
// conversation shared by a pair of them.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tassianasc/blablachat/internal/store"
)

const (
	usersPath         = "users"
	conversationsPath = "conversations"

	// conversationSeparator joins the sorted participant names into an id.
	conversationSeparator = "_"
)

// User is a directory entry. Entries are created on registration and never
// change afterwards.
type User struct {
	Username string `json:"username"`
}

// Conversation is the durable pairing of two participants plus the
// denormalized preview of their latest message.
type Conversation struct {
	Participants       map[string]bool `json:"participants"`
	LastMessagePreview string          `json:"lastMessagePreview"`
	LastMessageAt      int64           `json:"lastMessageAt"`
}

// Service reads and writes directory state in the realtime store.
type Service struct {
	store store.Store
	log   *slog.Logger
}

func NewService(st store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, log: log}
}

// ResolveConversationID derives the deterministic conversation id for a pair
// of users: the two usernames sorted lexicographically and joined. Both
// participants compute the same id no matter who initiates.
func ResolveConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + conversationSeparator + b
}

// ListOtherUsers subscribes to the user directory and invokes fn with the
// full current set, minus self, on every change. The list is sorted by
// username so redeliveries render stably.
func (s *Service) ListOtherUsers(self string, fn func([]User)) (store.Subscription, error) {
	return s.store.Subscribe(usersPath, func(snap store.Snapshot) {
		children, err := snap.Children()
		if err != nil {
			s.log.Warn("bad users snapshot", "error", err)
			return
		}
		users := make([]User, 0, len(children))
		for _, raw := range children {
			var u User
			if err := store.NewSnapshot(raw).Decode(&u); err != nil {
				continue
			}
			if u.Username == "" || u.Username == self {
				continue
			}
			users = append(users, u)
		}
		sort.Slice(users, func(i, j int) bool {
			return strings.Compare(users[i].Username, users[j].Username) < 0
		})
		fn(users)
	})
}

// EnsureConversation creates the conversation record on first contact. Both
// participants may race here; they write identical records to the same key,
// so last-writer-wins resolves it.
func (s *Service) EnsureConversation(ctx context.Context, id, a, b string) (Conversation, error) {
	path := conversationsPath + "/" + id
	snap, err := s.store.ReadOnce(ctx, path)
	if err != nil {
		return Conversation{}, fmt.Errorf("directory: read conversation %s: %w", id, err)
	}
	if snap.Exists() {
		var conv Conversation
		if err := snap.Decode(&conv); err != nil {
			return Conversation{}, fmt.Errorf("directory: decode conversation %s: %w", id, err)
		}
		return conv, nil
	}

	conv := Conversation{
		Participants:       map[string]bool{a: true, b: true},
		LastMessagePreview: "",
		LastMessageAt:      0,
	}
	if err := s.store.Write(ctx, path, conv); err != nil {
		return Conversation{}, fmt.Errorf("directory: create conversation %s: %w", id, err)
	}
	s.log.Info("conversation created", "id", id)
	return conv, nil
}
