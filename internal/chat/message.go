package chat

import (
	"sort"
	"strings"

	"github.com/tassianasc/blablachat/internal/store"
)

// Kind discriminates what a message carries.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindPDF      Kind = "pdf"
	KindDocument Kind = "document"
)

// Message is one entry in a conversation's stream. The id is assigned by the
// store on append. Except for the read flag (false -> true, once) and an
// author editing their own text message, a message never changes.
type Message struct {
	ID             string `json:"-"`
	From           string `json:"from"`
	To             string `json:"to"`
	Kind           Kind   `json:"kind"`
	Text           string `json:"text,omitempty"`
	AttachmentURI  string `json:"attachmentUri,omitempty"`
	AttachmentName string `json:"attachmentName,omitempty"`
	CreatedAt      int64  `json:"createdAt"` // unix milliseconds
	Read           bool   `json:"read"`
	Edited         bool   `json:"edited"`
}

// Preview is the denormalized one-liner stored on the conversation.
func (m Message) Preview() string {
	if m.Kind == KindText {
		return m.Text
	}
	return "[" + strings.ToUpper(string(m.Kind)) + "] " + m.AttachmentName
}

// Rebuild maps a raw collection snapshot to the sorted message view. It is a
// pure function of the snapshot: every notification rebuilds the whole view
// from scratch, ordered by createdAt ascending with the store-assigned id as
// tie-break (push ids sort in creation order).
func Rebuild(snap store.Snapshot) ([]Message, error) {
	children, err := snap.Children()
	if err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(children))
	for id, raw := range children {
		var m Message
		if err := store.NewSnapshot(raw).Decode(&m); err != nil {
			continue
		}
		m.ID = id
		messages = append(messages, m)
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt != messages[j].CreatedAt {
			return messages[i].CreatedAt < messages[j].CreatedAt
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}
