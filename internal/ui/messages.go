package ui

import (
	"github.com/tassianasc/blablachat/internal/attachment"
	"github.com/tassianasc/blablachat/internal/auth"
	"github.com/tassianasc/blablachat/internal/chat"
	"github.com/tassianasc/blablachat/internal/directory"
)

// Messages produced by screen models and async commands. Screens never touch
// the store directly; they emit one of these and the root model reacts.

// submitLoginMsg carries the login form contents on enter.
type submitLoginMsg struct {
	Username string
	Secret   string
}

// loginDoneMsg reports the outcome of an authentication attempt.
type loginDoneMsg struct {
	Result auth.Result
	Err    error
}

// usersChangedMsg is pushed whenever the user directory changes.
type usersChangedMsg struct {
	Users []directory.User
}

// openContactMsg asks the root model to open a conversation with a contact.
type openContactMsg struct {
	Contact string
}

// chatOpenedMsg reports that the conversation record exists and the chat
// screen can take over.
type chatOpenedMsg struct {
	ConversationID string
	Contact        string
	Err            error
}

// conversationViewMsg carries a freshly rebuilt message view. The id guards
// against late deliveries from a conversation that was already closed.
type conversationViewMsg struct {
	ConversationID string
	Messages       []chat.Message
}

// presenceChangedMsg is pushed on every presence transition of the open
// conversation's contact.
type presenceChangedMsg struct {
	Contact string
	Online  bool
}

// sendTextMsg asks the root model to send the composed text.
type sendTextMsg struct {
	Text string
}

// sendFileMsg asks the root model to inline-encode and send a local file.
type sendFileMsg struct {
	Path string
}

// attachmentSentMsg reports the outcome of an attachment send.
type attachmentSentMsg struct {
	Inline attachment.Inline
	Err    error
}

// saveAttachmentMsg asks the root model to export a received attachment to
// disk.
type saveAttachmentMsg struct {
	Target chat.Message
}

// attachmentSavedMsg reports the outcome of an attachment export.
type attachmentSavedMsg struct {
	Path string
	Err  error
}

// editMsg asks the root model to rewrite one of the user's own messages.
type editMsg struct {
	Target  chat.Message
	NewText string
}

// opFailedMsg surfaces a failed send or edit as a status line.
type opFailedMsg struct {
	Err error
}

// backMsg returns from chat to contacts.
type backMsg struct{}

// logoutMsg tears the session down back to the login screen.
type logoutMsg struct{}
