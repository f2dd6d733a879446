// Package session holds the process-wide UI state triad: current screen,
// logged-in identity and active conversation. Transitions happen only on
// explicit user actions; nothing persists across restarts.
package session

import "fmt"

// Screen is the client's current top-level view.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenContacts
	ScreenChat
)

func (s Screen) String() string {
	switch s {
	case ScreenLogin:
		return "login"
	case ScreenContacts:
		return "contacts"
	case ScreenChat:
		return "chat"
	default:
		return fmt.Sprintf("Screen(%d)", int(s))
	}
}

// Conversation is the active chat selection.
type Conversation struct {
	ID      string
	Contact string
}

// Session is threaded explicitly through the components that need it rather
// than living in package globals.
type Session struct {
	screen       Screen
	username     string
	conversation Conversation
}

// New starts at the login screen with no identity.
func New() *Session {
	return &Session{screen: ScreenLogin}
}

func (s *Session) Screen() Screen             { return s.screen }
func (s *Session) Username() string           { return s.username }
func (s *Session) Conversation() Conversation { return s.conversation }

// LoggedIn records a successful authentication and moves to contacts.
func (s *Session) LoggedIn(username string) error {
	if s.screen != ScreenLogin {
		return fmt.Errorf("session: cannot log in from %s", s.screen)
	}
	if username == "" {
		return fmt.Errorf("session: empty username")
	}
	s.username = username
	s.screen = ScreenContacts
	return nil
}

// OpenChat selects a conversation and moves to the chat screen.
func (s *Session) OpenChat(conversationID, contact string) error {
	if s.screen != ScreenContacts {
		return fmt.Errorf("session: cannot open chat from %s", s.screen)
	}
	s.conversation = Conversation{ID: conversationID, Contact: contact}
	s.screen = ScreenChat
	return nil
}

// CloseChat returns to contacts, clearing the conversation selection.
func (s *Session) CloseChat() error {
	if s.screen != ScreenChat {
		return fmt.Errorf("session: cannot close chat from %s", s.screen)
	}
	s.conversation = Conversation{}
	s.screen = ScreenContacts
	return nil
}

// Logout clears identity and selection and returns to login. Valid from any
// screen: the chat header has its own logout control.
func (s *Session) Logout() {
	s.conversation = Conversation{}
	s.username = ""
	s.screen = ScreenLogin
}
