package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialState(t *testing.T) {
	s := New()
	assert.Equal(t, ScreenLogin, s.Screen())
	assert.Empty(t, s.Username())
	assert.Empty(t, s.Conversation().ID)
}

func TestFullFlow(t *testing.T) {
	s := New()

	require.NoError(t, s.LoggedIn("alice"))
	assert.Equal(t, ScreenContacts, s.Screen())
	assert.Equal(t, "alice", s.Username())

	require.NoError(t, s.OpenChat("alice_bob", "bob"))
	assert.Equal(t, ScreenChat, s.Screen())
	assert.Equal(t, Conversation{ID: "alice_bob", Contact: "bob"}, s.Conversation())

	require.NoError(t, s.CloseChat())
	assert.Equal(t, ScreenContacts, s.Screen())
	assert.Empty(t, s.Conversation().ID, "leaving chat clears the selection")
	assert.Equal(t, "alice", s.Username(), "identity survives leaving chat")

	s.Logout()
	assert.Equal(t, ScreenLogin, s.Screen())
	assert.Empty(t, s.Username())
}

func TestInvalidTransitions(t *testing.T) {
	s := New()
	assert.Error(t, s.OpenChat("a_b", "b"), "cannot open chat before login")
	assert.Error(t, s.CloseChat())

	require.NoError(t, s.LoggedIn("alice"))
	assert.Error(t, s.LoggedIn("bob"), "already logged in")

	require.NoError(t, s.OpenChat("alice_bob", "bob"))
	assert.Error(t, s.OpenChat("alice_carol", "carol"), "already in a chat")
}

func TestLogoutFromChatClearsEverything(t *testing.T) {
	s := New()
	require.NoError(t, s.LoggedIn("alice"))
	require.NoError(t, s.OpenChat("alice_bob", "bob"))

	s.Logout()
	assert.Equal(t, ScreenLogin, s.Screen())
	assert.Empty(t, s.Username())
	assert.Empty(t, s.Conversation().ID)
}

func TestLoggedInRejectsEmptyUsername(t *testing.T) {
	s := New()
	assert.Error(t, s.LoggedIn(""))
}

func TestScreenString(t *testing.T) {
	assert.Equal(t, "login", ScreenLogin.String())
	assert.Equal(t, "contacts", ScreenContacts.String())
	assert.Equal(t, "chat", ScreenChat.String())
}
