package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tassianasc/blablachat/internal/directory"
)

// contactsModel renders the live user directory. Every registered user except
// the viewer is a contact; the list re-sorts itself on each directory change.
type contactsModel struct {
	self   string
	users  []directory.User
	cursor int
	status string
}

func newContactsModel(self string) contactsModel {
	return contactsModel{self: self}
}

func (m contactsModel) setUsers(users []directory.User) contactsModel {
	m.users = users
	if m.cursor >= len(users) {
		m.cursor = len(users) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m
}

func (m contactsModel) Update(msg tea.Msg) (contactsModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.users)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.users) == 0 {
			return m, nil
		}
		contact := m.users[m.cursor].Username
		m.status = "opening chat with " + contact + "..."
		return m, func() tea.Msg { return openContactMsg{Contact: contact} }
	case "ctrl+q", "esc":
		return m, func() tea.Msg { return logoutMsg{} }
	}
	return m, nil
}

func (m contactsModel) View(th Theme) string {
	var b strings.Builder
	b.WriteString(th.Header.Render(fmt.Sprintf("Contacts · %s", m.self)) + "\n\n")

	if len(m.users) == 0 {
		b.WriteString(th.Help.Render("nobody else here yet") + "\n")
	}
	for i, u := range m.users {
		line := "  " + u.Username
		if i == m.cursor {
			line = th.Selected.Render("> " + u.Username)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(th.Notice.Render(m.status) + "\n")
	}
	b.WriteString(th.Help.Render("enter open chat · esc log out · ctrl+t theme · ctrl+c quit"))
	return b.String()
}
