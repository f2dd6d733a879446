package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// loginModel is the two-field login form. Submitting an unknown username
// registers it, so there is no separate sign-up screen.
type loginModel struct {
	username textinput.Model
	secret   textinput.Model
	focused  int
	status   string
	busy     bool
}

func newLoginModel() loginModel {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 32
	username.Focus()

	secret := textinput.New()
	secret.Placeholder = "password"
	secret.CharLimit = 64
	secret.EchoMode = textinput.EchoPassword
	secret.EchoCharacter = '*'

	return loginModel{username: username, secret: secret}
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && !m.busy {
		switch key.String() {
		case "tab", "shift+tab", "up", "down":
			m.focused = (m.focused + 1) % 2
			if m.focused == 0 {
				m.secret.Blur()
				return m, m.username.Focus()
			}
			m.username.Blur()
			return m, m.secret.Focus()
		case "enter":
			username := strings.TrimSpace(m.username.Value())
			secret := m.secret.Value()
			if username == "" || strings.TrimSpace(secret) == "" {
				m.status = "username and password are required"
				return m, nil
			}
			m.busy = true
			m.status = "signing in..."
			return m, func() tea.Msg { return submitLoginMsg{Username: username, Secret: secret} }
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.username, cmd = m.username.Update(msg)
	cmds = append(cmds, cmd)
	m.secret, cmd = m.secret.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// failed resets the form after a rejected attempt.
func (m loginModel) failed(reason string) loginModel {
	m.busy = false
	m.status = reason
	m.secret.Reset()
	return m
}

func (m loginModel) View(th Theme) string {
	var b strings.Builder
	b.WriteString(th.Title.Render("BlaBlaChat") + "\n\n")
	b.WriteString(m.username.View() + "\n")
	b.WriteString(m.secret.View() + "\n\n")
	if m.status != "" {
		style := th.Error
		if m.busy {
			style = th.Notice
		}
		b.WriteString(style.Render(m.status) + "\n\n")
	}
	b.WriteString(th.Help.Render("enter sign in (new usernames are registered) · tab switch field · ctrl+t theme · ctrl+c quit"))
	return b.String()
}
