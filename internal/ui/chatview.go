package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tassianasc/blablachat/internal/chat"
)

// chatMode is the compose field's current role.
type chatMode int

const (
	modeCompose chatMode = iota
	modeAttach           // input holds a local file path
	modeEdit             // input rewrites an existing message
	modeEmoji            // palette is open, input untouched
	modeSelect           // picking one of the user's own messages to edit
)

const chromeHeight = 6 // header, status, input, help and padding

// chatModel renders one open conversation: the message timeline in a
// viewport, a presence header and the multi-role compose field.
type chatModel struct {
	self           string
	contact        string
	conversationID string
	online         bool

	messages []chat.Message
	vp       viewport.Model
	input    textinput.Model

	mode       chatMode
	draft      string
	editTarget chat.Message
	selectIdx  int
	emojiIdx   int
	uploading  bool
	status     string

	width  int
	height int
	theme  Theme
}

func newChatModel(self, contact, conversationID string, th Theme, width, height int) chatModel {
	input := textinput.New()
	input.Placeholder = "message " + contact
	input.CharLimit = 2000
	input.Focus()

	m := chatModel{
		self:           self,
		contact:        contact,
		conversationID: conversationID,
		input:          input,
		theme:          th,
		width:          width,
		height:         height,
	}
	m.vp = viewport.New(max(width, 20), max(height-chromeHeight, 3))
	return m
}

func (m chatModel) resize(width, height int) chatModel {
	m.width = width
	m.height = height
	m.vp.Width = max(width, 20)
	m.vp.Height = max(height-chromeHeight, 3)
	m.vp.SetContent(m.renderTimeline())
	m.vp.GotoBottom()
	return m
}

func (m chatModel) setTheme(th Theme) chatModel {
	m.theme = th
	m.vp.SetContent(m.renderTimeline())
	return m
}

// setMessages replaces the timeline wholesale and scrolls to the newest
// message, matching the full-rebuild delivery of the store subscription.
func (m chatModel) setMessages(msgs []chat.Message) chatModel {
	m.messages = msgs
	m.uploading = false
	m.vp.SetContent(m.renderTimeline())
	m.vp.GotoBottom()
	return m
}

func (m chatModel) setPresence(online bool) chatModel {
	m.online = online
	return m
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}

	switch m.mode {
	case modeEmoji:
		return m.updateEmoji(key)
	case modeSelect:
		return m.updateSelect(key)
	case modeAttach:
		return m.updateAttach(key)
	case modeEdit:
		return m.updateEdit(key)
	}
	return m.updateCompose(key)
}

func (m chatModel) updateCompose(key tea.KeyMsg) (chatModel, tea.Cmd) {
	switch key.String() {
	case "esc":
		return m, func() tea.Msg { return backMsg{} }
	case "ctrl+q":
		return m, func() tea.Msg { return logoutMsg{} }
	case "ctrl+a":
		m.mode = modeAttach
		m.draft = m.input.Value()
		m.input.SetValue("")
		m.input.Placeholder = "path to file"
		m.status = ""
		return m, nil
	case "ctrl+o":
		m.mode = modeEmoji
		m.emojiIdx = 0
		return m, nil
	case "ctrl+s":
		idx, ok := m.lastAttachmentIndex()
		if !ok {
			m.status = "no attachment to save"
			return m, nil
		}
		target := m.messages[idx]
		m.status = "saving " + target.AttachmentName + "..."
		return m, func() tea.Msg { return saveAttachmentMsg{Target: target} }
	case "ctrl+e":
		if idx, ok := m.lastOwnTextIndex(); ok {
			m.mode = modeSelect
			m.selectIdx = idx
			m.vp.SetContent(m.renderTimeline())
		} else {
			m.status = "nothing to edit"
		}
		return m, nil
	case "up":
		// Arrow-up on an empty field edits the most recent own message.
		if m.input.Value() == "" {
			if idx, ok := m.lastOwnTextIndex(); ok {
				return m.startEdit(m.messages[idx]), nil
			}
			m.status = "nothing to edit"
			return m, nil
		}
	case "enter":
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		m.status = ""
		return m, func() tea.Msg { return sendTextMsg{Text: text} }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m chatModel) updateAttach(key tea.KeyMsg) (chatModel, tea.Cmd) {
	switch key.String() {
	case "esc":
		return m.endInputMode(), nil
	case "enter":
		path := strings.TrimSpace(m.input.Value())
		if path == "" {
			return m, nil
		}
		m = m.endInputMode()
		m.uploading = true
		m.status = "sending " + path + "..."
		return m, func() tea.Msg { return sendFileMsg{Path: path} }
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m chatModel) updateEdit(key tea.KeyMsg) (chatModel, tea.Cmd) {
	switch key.String() {
	case "esc":
		return m.endInputMode(), nil
	case "ctrl+a":
		m.status = "finish editing before attaching"
		return m, nil
	case "enter":
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		target := m.editTarget
		m = m.endInputMode()
		return m, func() tea.Msg { return editMsg{Target: target, NewText: text} }
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m chatModel) updateEmoji(key tea.KeyMsg) (chatModel, tea.Cmd) {
	switch key.String() {
	case "esc", "ctrl+o":
		m.mode = modeCompose
	case "left", "h":
		if m.emojiIdx > 0 {
			m.emojiIdx--
		}
	case "right", "l":
		if m.emojiIdx < len(emojiPalette)-1 {
			m.emojiIdx++
		}
	case "enter":
		m.input.SetValue(m.input.Value() + emojiPalette[m.emojiIdx])
		m.input.CursorEnd()
		m.mode = modeCompose
	}
	return m, nil
}

func (m chatModel) updateSelect(key tea.KeyMsg) (chatModel, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.mode = modeCompose
		m.vp.SetContent(m.renderTimeline())
	case "up", "k":
		if idx, ok := m.ownTextIndexBefore(m.selectIdx); ok {
			m.selectIdx = idx
			m.vp.SetContent(m.renderTimeline())
		}
	case "down", "j":
		if idx, ok := m.ownTextIndexAfter(m.selectIdx); ok {
			m.selectIdx = idx
			m.vp.SetContent(m.renderTimeline())
		}
	case "enter":
		target := m.messages[m.selectIdx]
		m = m.startEdit(target)
		m.vp.SetContent(m.renderTimeline())
	}
	return m, nil
}

func (m chatModel) startEdit(target chat.Message) chatModel {
	m.mode = modeEdit
	m.editTarget = target
	m.draft = m.input.Value()
	m.input.SetValue(target.Text)
	m.input.CursorEnd()
	m.status = ""
	return m
}

// endInputMode restores the compose field after attach or edit.
func (m chatModel) endInputMode() chatModel {
	m.mode = modeCompose
	m.editTarget = chat.Message{}
	m.input.SetValue(m.draft)
	m.input.CursorEnd()
	m.input.Placeholder = "message " + m.contact
	m.draft = ""
	m.status = ""
	return m
}

func (m chatModel) lastOwnTextIndex() (int, bool) {
	return m.ownTextIndexBefore(len(m.messages))
}

func (m chatModel) lastAttachmentIndex() (int, bool) {
	for j := len(m.messages) - 1; j >= 0; j-- {
		if m.messages[j].Kind != chat.KindText {
			return j, true
		}
	}
	return 0, false
}

func (m chatModel) ownTextIndexBefore(i int) (int, bool) {
	for j := i - 1; j >= 0; j-- {
		if m.messages[j].From == m.self && m.messages[j].Kind == chat.KindText {
			return j, true
		}
	}
	return 0, false
}

func (m chatModel) ownTextIndexAfter(i int) (int, bool) {
	for j := i + 1; j < len(m.messages); j++ {
		if m.messages[j].From == m.self && m.messages[j].Kind == chat.KindText {
			return j, true
		}
	}
	return 0, false
}

func (m chatModel) renderTimeline() string {
	var b strings.Builder
	for i, msg := range m.messages {
		line := m.renderMessage(msg)
		if m.mode == modeSelect && i == m.selectIdx {
			line = m.theme.Selected.Render("»") + " " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m chatModel) renderMessage(msg chat.Message) string {
	th := m.theme
	body := msg.Text
	if msg.Kind != chat.KindText {
		body = attachmentIcon(msg.Kind) + " " + th.FileLink.Render(msg.AttachmentName) +
			" (" + strings.ToLower(string(msg.Kind)) + ")"
	}
	if msg.Edited {
		body += th.Edited.Render(" (edited)")
	}
	ts := th.Timestamp.Render(time.UnixMilli(msg.CreatedAt).Format("15:04"))

	if msg.From == m.self {
		tick := th.SentTick.Render("✓")
		if msg.Read {
			tick = th.ReadTick.Render("✓✓")
		}
		bubble := th.MyBubble.Render(body) + " " + ts + " " + tick
		return lipgloss.PlaceHorizontal(m.vp.Width, lipgloss.Right, bubble)
	}
	return th.Sender.Render(msg.From) + " " + th.OtherBubble.Render(body) + " " + ts
}

func (m chatModel) View(th Theme) string {
	status := th.Offline.Render("● offline")
	if m.online {
		status = th.Online.Render("● online")
	}
	header := th.Header.Render(m.contact) + " " + status

	var b strings.Builder
	b.WriteString(header + "\n")
	b.WriteString(m.vp.View() + "\n")

	switch {
	case m.mode == modeEdit && m.status != "":
		b.WriteString(th.Error.Render(m.status) + "\n")
	case m.mode == modeEdit:
		b.WriteString(th.Banner.Render("editing · enter save · esc cancel") + "\n")
	case m.mode == modeAttach:
		b.WriteString(th.Banner.Render("attach file · enter send · esc cancel") + "\n")
	case m.mode == modeSelect:
		b.WriteString(th.Banner.Render("pick a message · ↑/↓ move · enter edit · esc cancel") + "\n")
	case m.mode == modeEmoji:
		b.WriteString(th.EmojiPalette.Render(m.renderEmojiRow(th)) + "\n")
	case m.uploading:
		b.WriteString(th.Notice.Render("uploading...") + "\n")
	case m.status != "":
		b.WriteString(th.Error.Render(m.status) + "\n")
	default:
		b.WriteString("\n")
	}

	b.WriteString(th.InputPrompt.Render("> ") + m.input.View() + "\n")
	b.WriteString(th.Help.Render("enter send · ↑ edit last · ctrl+e pick edit · ctrl+a attach · ctrl+s save file · ctrl+o emoji · esc back · ctrl+q log out"))
	return b.String()
}

func (m chatModel) renderEmojiRow(th Theme) string {
	parts := make([]string, len(emojiPalette))
	for i, e := range emojiPalette {
		if i == m.emojiIdx {
			parts[i] = th.Selected.Render(e)
		} else {
			parts[i] = e
		}
	}
	return strings.Join(parts, " ")
}

func attachmentIcon(k chat.Kind) string {
	switch k {
	case chat.KindImage:
		return "🖼"
	case chat.KindPDF:
		return "📄"
	default:
		return "📎"
	}
}
