// Package ui is the terminal client: a bubbletea program with three screens
// (login, contacts, chat) driven by the session state machine. Screens emit
// intent messages; the root App model is the only place that talks to the
// store-backed services.
package ui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tassianasc/blablachat/internal/attachment"
	"github.com/tassianasc/blablachat/internal/auth"
	"github.com/tassianasc/blablachat/internal/chat"
	"github.com/tassianasc/blablachat/internal/directory"
	"github.com/tassianasc/blablachat/internal/presence"
	"github.com/tassianasc/blablachat/internal/session"
	"github.com/tassianasc/blablachat/internal/store"
)

const opTimeout = 10 * time.Second

// App is the root model. It owns the store-facing services and the live
// subscriptions; the screen models are pure rendering and key handling.
type App struct {
	store store.Store
	log   *slog.Logger
	sess  *session.Session
	auth  *auth.Authenticator
	dir   *directory.Service

	theme Theme
	dark  bool

	// send pushes messages from subscription callbacks into the program
	// loop. Wired to tea.Program.Send by the caller.
	send func(tea.Msg)

	// downloadDir receives exported attachments.
	downloadDir string

	width  int
	height int

	login    loginModel
	contacts contactsModel
	chatScr  chatModel

	tracker  *presence.Tracker
	usersSub store.Subscription
	presSub  store.Subscription
	syncer   *chat.Synchronizer
}

func NewApp(st store.Store, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		store:       st,
		log:         log,
		sess:        session.New(),
		auth:        auth.New(st, log),
		dir:         directory.NewService(st, log),
		theme:       DarkTheme(),
		dark:        true,
		login:       newLoginModel(),
		downloadDir: ".",
	}
}

// SetDownloadDir overrides where saved attachments are written.
func (a *App) SetDownloadDir(dir string) {
	if dir != "" {
		a.downloadDir = dir
	}
}

// SetSend wires the async delivery hook. Must be set before any subscription
// fires, i.e. right after tea.NewProgram.
func (a *App) SetSend(send func(tea.Msg)) { a.send = send }

func (a *App) deliver(msg tea.Msg) {
	if a.send != nil {
		a.send(msg)
	}
}

func (a *App) Init() tea.Cmd { return textinput.Blink }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.chatScr = a.chatScr.resize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if stop := a.stopPresenceCmd(); stop != nil {
				return a, tea.Sequence(stop, tea.Quit)
			}
			return a, tea.Quit
		case "ctrl+t":
			a.toggleTheme()
			return a, nil
		}
		return a.routeToScreen(msg)

	case submitLoginMsg:
		return a, a.loginCmd(msg.Username, msg.Secret)

	case loginDoneMsg:
		return a.onLoginDone(msg)

	case usersChangedMsg:
		a.contacts = a.contacts.setUsers(msg.Users)
		return a, nil

	case openContactMsg:
		return a, a.openChatCmd(msg.Contact)

	case chatOpenedMsg:
		return a.onChatOpened(msg)

	case conversationViewMsg:
		if a.sess.Screen() == session.ScreenChat && msg.ConversationID == a.sess.Conversation().ID {
			a.chatScr = a.chatScr.setMessages(msg.Messages)
		}
		return a, nil

	case presenceChangedMsg:
		if a.sess.Screen() == session.ScreenChat && msg.Contact == a.sess.Conversation().Contact {
			a.chatScr = a.chatScr.setPresence(msg.Online)
		}
		return a, nil

	case sendTextMsg:
		syncer := a.syncer
		if syncer == nil {
			return a, nil
		}
		return a, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			if err := syncer.SendText(ctx, msg.Text); err != nil {
				return opFailedMsg{Err: err}
			}
			return nil
		}

	case sendFileMsg:
		return a, a.sendFileCmd(msg.Path)

	case saveAttachmentMsg:
		target := msg.Target
		dir := a.downloadDir
		return a, func() tea.Msg {
			path, err := attachment.Export(target.AttachmentURI, target.AttachmentName, dir)
			return attachmentSavedMsg{Path: path, Err: err}
		}

	case attachmentSavedMsg:
		if msg.Err != nil {
			a.chatScr.status = msg.Err.Error()
		} else {
			a.chatScr.status = "saved " + msg.Path
		}
		return a, nil

	case attachmentSentMsg:
		a.chatScr.uploading = false
		if msg.Err != nil {
			a.chatScr.status = msg.Err.Error()
		} else {
			a.chatScr.status = ""
		}
		return a, nil

	case editMsg:
		syncer := a.syncer
		if syncer == nil {
			return a, nil
		}
		return a, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			if err := syncer.Edit(ctx, msg.Target, msg.NewText); err != nil {
				return opFailedMsg{Err: err}
			}
			return nil
		}

	case opFailedMsg:
		a.chatScr.status = msg.Err.Error()
		return a, nil

	case backMsg:
		a.teardownChat()
		if err := a.sess.CloseChat(); err != nil {
			a.log.Warn("close chat", "error", err)
		}
		a.contacts.status = ""
		return a, nil

	case logoutMsg:
		return a.onLogout()
	}

	return a.routeToScreen(msg)
}

func (a *App) routeToScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.sess.Screen() {
	case session.ScreenLogin:
		a.login, cmd = a.login.Update(msg)
	case session.ScreenContacts:
		a.contacts, cmd = a.contacts.Update(msg)
	case session.ScreenChat:
		a.chatScr, cmd = a.chatScr.Update(msg)
	}
	return a, cmd
}

func (a *App) View() string {
	switch a.sess.Screen() {
	case session.ScreenContacts:
		return a.contacts.View(a.theme)
	case session.ScreenChat:
		return a.chatScr.View(a.theme)
	default:
		return a.login.View(a.theme)
	}
}

func (a *App) toggleTheme() {
	a.dark = !a.dark
	if a.dark {
		a.theme = DarkTheme()
	} else {
		a.theme = LightTheme()
	}
	a.chatScr = a.chatScr.setTheme(a.theme)
}

func (a *App) loginCmd(username, secret string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		res, err := a.auth.Login(ctx, username, secret)
		return loginDoneMsg{Result: res, Err: err}
	}
}

func (a *App) onLoginDone(msg loginDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		reason := msg.Err.Error()
		if errors.Is(msg.Err, auth.ErrBadCredentials) {
			reason = "wrong username or password"
		}
		a.login = a.login.failed(reason)
		return a, nil
	}

	self := msg.Result.Username
	if err := a.sess.LoggedIn(self); err != nil {
		a.log.Warn("login transition", "error", err)
		return a, nil
	}
	a.contacts = newContactsModel(self)
	if msg.Result.Registered {
		a.contacts.status = "account created, welcome " + self
	}

	sub, err := a.dir.ListOtherUsers(self, func(users []directory.User) {
		a.deliver(usersChangedMsg{Users: users})
	})
	if err != nil {
		a.log.Error("subscribe users", "error", err)
	} else {
		a.usersSub = sub
	}

	a.tracker = presence.NewTracker(a.store, self, a.log)
	tracker := a.tracker
	return a, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := tracker.Start(ctx); err != nil {
			return opFailedMsg{Err: err}
		}
		return nil
	}
}

func (a *App) openChatCmd(contact string) tea.Cmd {
	self := a.sess.Username()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		id := directory.ResolveConversationID(self, contact)
		if _, err := a.dir.EnsureConversation(ctx, id, self, contact); err != nil {
			return chatOpenedMsg{Err: err}
		}
		return chatOpenedMsg{ConversationID: id, Contact: contact}
	}
}

func (a *App) onChatOpened(msg chatOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		a.contacts.status = msg.Err.Error()
		return a, nil
	}
	if err := a.sess.OpenChat(msg.ConversationID, msg.Contact); err != nil {
		a.log.Warn("open chat transition", "error", err)
		return a, nil
	}
	a.chatScr = newChatModel(a.sess.Username(), msg.Contact, msg.ConversationID, a.theme, a.width, a.height)

	id := msg.ConversationID
	syncer, err := chat.Open(a.store, id, a.sess.Username(), msg.Contact, func(msgs []chat.Message) {
		a.deliver(conversationViewMsg{ConversationID: id, Messages: msgs})
	}, a.log)
	if err != nil {
		a.contacts.status = err.Error()
		_ = a.sess.CloseChat()
		return a, nil
	}
	a.syncer = syncer

	contact := msg.Contact
	sub, err := a.tracker.Watch(contact, func(online bool) {
		a.deliver(presenceChangedMsg{Contact: contact, Online: online})
	})
	if err != nil {
		a.log.Warn("watch presence", "contact", contact, "error", err)
	} else {
		a.presSub = sub
	}
	return a, nil
}

func (a *App) sendFileCmd(path string) tea.Cmd {
	syncer := a.syncer
	if syncer == nil {
		return nil
	}
	return func() tea.Msg {
		inline, err := attachment.EncodeInline(path)
		if err != nil {
			return attachmentSentMsg{Err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := syncer.SendAttachment(ctx, inline); err != nil {
			return attachmentSentMsg{Err: err}
		}
		return attachmentSentMsg{Inline: inline}
	}
}

func (a *App) onLogout() (tea.Model, tea.Cmd) {
	a.teardownChat()
	if a.usersSub != nil {
		a.usersSub.Cancel()
		a.usersSub = nil
	}
	stop := a.stopPresenceCmd()
	a.tracker = nil
	a.sess.Logout()
	a.login = newLoginModel()
	return a, stop
}

func (a *App) teardownChat() {
	if a.syncer != nil {
		a.syncer.Close()
		a.syncer = nil
	}
	if a.presSub != nil {
		a.presSub.Cancel()
		a.presSub = nil
	}
}

func (a *App) stopPresenceCmd() tea.Cmd {
	tracker := a.tracker
	if tracker == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := tracker.Stop(ctx); err != nil {
			return opFailedMsg{Err: err}
		}
		return nil
	}
}
