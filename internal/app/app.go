// Package app hosts the root Bubble Tea model: view routing, the
// terminal frame, and the bridge between the session manager, the
// notification channel, and the UI.
package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shopcrm/crm-console/internal/api"
	"github.com/shopcrm/crm-console/internal/channel"
	"github.com/shopcrm/crm-console/internal/keys"
	"github.com/shopcrm/crm-console/internal/model"
	"github.com/shopcrm/crm-console/internal/session"
	"github.com/shopcrm/crm-console/internal/theme"
	"github.com/shopcrm/crm-console/internal/ui"
	"github.com/shopcrm/crm-console/internal/ui/command"
	configview "github.com/shopcrm/crm-console/internal/ui/config"
	"github.com/shopcrm/crm-console/internal/ui/detail"
	"github.com/shopcrm/crm-console/internal/ui/feed"
	helpview "github.com/shopcrm/crm-console/internal/ui/help"
	"github.com/shopcrm/crm-console/internal/ui/login"
	"github.com/shopcrm/crm-console/internal/ui/shopswitch"
)

// sessionEventMsg carries a session state snapshot into the UI loop.
type sessionEventMsg struct {
	state session.State
}

// channelEventMsg carries a notification channel event into the UI loop.
type channelEventMsg struct {
	event channel.Event
}

// revalidatedMsg is the outcome of the silent startup revalidation.
type revalidatedMsg struct {
	err error
}

// revalidateTimeout bounds the startup token check so the UI never
// hangs on an unreachable server.
const revalidateTimeout = 15 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewFeed
	ViewDetail
	ViewShopSwitch
	ViewConfig
	ViewHelp
	ViewCommand
)

// Model is the root Bubble Tea model that manages view routing, layout,
// and the session/channel subscriptions.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	cfg     *model.AppConfig
	cfgPath string

	manager   *session.Manager
	channel   *channel.Channel
	apiClient *api.Client

	sessionEvents <-chan session.State
	channelEvents <-chan channel.Event
	cancelSession func()
	cancelChannel func()

	loginView  login.Model
	feedView   feed.Model
	detailView detail.Model
	shopView   shopswitch.Model
	configView configview.Model
	helpView   helpview.Model
	cmdView    command.Model

	sessionState session.State
	connState    channel.ConnState
	unread       int
	ready        bool
}

// New creates the root application model and subscribes to session and
// channel events.
func New(
	cfg *model.AppConfig,
	cfgPath string,
	manager *session.Manager,
	ch *channel.Channel,
	apiClient *api.Client,
) Model {
	k := keys.DefaultKeyMap()

	sessionEvents, cancelSession := manager.Subscribe()
	channelEvents, cancelChannel := ch.Subscribe()

	startView := ViewLogin
	if manager.IsAuthenticated() {
		startView = ViewFeed
	}

	return Model{
		currentView:   startView,
		keys:          k,
		cfg:           cfg,
		cfgPath:       cfgPath,
		manager:       manager,
		channel:       ch,
		apiClient:     apiClient,
		sessionEvents: sessionEvents,
		channelEvents: channelEvents,
		cancelSession: cancelSession,
		cancelChannel: cancelChannel,
		loginView:     login.New(manager, 80, 24),
		feedView:      feed.New(k, 80, 24),
		detailView:    detail.New(k, 80, 24),
		configView:    configview.New(cfg, cfgPath, 80, 24),
		helpView:      helpview.New(k, 80, 24),
		cmdView:       command.New(80, 24),
		connState:     ch.State(),
		unread:        ch.UnreadCount(),
	}
}

// Init starts the event pumps and, when a stored token looks usable,
// silently revalidates it instead of showing the login form.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.waitForSessionEvent(),
		m.waitForChannelEvent(),
		m.refreshFeed(),
	}
	if m.currentView == ViewLogin {
		cmds = append(cmds, m.loginView.Init())
	} else {
		cmds = append(cmds, m.revalidate())
	}
	return tea.Batch(cmds...)
}

// waitForSessionEvent blocks until the session publishes a snapshot.
func (m Model) waitForSessionEvent() tea.Cmd {
	events := m.sessionEvents
	return func() tea.Msg {
		state, ok := <-events
		if !ok {
			return nil
		}
		return sessionEventMsg{state: state}
	}
}

// waitForChannelEvent blocks until the channel publishes an event.
func (m Model) waitForChannelEvent() tea.Cmd {
	events := m.channelEvents
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return channelEventMsg{event: ev}
	}
}

// revalidate checks the stored token against the server in the
// background. Failure lands on the login form; success opens the
// notification channel.
func (m Model) revalidate() tea.Cmd {
	manager := m.manager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
		defer cancel()
		_, err := manager.GetCurrentUser(ctx)
		return revalidatedMsg{err: err}
	}
}

// refreshFeed pushes the current log snapshot into the feed view.
func (m Model) refreshFeed() tea.Cmd {
	ch := m.channel
	return func() tea.Msg {
		return feed.NotificationsMsg{Notifications: ch.Notifications()}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.loginView.SetSize(contentWidth, contentHeight)
		m.feedView.SetSize(contentWidth, contentHeight)
		m.detailView.SetSize(contentWidth, contentHeight)
		m.configView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.cmdView.SetSize(contentWidth, contentHeight)
		// Forward to the active view so huh forms can lay themselves out.
		return m.updateActiveView(msg)

	case sessionEventMsg:
		m.sessionState = msg.state
		cmds := []tea.Cmd{m.waitForSessionEvent()}
		// A settled logged-out session forces the login view and tears
		// down the push connection, whatever caused it (explicit
		// logout, failed revalidation, server-side 401).
		if !msg.state.Authenticated && !msg.state.Loading && m.currentView != ViewLogin {
			m.channel.Disconnect()
			m.loginView = login.New(m.manager, m.layout.ContentWidth(), m.layout.ContentHeight())
			m.currentView = ViewLogin
			cmds = append(cmds, m.loginView.Init())
		}
		return m, tea.Batch(cmds...)

	case channelEventMsg:
		cmds := []tea.Cmd{m.waitForChannelEvent()}
		switch msg.event.Kind {
		case channel.EventStateChanged:
			m.connState = msg.event.State
		case channel.EventUnreadCount:
			m.unread = msg.event.UnreadCount
		case channel.EventNotification, channel.EventLogChanged:
			cmds = append(cmds, m.refreshFeed())
		}
		return m, tea.Batch(cmds...)

	case feed.NotificationsMsg:
		// Always lands in the feed, whatever view is active.
		var cmd tea.Cmd
		m.feedView, cmd = m.feedView.Update(msg)
		return m, cmd

	case revalidatedMsg:
		if msg.err != nil {
			// The session manager already logged out; the session
			// event handler routes to the login view.
			return m, nil
		}
		m.currentView = ViewFeed
		m.channel.Connect()
		return m, m.refreshFeed()

	case login.LoggedInMsg:
		m.currentView = ViewFeed
		m.channel.Connect()
		return m, m.refreshFeed()

	case feed.OpenedMsg:
		m.channel.MarkAsRead(msg.Notification.ID)
		opened := msg.Notification
		opened.IsRead = true
		m.detailView.SetNotification(opened)
		m.previousView = ViewFeed
		m.currentView = ViewDetail
		return m, m.refreshFeed()

	case detail.BackMsg:
		m.currentView = ViewFeed
		return m, m.refreshFeed()

	case shopswitch.DoneMsg:
		m.currentView = ViewFeed
		if msg.Switched {
			// Notifications are scoped per shop; cycle the connection
			// so the server re-binds the stream to the new context.
			m.channel.Disconnect()
			m.channel.Connect()
		}
		return m, m.refreshFeed()

	case configview.ConfigDoneMsg:
		m.currentView = ViewFeed
		return m, m.refreshFeed()

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(string(msg))

	case tea.KeyMsg:
		if mdl, cmd, handled := m.handleGlobalKey(msg); handled {
			return mdl, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// formHasFocus reports whether the active view owns a text input, in
// which case printable keys must reach it untouched.
func (m Model) formHasFocus() bool {
	switch m.currentView {
	case ViewLogin, ViewShopSwitch, ViewConfig:
		return true
	}
	return false
}

// handleGlobalKey processes keys that work regardless of focused view.
// Returns handled=false when the key should fall through to the active
// view.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.teardown()
		return m, tea.Quit, true

	case "q":
		if m.currentView == ViewFeed {
			m.teardown()
			return m, tea.Quit, true
		}

	case "?":
		// Do not intercept while a text input has focus.
		if m.formHasFocus() || m.currentView == ViewCommand {
			break
		}
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case ":":
		if m.formHasFocus() {
			break
		}
		if m.currentView == ViewCommand {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.cmdView.Focus(), true

	case "m":
		if m.currentView == ViewFeed {
			if n, ok := m.feedView.Selected(); ok {
				m.channel.MarkAsRead(n.ID)
				return m, m.refreshFeed(), true
			}
		}

	case "M":
		if m.currentView == ViewFeed {
			m.channel.MarkAllAsRead()
			return m, m.refreshFeed(), true
		}

	case "r":
		if m.currentView == ViewFeed {
			m.channel.Connect()
			return m, nil, true
		}

	case "s":
		if m.currentView == ViewFeed {
			m.previousView = m.currentView
			m.currentView = ViewShopSwitch
			m.shopView = shopswitch.New(
				m.apiClient, m.manager,
				m.layout.ContentWidth(), m.layout.ContentHeight(),
			)
			return m, m.shopView.Init(), true
		}

	case "c":
		if m.currentView == ViewFeed {
			m.previousView = m.currentView
			m.currentView = ViewConfig
			return m, m.configView.Init(), true
		}

	case "esc":
		if m.currentView == ViewHelp || m.currentView == ViewCommand {
			m.currentView = m.previousView
			return m, nil, true
		}

	case "ctrl+l":
		if m.currentView != ViewLogin {
			m.manager.Logout()
			return m, nil, true
		}
	}

	return m, nil, false
}

// executeCommand handles a command string from the command palette.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "reconnect", "connect":
		m.channel.Connect()
		return m, nil
	case "disconnect":
		m.channel.Disconnect()
		return m, nil
	case "mark all", "mark all read", "read all":
		m.channel.MarkAllAsRead()
		return m, m.refreshFeed()
	case "shops", "switch shop", "shop":
		m.previousView = ViewFeed
		m.currentView = ViewShopSwitch
		m.shopView = shopswitch.New(
			m.apiClient, m.manager,
			m.layout.ContentWidth(), m.layout.ContentHeight(),
		)
		return m, m.shopView.Init()
	case "settings", "config":
		m.previousView = ViewFeed
		m.currentView = ViewConfig
		return m, m.configView.Init()
	case "logout":
		m.manager.Logout()
		return m, nil
	case "quit", "q":
		m.teardown()
		return m, tea.Quit
	default:
		return m, nil
	}
}

// teardown closes the push connection and the event subscriptions.
func (m Model) teardown() {
	m.channel.Disconnect()
	m.cancelChannel()
	m.cancelSession()
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewFeed:
		m.feedView, cmd = m.feedView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewShopSwitch:
		m.shopView, cmd = m.shopView.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.cmdView, cmd = m.cmdView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.currentView == ViewLogin {
		return m.loginView.View()
	}

	headerTitle := "CRM Console"
	if m.unread > 0 {
		headerTitle = fmt.Sprintf("CRM Console [%d unread]", m.unread)
	}
	header := m.layout.RenderHeader(headerTitle, m.connStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.identity(), m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewFeed:
		return m.feedView.View()
	case ViewDetail:
		return m.detailView.View()
	case ViewShopSwitch:
		return m.shopView.View()
	case ViewConfig:
		return m.configView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.cmdView.View()
	default:
		return ""
	}
}

// connStatus returns the connection indicator for the header.
func (m Model) connStatus() string {
	dot := theme.ConnStatusStyle(m.connState == channel.StateConnected).Render("●")
	return dot + " " + m.connState.String()
}

// identity returns the "user @ shop" segment for the status bar.
func (m Model) identity() string {
	state := m.sessionState
	if state.User == nil {
		return "not signed in"
	}
	who := state.User.DisplayName()
	if state.Shop != nil {
		return fmt.Sprintf("%s @ %s", who, state.Shop.Name)
	}
	return who
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help"
	case ViewCommand:
		return ": close | enter execute"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewShopSwitch:
		return "enter switch | esc back"
	case ViewConfig:
		return "enter save | esc back"
	default:
		return "m read | M read all | r reconnect | s shops | ? help | q quit"
	}
}
