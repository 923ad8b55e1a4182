package feed

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/shopcrm/crm-console/internal/keys"
	"github.com/shopcrm/crm-console/internal/model"
	"github.com/shopcrm/crm-console/internal/theme"
)

// NotificationsMsg replaces the feed contents with a fresh snapshot of
// the notification log, newest first.
type NotificationsMsg struct {
	Notifications []model.Notification
}

// OpenedMsg is sent when the user activates a notification; the host
// marks it read and follows its action URL when present.
type OpenedMsg struct {
	Notification model.Notification
}

// Model is the live notification feed view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a new feed model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns the feed's initial command (none; the host pushes
// snapshots in).
func (m Model) Init() tea.Cmd {
	return nil
}

// SetSize resizes the feed.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}

// Selected returns the currently focused notification, if any.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles messages for the feed view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case NotificationsMsg:
		items := make([]list.Item, len(msg.Notifications))
		for i, n := range msg.Notifications {
			items[i] = Item{Notification: n}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		if m.keys != nil && msg.String() == "enter" {
			if n, ok := m.Selected(); ok {
				return m, func() tea.Msg { return OpenedMsg{Notification: n} }
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the feed.
func (m Model) View() string {
	return m.list.View()
}
