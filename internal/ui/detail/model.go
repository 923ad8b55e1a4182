package detail

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shopcrm/crm-console/internal/keys"
	"github.com/shopcrm/crm-console/internal/model"
	"github.com/shopcrm/crm-console/internal/theme"
)

// BackMsg signals the parent to navigate back to the feed.
type BackMsg struct{}

// Model is the notification detail view component.
type Model struct {
	notification *model.Notification
	viewport     viewport.Model
	keys         *keys.KeyMap
	width        int
	height       int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg {
				return BackMsg{}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.notification == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No notification selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.notification == nil {
		return ""
	}

	n := m.notification
	var sections []string

	// Title
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	// Badges line: priority + type + read state
	priBadge := theme.PriorityStyle(n.Priority).Render(
		strings.ToUpper(string(n.Priority)),
	)

	typeBadge := lipgloss.NewStyle().
		Foreground(theme.ColorMagenta).
		Render("[" + n.Type + "]")

	readBadge := theme.DimmedStyle.Render("read")
	if !n.IsRead {
		readBadge = theme.UnreadBadgeStyle.Render("unread")
	}

	badgeLine := lipgloss.JoinHorizontal(
		lipgloss.Top, priBadge, "  ", typeBadge, "  ", readBadge,
	)
	sections = append(sections, badgeLine)
	sections = append(sections, "")

	// Metadata
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	if !n.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Received:"),
			valStyle.Render(n.CreatedAt.Local().Format("2006-01-02 15:04")),
		))
	}
	if n.ActionURL != "" {
		sections = append(sections, fmt.Sprintf(
			"%s      %s",
			metaStyle.Render("Link:"),
			valStyle.Render(n.ActionURL),
		))
	}

	// Separator
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))
	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")

	// Message body
	body := n.Message
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message body")
	}
	sections = append(sections, body)

	// Structured payload, pretty-printed when present
	if fields := payloadFields(n.Data); len(fields) > 0 {
		sections = append(sections, "")
		sections = append(sections, separator)
		sections = append(sections, "")

		payloadHeaderStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorWhite)
		sections = append(sections, payloadHeaderStyle.Render("Details"))
		sections = append(sections, "")

		for _, f := range fields {
			sections = append(sections, fmt.Sprintf(
				"%s  %s",
				metaStyle.Render(f.key+":"),
				valStyle.Render(f.value),
			))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

type payloadField struct {
	key   string
	value string
}

// payloadFields flattens the notification's JSON payload into sorted
// key/value rows for display. Non-object payloads render as a single
// raw row.
func payloadFields(data json.RawMessage) []payloadField {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return []payloadField{{key: "data", value: string(data)}}
	}

	fields := make([]payloadField, 0, len(obj))
	for k, v := range obj {
		fields = append(fields, payloadField{key: k, value: fmt.Sprintf("%v", v)})
	}
	for i := 1; i < len(fields); i++ {
		for j := i; j > 0 && fields[j].key < fields[j-1].key; j-- {
			fields[j], fields[j-1] = fields[j-1], fields[j]
		}
	}
	return fields
}

// SetNotification updates the notification being displayed and
// re-renders the content.
func (m *Model) SetNotification(n model.Notification) {
	m.notification = &n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Current returns the displayed notification, if any.
func (m Model) Current() (model.Notification, bool) {
	if m.notification == nil {
		return model.Notification{}, false
	}
	return *m.notification, true
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.notification != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
