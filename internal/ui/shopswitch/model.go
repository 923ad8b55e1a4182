package shopswitch

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/shopcrm/crm-console/internal/api"
	"github.com/shopcrm/crm-console/internal/model"
	"github.com/shopcrm/crm-console/internal/session"
	"github.com/shopcrm/crm-console/internal/theme"
)

// switchTimeout bounds the shop list fetch and the switch request.
const switchTimeout = 15 * time.Second

// DoneMsg signals the shop switcher should close. Switched is true when
// the active shop actually changed.
type DoneMsg struct {
	Switched bool
}

// shopsLoadedMsg carries the fetched shop list.
type shopsLoadedMsg struct {
	shops []model.Shop
	err   error
}

// switchedMsg carries the outcome of the switch request.
type switchedMsg struct {
	err error
}

// Model is the shop switcher view: pick a shop, ask the server to
// switch context, then let the session refresh itself.
type Model struct {
	apiClient *api.Client
	manager   *session.Manager

	form    *huh.Form
	spinner spinner.Model

	shops      []model.Shop
	selectedID int

	loading   bool
	switching bool
	errMsg    string

	width, height int
}

// New creates a new shop switcher model.
func New(apiClient *api.Client, manager *session.Manager, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		apiClient: apiClient,
		manager:   manager,
		spinner:   sp,
		loading:   true,
		width:     width,
		height:    height,
	}
}

// Init fetches the available shops.
func (m Model) Init() tea.Cmd {
	apiClient := m.apiClient
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), switchTimeout)
		defer cancel()
		shops, err := apiClient.Shops(ctx)
		return shopsLoadedMsg{shops: shops, err: err}
	})
}

func (m *Model) buildForm() *huh.Form {
	options := make([]huh.Option[int], 0, len(m.shops))
	for _, s := range m.shops {
		label := s.Name
		if s.Code != "" {
			label = fmt.Sprintf("%s (%s)", s.Name, s.Code)
		}
		options = append(options, huh.NewOption(label, s.ID))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Switch Shop").
				Description("The server re-validates your session after switching").
				Options(options...).
				Value(&m.selectedID),
		),
	)
}

// Update handles messages for the shop switcher.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case shopsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = api.UserMessage(msg.err, "Could not load shops")
			return m, nil
		}
		if len(msg.shops) == 0 {
			m.errMsg = "No shops available"
			return m, nil
		}
		m.shops = msg.shops
		m.form = m.buildForm()
		return m, m.form.Init()

	case switchedMsg:
		m.switching = false
		if msg.err != nil {
			m.errMsg = api.UserMessage(msg.err, "Shop switch failed")
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		return m, func() tea.Msg { return DoneMsg{Switched: true} }

	case spinner.TickMsg:
		if m.loading || m.switching {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "esc" && !m.switching {
			return m, func() tea.Msg { return DoneMsg{} }
		}
	}

	if m.form == nil || m.switching {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.switching = true
		manager := m.manager
		shopID := m.selectedID
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), switchTimeout)
			defer cancel()
			return switchedMsg{err: manager.SwitchShop(ctx, shopID)}
		})
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return DoneMsg{} }
	}

	return m, cmd
}

// View renders the shop switcher.
func (m Model) View() string {
	header := theme.HeaderStyle.Render("Shops")

	var body string
	switch {
	case m.loading:
		body = fmt.Sprintf("%s Loading shops...", m.spinner.View())
	case m.switching:
		body = fmt.Sprintf("%s Switching...", m.spinner.View())
	case m.form != nil:
		body = m.form.View()
	}

	var errLine string
	if m.errMsg != "" {
		errLine = theme.ErrorStyle.Render(m.errMsg)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, errLine)
}
