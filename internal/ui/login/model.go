package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/shopcrm/crm-console/internal/api"
	"github.com/shopcrm/crm-console/internal/session"
	"github.com/shopcrm/crm-console/internal/theme"
)

// loginTimeout bounds the login request so the form never hangs.
const loginTimeout = 15 * time.Second

// LoggedInMsg signals a successful login; the host switches to the
// feed and connects the notification channel.
type LoggedInMsg struct{}

// resultMsg carries the outcome of a login attempt.
type resultMsg struct {
	err error
}

// Model is the login form view.
type Model struct {
	manager *session.Manager
	form    *huh.Form
	spinner spinner.Model

	username string
	password string

	submitting bool
	errMsg     string

	width, height int
}

// New creates a new login view model.
func New(manager *session.Manager, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		manager: manager,
		spinner: sp,
		width:   width,
		height:  height,
	}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&m.username).
				Validate(required("Username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.password).
				Validate(required("Password")),
		),
	).WithWidth(m.formWidth())
}

func required(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w > 60 {
		w = 60
	}
	if w < 20 {
		w = 20
	}
	return w
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// SetSize resizes the view.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update handles messages for the login view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.submitting = false
		if msg.err != nil {
			m.errMsg = api.UserMessage(msg.err, "Login failed")
			// Rebuild the form so the user can retry with the
			// previous username prefilled.
			m.password = ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		m.errMsg = ""
		return m, func() tea.Msg { return LoggedInMsg{} }

	case spinner.TickMsg:
		if m.submitting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.submitting {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.submitting = true
		return m, tea.Batch(m.spinner.Tick, m.submit())
	}
	if m.form.State == huh.StateAborted {
		return m, tea.Quit
	}

	return m, cmd
}

// submit performs the login request off the UI loop.
func (m Model) submit() tea.Cmd {
	username, password := m.username, m.password
	manager := m.manager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		return resultMsg{err: manager.Login(ctx, username, password)}
	}
}

// View renders the login form.
func (m Model) View() string {
	header := theme.HeaderStyle.Render("CRM Console / Sign In")

	var body string
	if m.submitting {
		body = fmt.Sprintf("%s Signing in...", m.spinner.View())
	} else {
		body = m.form.View()
	}

	var errLine string
	if m.errMsg != "" {
		errLine = theme.ErrorStyle.Render(m.errMsg)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, errLine)
}
