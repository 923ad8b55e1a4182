// Package config provides the settings view: a form over the server
// connection and display preferences, persisted to the YAML config
// file on save.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/shopcrm/crm-console/internal/model"
	"github.com/shopcrm/crm-console/internal/theme"
)

// ConfigDoneMsg signals the settings view is finished. Saved is true
// when the configuration was changed and written to disk; a server or
// channel change requires a reconnect to take effect.
type ConfigDoneMsg struct {
	Saved bool
}

// savedMsg carries the outcome of the config write.
type savedMsg struct {
	err error
}

// Model is the settings view.
type Model struct {
	cfg     *model.AppConfig
	cfgPath string

	form *huh.Form

	// Form fields; huh binds to these and they are copied back into
	// cfg on submit.
	baseURL              string
	websocketURL         string
	requestTimeout       string
	reconnectInterval    string
	maxReconnectAttempts string
	desktopNotifications bool

	errMsg string
	width  int
	height int
}

// New creates a settings view over the given configuration.
func New(cfg *model.AppConfig, cfgPath string, width, height int) Model {
	m := Model{
		cfg:     cfg,
		cfgPath: cfgPath,
		width:   width,
		height:  height,
	}
	m.resetFields()
	return m
}

func (m *Model) resetFields() {
	m.baseURL = m.cfg.Server.BaseURL
	m.websocketURL = m.cfg.Server.WebSocketURL
	m.requestTimeout = strconv.Itoa(m.cfg.Server.RequestTimeoutSec)
	m.reconnectInterval = strconv.Itoa(m.cfg.Channel.ReconnectIntervalSec)
	m.maxReconnectAttempts = strconv.Itoa(m.cfg.Channel.MaxReconnectAttempts)
	m.desktopNotifications = m.cfg.Display.DesktopNotifications
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Description("Root URL of the CRM API").
				Value(&m.baseURL).
				Validate(validateHTTPURL),
			huh.NewInput().
				Title("WebSocket URL").
				Description("Leave empty to derive from the server URL").
				Value(&m.websocketURL).
				Validate(validateOptionalWSURL),
			huh.NewInput().
				Title("Request timeout (seconds)").
				Value(&m.requestTimeout).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Reconnect interval (seconds)").
				Value(&m.reconnectInterval).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Max reconnect attempts").
				Value(&m.maxReconnectAttempts).
				Validate(validatePositiveInt),
			huh.NewConfirm().
				Title("Desktop notifications").
				Value(&m.desktopNotifications),
		),
	)
}

func validateHTTPURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http:// or https:// URL")
	}
	return nil
}

func validateOptionalWSURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("must be a ws:// or wss:// URL")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

// Init builds the form from the current configuration.
func (m *Model) Init() tea.Cmd {
	m.resetFields()
	m.errMsg = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the settings view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case savedMsg:
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("Could not save settings: %v", msg.err)
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		return m, func() tea.Msg { return ConfigDoneMsg{Saved: true} }

	case tea.KeyMsg:
		if msg.String() == "esc" {
			return m, func() tea.Msg { return ConfigDoneMsg{} }
		}
	}

	if m.form == nil {
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.apply()
		cfg := m.cfg
		path := m.cfgPath
		return m, func() tea.Msg {
			return savedMsg{err: model.SaveConfig(path, cfg)}
		}
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return ConfigDoneMsg{} }
	}

	return m, cmd
}

// apply copies the validated form fields back into the configuration.
func (m *Model) apply() {
	m.cfg.Server.BaseURL = strings.TrimSpace(m.baseURL)
	m.cfg.Server.WebSocketURL = strings.TrimSpace(m.websocketURL)
	m.cfg.Server.RequestTimeoutSec = mustAtoi(m.requestTimeout, 10)
	m.cfg.Channel.ReconnectIntervalSec = mustAtoi(m.reconnectInterval, 5)
	m.cfg.Channel.MaxReconnectAttempts = mustAtoi(m.maxReconnectAttempts, 5)
	m.cfg.Display.DesktopNotifications = m.desktopNotifications
}

// mustAtoi parses a form value already checked by the validator; the
// fallback only matters if the form was bypassed.
func mustAtoi(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// View renders the settings view.
func (m Model) View() string {
	header := theme.HeaderStyle.Render("Settings")

	var body string
	if m.form != nil {
		body = m.form.View()
	}

	var errLine string
	if m.errMsg != "" {
		errLine = theme.ErrorStyle.Render(m.errMsg)
	}

	hint := theme.HelpStyle.Render("Server changes apply on the next reconnect")

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, errLine, hint)
}

// SetSize updates the settings view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
