package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shopcrm/crm-console/internal/api"
	"github.com/shopcrm/crm-console/internal/app"
	"github.com/shopcrm/crm-console/internal/channel"
	"github.com/shopcrm/crm-console/internal/credential"
	"github.com/shopcrm/crm-console/internal/model"
	"github.com/shopcrm/crm-console/internal/session"
	"github.com/shopcrm/crm-console/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "crmconsole: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := model.DefaultConfigPath()
	if env := os.Getenv("CRMCONSOLE_CONFIG"); env != "" {
		cfgPath = env
	}

	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	dbPath := filepath.Join(filepath.Dir(cfgPath), "crmconsole.db")
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	defer st.Close()

	creds := credential.NewKeyringStore()

	tokenFunc := func() string {
		token, err := creds.Get(credential.KeyAccessToken)
		if err != nil {
			return ""
		}
		return token
	}

	apiClient := api.NewClient(
		cfg.Server.BaseURL,
		tokenFunc,
		time.Duration(cfg.Server.RequestTimeoutSec)*time.Second,
	)

	manager := session.NewManager(apiClient, creds, st)

	// Any 401 anywhere ends the session; subscribers route back to the
	// login view.
	apiClient.OnUnauthorized(manager.Logout)

	notifier := app.NewBellNotifier(cfg.Display.DesktopNotifications)

	ch := channel.New(channel.Config{
		URL:                  cfg.Server.ResolveWebSocketURL(),
		Token:                manager.Token,
		ReconnectInterval:    time.Duration(cfg.Channel.ReconnectIntervalSec) * time.Second,
		MaxReconnectAttempts: cfg.Channel.MaxReconnectAttempts,
		LogLimit:             cfg.Channel.LogLimit,
		Notifier:             notifier,
		Archive:              st,
	})

	// Seed the feed with the persisted log so the last session's
	// notifications are visible before the first connect.
	if persisted, err := st.GetNotifications(context.Background(), cfg.Channel.LogLimit); err != nil {
		log.Printf("restoring notification log: %v", err)
	} else if len(persisted) > 0 {
		ch.Restore(persisted)
	}

	logFile, err := tea.LogToFile(filepath.Join(filepath.Dir(cfgPath), "crmconsole.log"), "crmconsole")
	if err == nil {
		defer logFile.Close()
	}

	program := tea.NewProgram(
		app.New(cfg, cfgPath, manager, ch, apiClient),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}
