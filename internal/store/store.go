package store

import (
	"context"

	"github.com/shopcrm/crm-console/internal/model"
)

// Store defines the local persistence interface: the notification log
// with its read flags, and small key-value preferences (selected shop,
// theme) that survive restarts.
type Store interface {
	// === Notifications ===

	SaveNotification(ctx context.Context, n model.Notification) error
	GetNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int) error
	MarkAllNotificationsRead(ctx context.Context) error
	PruneNotifications(ctx context.Context, keep int) error
	UnreadNotificationCount(ctx context.Context) (int, error)

	// === Preferences ===

	GetPref(ctx context.Context, key string) (string, error)
	SetPref(ctx context.Context, key, value string) error
	DeletePref(ctx context.Context, key string) error
}

// Preference keys.
const (
	PrefCurrentShopID = "current_shop_id"
	PrefTheme         = "theme"
)
