package channel

import "github.com/shopcrm/crm-console/internal/model"

// Notifier bridges received notifications to an environment-level
// display (desktop notification, terminal bell, ...). The channel only
// calls Notify when PermissionGranted reports true; permission is
// requested once by the host, never implicitly from message handling.
// Implementations own presentation details such as auto-dismissal and
// activating the notification's action URL on click.
type Notifier interface {
	// RequestPermission asks the environment for display permission.
	// The host calls this once at startup.
	RequestPermission() error

	// PermissionGranted reports whether notifications may be shown.
	PermissionGranted() bool

	// Notify displays a single notification.
	Notify(n model.Notification)
}

// NopNotifier is a Notifier that never displays anything.
type NopNotifier struct{}

func (NopNotifier) RequestPermission() error    { return nil }
func (NopNotifier) PermissionGranted() bool     { return false }
func (NopNotifier) Notify(_ model.Notification) {}
