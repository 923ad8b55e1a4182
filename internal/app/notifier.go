package app

import (
	"fmt"
	"os"

	"github.com/shopcrm/crm-console/internal/channel"
	"github.com/shopcrm/crm-console/internal/model"
)

// BellNotifier surfaces received notifications outside the application
// content area: a terminal bell plus, when supported, an OSC 9 desktop
// notification. Permission mirrors the display.desktop_notifications
// config flag; RequestPermission flips it on for the process lifetime.
type BellNotifier struct {
	granted bool
}

// NewBellNotifier creates a notifier with the given initial permission.
func NewBellNotifier(granted bool) *BellNotifier {
	return &BellNotifier{granted: granted}
}

// RequestPermission grants display permission. The terminal needs no
// user consent, so this never fails.
func (b *BellNotifier) RequestPermission() error {
	b.granted = true
	return nil
}

// PermissionGranted reports whether notifications may be displayed.
func (b *BellNotifier) PermissionGranted() bool {
	return b.granted
}

// Notify rings the terminal bell and emits an OSC 9 notification with
// the notification title. Terminals without OSC 9 support ignore the
// sequence.
func (b *BellNotifier) Notify(n model.Notification) {
	fmt.Fprintf(os.Stderr, "\a\x1b]9;%s\x07", n.Title)
}

var _ channel.Notifier = (*BellNotifier)(nil)
