package channel

import "github.com/shopcrm/crm-console/internal/model"

// Inbound frame discriminators.
const (
	msgTypeNotification = "notification"
	msgTypeUnreadCount  = "unread_count"
	msgTypeError        = "error"
)

// Outbound action discriminators.
const (
	actionGetUnreadCount = "get_unread_count"
	actionMarkAsRead     = "mark_as_read"
	actionMarkAllAsRead  = "mark_all_as_read"
)

// inboundEnvelope is the tagged union carried by inbound JSON frames.
// Only the field matching Type is populated; anything else is left to
// its zero value and ignored.
type inboundEnvelope struct {
	Type         string              `json:"type"`
	Notification *model.Notification `json:"notification,omitempty"`
	Count        *int                `json:"count,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// outboundMessage is the payload of client-initiated frames.
type outboundMessage struct {
	Action         string `json:"action"`
	NotificationID int    `json:"notification_id,omitempty"`
}
