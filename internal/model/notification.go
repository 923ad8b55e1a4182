package model

import (
	"encoding/json"
	"time"
)

// Priority classifies how urgently a notification should be surfaced.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Notification is a single event pushed by the server over the
// notification channel. All fields except IsRead are immutable once
// received; IsRead is local state flipped by mark-as-read.
type Notification struct {
	// ID is the server-assigned unique identifier.
	ID int `json:"id" db:"id"`

	// Title is the short headline shown in the feed and in desktop
	// notifications.
	Title string `json:"title" db:"title"`

	// Message is the human-readable notification body.
	Message string `json:"message" db:"message"`

	// Priority is one of low/normal/high/urgent.
	Priority Priority `json:"priority" db:"priority"`

	// Type is the category tag used for routing when the
	// notification is activated (e.g. "order_status", "low_stock").
	Type string `json:"type" db:"type"`

	// ActionURL, when present, is the in-app location to open when
	// the notification is activated.
	ActionURL string `json:"action_url,omitempty" db:"action_url"`

	// Data carries an optional opaque payload from the server.
	Data json.RawMessage `json:"data,omitempty" db:"data"`

	// CreatedAt is the server-side creation timestamp.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// IsRead indicates whether the user has seen this notification.
	// It defaults to false and flips to true only via mark-as-read
	// or mark-all-as-read.
	IsRead bool `json:"is_read" db:"is_read"`
}
