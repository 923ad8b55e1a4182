// Package channel maintains the persistent push connection for
// notification events: a bounded in-memory log, a server-reconciled
// unread counter, automatic reconnect with fixed backoff, and a bridge
// to environment-level notification display.
package channel

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shopcrm/crm-console/internal/model"
)

// ConnState is the connection lifecycle state. It is owned exclusively
// by the Channel; transitions are driven only by transport events and
// the explicit Connect/Disconnect calls.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// EventKind discriminates channel events delivered to subscribers.
type EventKind int

const (
	// EventStateChanged reports a connection state transition.
	EventStateChanged EventKind = iota

	// EventNotification reports a newly received notification.
	EventNotification

	// EventUnreadCount reports a change of the unread counter.
	EventUnreadCount

	// EventLogChanged reports a mutation of existing log entries
	// (read flags flipped).
	EventLogChanged
)

// Event is a single update published to subscribers.
type Event struct {
	Kind         EventKind
	State        ConnState
	Notification *model.Notification
	UnreadCount  int
}

// Archive persists received notifications and their read flags so the
// feed survives restarts. Implemented by the local store; a nil Archive
// keeps the log purely in memory.
type Archive interface {
	SaveNotification(ctx context.Context, n model.Notification) error
	MarkNotificationRead(ctx context.Context, id int) error
	MarkAllNotificationsRead(ctx context.Context) error
	PruneNotifications(ctx context.Context, keep int) error
}

// archiveTimeout bounds local persistence writes so a wedged disk never
// stalls message handling.
const archiveTimeout = 5 * time.Second

// Config configures a Channel.
type Config struct {
	// URL is the push endpoint (ws:// or wss://).
	URL string

	// Token supplies the current bearer token. Connect is a no-op
	// while it returns "".
	Token func() string

	// ReconnectInterval is the fixed backoff between reconnect
	// attempts. Defaults to 5s.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts bounds automatic reconnects. After this
	// many consecutive failures the channel stays disconnected until
	// Connect is called again. Defaults to 5.
	MaxReconnectAttempts int

	// LogLimit caps the in-memory log at the N most recently
	// received notifications. Defaults to 50.
	LogLimit int

	// HandshakeTimeout bounds the websocket dial. Defaults to 10s.
	HandshakeTimeout time.Duration

	// Notifier receives notifications for environment-level display.
	// Optional.
	Notifier Notifier

	// Archive persists the log locally. Optional.
	Archive Archive
}

// Channel is the persistent notification connection. Only one live
// connection exists per Channel instance.
type Channel struct {
	cfg Config

	mu       sync.Mutex
	conn     *websocket.Conn
	state    ConnState
	attempts int
	// gen identifies the current connection session (one explicit
	// Connect/Disconnect cycle, including its automatic retries).
	// Stale read loops and reconnect timers detect a bumped gen and
	// give up, so an explicit Disconnect can never race a zombie
	// reconnect against a fresh connection.
	gen   int
	timer *time.Timer

	notifications []model.Notification
	unread        int

	subs    map[int]chan Event
	nextSub int
}

// New creates a Channel with the given configuration.
func New(cfg Config) *Channel {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}
	if cfg.LogLimit <= 0 {
		cfg.LogLimit = 50
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Channel{
		cfg:  cfg,
		subs: make(map[int]chan Event),
	}
}

// State returns the current connection state.
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UnreadCount returns the current unread counter.
func (c *Channel) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Notifications returns a snapshot of the log, newest first.
func (c *Channel) Notifications() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

// Restore seeds the in-memory log from previously persisted
// notifications (newest first). The unread counter is derived from the
// local read flags until the server reconciles it on the next connect.
func (c *Channel) Restore(notifications []model.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(notifications) > c.cfg.LogLimit {
		notifications = notifications[:c.cfg.LogLimit]
	}
	c.notifications = make([]model.Notification, len(notifications))
	copy(c.notifications, notifications)

	c.unread = 0
	for _, n := range c.notifications {
		if !n.IsRead {
			c.unread++
		}
	}
	c.publishLocked(Event{Kind: EventLogChanged})
	c.publishLocked(Event{Kind: EventUnreadCount, UnreadCount: c.unread})
}

// Subscribe returns a channel of events and a cancel function. Events
// are delivered best-effort: slow consumers miss intermediate events
// rather than blocking the channel. Callers must cancel on teardown.
func (c *Channel) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, 32)
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (c *Channel) publishLocked(ev Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			// Drop for slow consumers.
		}
	}
}

func (c *Channel) setStateLocked(s ConnState) {
	if c.state == s {
		return
	}
	c.state = s
	c.publishLocked(Event{Kind: EventStateChanged, State: s})
}

// Connect opens the push connection. It is a no-op while already
// connecting or connected, and while no token is available. An explicit
// Connect during the backoff wait cancels the timer and dials
// immediately.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	token := c.cfg.Token()
	if token == "" {
		c.mu.Unlock()
		return
	}

	c.stopTimerLocked()
	c.gen++
	gen := c.gen
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	go c.dial(gen, token)
}

// Disconnect closes the connection and cancels any pending reconnect.
// The channel stays Disconnected until Connect is called again.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.stopTimerLocked()
	if c.conn != nil {
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(StateDisconnected)
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// dial performs the websocket handshake for connection session gen.
func (c *Channel) dial(gen int, token string) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.Dial(c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		log.Printf("notification channel: dial %s: %v", c.cfg.URL, err)
		c.setStateLocked(StateDisconnected)
		c.scheduleReconnectLocked(gen)
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.attempts = 0
	c.setStateLocked(StateConnected)

	// Reconcile the unread counter with server truth before any
	// inbound frame is processed.
	if err := conn.WriteJSON(outboundMessage{Action: actionGetUnreadCount}); err != nil {
		log.Printf("notification channel: requesting unread count: %v", err)
	}
	c.mu.Unlock()

	go c.readLoop(gen, conn)
}

// readLoop consumes inbound frames until the transport fails, then
// hands over to the reconnect policy. Frames are processed strictly in
// arrival order.
func (c *Channel) readLoop(gen int, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			conn.Close()
			c.conn = nil
			c.setStateLocked(StateDisconnected)
			c.scheduleReconnectLocked(gen)
			c.mu.Unlock()
			return
		}
		c.handleFrame(data)
	}
}

// scheduleReconnectLocked arms the fixed-backoff retry, or gives up
// once the attempt ceiling is reached. No distinction is made between a
// network blip and a server rejection; both land here.
func (c *Channel) scheduleReconnectLocked(gen int) {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		log.Printf("notification channel: giving up after %d reconnect attempts", c.attempts)
		return
	}
	c.attempts++
	c.setStateLocked(StateReconnecting)

	c.timer = time.AfterFunc(c.cfg.ReconnectInterval, func() {
		c.mu.Lock()
		if gen != c.gen || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		token := c.cfg.Token()
		if token == "" {
			c.setStateLocked(StateDisconnected)
			c.mu.Unlock()
			return
		}
		c.setStateLocked(StateConnecting)
		c.mu.Unlock()
		go c.dial(gen, token)
	})
}

// handleFrame decodes and dispatches one inbound frame. Malformed or
// unknown frames are dropped with a diagnostic; they never tear down
// the connection or corrupt local state.
func (c *Channel) handleFrame(data []byte) {
	var msg inboundEnvelope
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("notification channel: dropping malformed frame: %v", err)
		return
	}

	switch msg.Type {
	case msgTypeNotification:
		if msg.Notification == nil {
			log.Printf("notification channel: notification frame without payload")
			return
		}
		c.addNotification(*msg.Notification)

	case msgTypeUnreadCount:
		if msg.Count == nil {
			log.Printf("notification channel: unread_count frame without count")
			return
		}
		c.mu.Lock()
		c.unread = *msg.Count
		c.publishLocked(Event{Kind: EventUnreadCount, UnreadCount: c.unread})
		c.mu.Unlock()

	case msgTypeError:
		log.Printf("notification channel: server error: %s", msg.Error)

	default:
		// Unknown frame shape; ignore.
	}
}

// addNotification prepends a received notification to the log, enforces
// the retention cap, bumps the unread counter, persists, and hands the
// notification to the Notifier when display permission was granted.
func (c *Channel) addNotification(n model.Notification) {
	n.IsRead = false

	c.mu.Lock()
	c.notifications = append([]model.Notification{n}, c.notifications...)
	if len(c.notifications) > c.cfg.LogLimit {
		c.notifications = c.notifications[:c.cfg.LogLimit]
	}
	c.unread++
	unread := c.unread
	c.publishLocked(Event{Kind: EventNotification, Notification: &n})
	c.publishLocked(Event{Kind: EventUnreadCount, UnreadCount: unread})
	c.mu.Unlock()

	if c.cfg.Archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := c.cfg.Archive.SaveNotification(ctx, n); err != nil {
			log.Printf("notification channel: persisting notification %d: %v", n.ID, err)
		}
		if err := c.cfg.Archive.PruneNotifications(ctx, c.cfg.LogLimit); err != nil {
			log.Printf("notification channel: pruning notifications: %v", err)
		}
	}

	if c.cfg.Notifier != nil && c.cfg.Notifier.PermissionGranted() {
		c.cfg.Notifier.Notify(n)
	}
}

// MarkAsRead flags a notification read, optimistically and idempotently:
// the unread counter decrements only when the flag actually flips, and
// never below zero. The server-side mark is fire-and-forget; the next
// unread_count reconciliation corrects any drift.
func (c *Channel) MarkAsRead(id int) {
	c.mu.Lock()
	c.sendLocked(outboundMessage{Action: actionMarkAsRead, NotificationID: id})

	flipped := false
	for i := range c.notifications {
		if c.notifications[i].ID == id && !c.notifications[i].IsRead {
			c.notifications[i].IsRead = true
			flipped = true
		}
	}
	if flipped {
		if c.unread > 0 {
			c.unread--
		}
		c.publishLocked(Event{Kind: EventLogChanged})
		c.publishLocked(Event{Kind: EventUnreadCount, UnreadCount: c.unread})
	}
	c.mu.Unlock()

	if flipped && c.cfg.Archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := c.cfg.Archive.MarkNotificationRead(ctx, id); err != nil {
			log.Printf("notification channel: persisting read flag %d: %v", id, err)
		}
	}
}

// MarkAllAsRead sends a single batch mark request, flags every local
// entry read, and zeroes the unread counter.
func (c *Channel) MarkAllAsRead() {
	c.mu.Lock()
	c.sendLocked(outboundMessage{Action: actionMarkAllAsRead})

	for i := range c.notifications {
		c.notifications[i].IsRead = true
	}
	c.unread = 0
	c.publishLocked(Event{Kind: EventLogChanged})
	c.publishLocked(Event{Kind: EventUnreadCount, UnreadCount: 0})
	c.mu.Unlock()

	if c.cfg.Archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := c.cfg.Archive.MarkAllNotificationsRead(ctx); err != nil {
			log.Printf("notification channel: persisting read flags: %v", err)
		}
	}
}

// sendLocked writes an outbound frame when connected; otherwise the
// frame is silently dropped, matching fire-and-forget semantics.
func (c *Channel) sendLocked(msg outboundMessage) {
	if c.conn == nil {
		return
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("notification channel: sending %s: %v", msg.Action, err)
	}
}
