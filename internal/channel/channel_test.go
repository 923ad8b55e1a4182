package channel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shopcrm/crm-console/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHarness is a single-connection push server for exercising the
// channel against real websocket traffic.
type wsHarness struct {
	srv      *httptest.Server
	conns    chan *websocket.Conn
	inbound  chan outboundMessage
	authHdrs chan string
}

func newWSHarness(t *testing.T) *wsHarness {
	t.Helper()
	h := &wsHarness{
		conns:    make(chan *websocket.Conn, 4),
		inbound:  make(chan outboundMessage, 16),
		authHdrs: make(chan string, 4),
	}

	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.authHdrs <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.conns <- conn
		for {
			var msg outboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			h.inbound <- msg
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *wsHarness) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

// conn waits for the next accepted connection.
func (h *wsHarness) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-h.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket connection established")
		return nil
	}
}

// nextMessage waits for the next client frame.
func (h *wsHarness) nextMessage(t *testing.T) outboundMessage {
	t.Helper()
	select {
	case msg := <-h.inbound:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no client frame received")
		return outboundMessage{}
	}
}

func pushJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("pushing frame: %v", err)
	}
}

func testNotification(id int) model.Notification {
	return model.Notification{
		ID:       id,
		Title:    fmt.Sprintf("Order #%d", id),
		Message:  "status changed",
		Priority: model.PriorityNormal,
		Type:     "order_status",
	}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestChannel(h *wsHarness, cfg Config) *Channel {
	if cfg.URL == "" {
		cfg.URL = h.url()
	}
	if cfg.Token == nil {
		cfg.Token = func() string { return "tok-ws" }
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = 10 * time.Millisecond
	}
	return New(cfg)
}

func TestConnectAuthenticatesAndRequestsUnreadCount(t *testing.T) {
	h := newWSHarness(t)
	c := newTestChannel(h, Config{})
	defer c.Disconnect()

	c.Connect()

	select {
	case auth := <-h.authHdrs:
		if auth != "Bearer tok-ws" {
			t.Errorf("Authorization = %q, want bearer token", auth)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no upgrade request seen")
	}

	if msg := h.nextMessage(t); msg.Action != actionGetUnreadCount {
		t.Errorf("first frame action = %q, want %q", msg.Action, actionGetUnreadCount)
	}
	waitFor(t, "connected state", func() bool { return c.State() == StateConnected })
}

func TestInboundFramesUpdateLogAndCounter(t *testing.T) {
	h := newWSHarness(t)
	c := newTestChannel(h, Config{})
	defer c.Disconnect()

	c.Connect()
	conn := h.conn(t)
	h.nextMessage(t) // initial unread count request

	count := 3
	pushJSON(t, conn, inboundEnvelope{Type: msgTypeUnreadCount, Count: &count})
	waitFor(t, "server count", func() bool { return c.UnreadCount() == 3 })

	n := testNotification(101)
	pushJSON(t, conn, inboundEnvelope{Type: msgTypeNotification, Notification: &n})
	waitFor(t, "notification received", func() bool { return len(c.Notifications()) == 1 })

	if c.UnreadCount() != 4 {
		t.Errorf("unread = %d, want 4", c.UnreadCount())
	}
	got := c.Notifications()[0]
	if got.ID != 101 || got.IsRead {
		t.Errorf("log head = %+v, want id 101 unread", got)
	}
}

func TestLogIsCappedNewestFirst(t *testing.T) {
	h := newWSHarness(t)
	c := newTestChannel(h, Config{LogLimit: 5})
	defer c.Disconnect()

	c.Connect()
	conn := h.conn(t)
	h.nextMessage(t)

	for id := 1; id <= 8; id++ {
		n := testNotification(id)
		pushJSON(t, conn, inboundEnvelope{Type: msgTypeNotification, Notification: &n})
	}
	waitFor(t, "log cap", func() bool {
		log := c.Notifications()
		return len(log) == 5 && log[0].ID == 8
	})

	log := c.Notifications()
	for i, wantID := range []int{8, 7, 6, 5, 4} {
		if log[i].ID != wantID {
			t.Errorf("position %d: id %d, want %d", i, log[i].ID, wantID)
		}
	}
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	c := New(Config{URL: "ws://unused", Token: func() string { return "" }})

	c.Restore([]model.Notification{
		testNotification(2),
		testNotification(1),
	})
	if c.UnreadCount() != 2 {
		t.Fatalf("restored unread = %d, want 2", c.UnreadCount())
	}

	c.MarkAsRead(1)
	if c.UnreadCount() != 1 {
		t.Errorf("unread after first mark = %d, want 1", c.UnreadCount())
	}

	// Marking the same notification again must not decrement further.
	c.MarkAsRead(1)
	if c.UnreadCount() != 1 {
		t.Errorf("unread after repeat mark = %d, want 1", c.UnreadCount())
	}

	// Marking an unknown id changes nothing.
	c.MarkAsRead(999)
	if c.UnreadCount() != 1 {
		t.Errorf("unread after unknown id = %d, want 1", c.UnreadCount())
	}

	c.MarkAsRead(2)
	c.MarkAsRead(2)
	if c.UnreadCount() != 0 {
		t.Errorf("unread = %d, want 0", c.UnreadCount())
	}

	for _, n := range c.Notifications() {
		if !n.IsRead {
			t.Errorf("notification %d still unread", n.ID)
		}
	}
}

func TestMarkAllAsRead(t *testing.T) {
	c := New(Config{URL: "ws://unused", Token: func() string { return "" }})

	log := make([]model.Notification, 5)
	for i := range log {
		log[i] = testNotification(5 - i)
	}
	c.Restore(log)

	c.MarkAllAsRead()
	if c.UnreadCount() != 0 {
		t.Errorf("unread = %d, want 0", c.UnreadCount())
	}
	for _, n := range c.Notifications() {
		if !n.IsRead {
			t.Errorf("notification %d still unread", n.ID)
		}
	}
}

func TestReconnectStopsAfterMaxAttempts(t *testing.T) {
	// A server that is already closed refuses every dial.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c := New(Config{
		URL:                  url,
		Token:                func() string { return "tok" },
		ReconnectInterval:    10 * time.Millisecond,
		MaxReconnectAttempts: 2,
	})

	events, cancel := c.Subscribe()
	defer cancel()

	c.Connect()

	reconnects := 0
	deadline := time.After(3 * time.Second)
	for c.State() != StateDisconnected || reconnects < 2 {
		select {
		case ev := <-events:
			if ev.Kind == EventStateChanged && ev.State == StateReconnecting {
				reconnects++
			}
		case <-deadline:
			t.Fatalf("gave up waiting; state=%s reconnects=%d", c.State(), reconnects)
		}
	}

	// The ceiling is reached; no further attempts without an explicit
	// Connect.
	time.Sleep(50 * time.Millisecond)
	if got := c.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected after giving up", got)
	}
	if reconnects != 2 {
		t.Errorf("reconnect attempts = %d, want 2", reconnects)
	}

	// An explicit Connect starts a fresh session.
	c.Connect()
	waitFor(t, "fresh dial", func() bool {
		s := c.State()
		return s == StateConnecting || s == StateReconnecting || s == StateDisconnected
	})
	c.Disconnect()
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c := New(Config{
		URL:                  url,
		Token:                func() string { return "tok" },
		ReconnectInterval:    time.Hour,
		MaxReconnectAttempts: 5,
	})

	c.Connect()
	waitFor(t, "reconnecting state", func() bool { return c.State() == StateReconnecting })

	c.Disconnect()
	if got := c.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}

	time.Sleep(50 * time.Millisecond)
	if got := c.State(); got != StateDisconnected {
		t.Errorf("state drifted to %s after explicit disconnect", got)
	}
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	h := newWSHarness(t)
	c := newTestChannel(h, Config{})
	defer c.Disconnect()

	c.Connect()
	conn := h.conn(t)
	h.nextMessage(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("pushing garbage: %v", err)
	}
	pushJSON(t, conn, map[string]string{"type": "mystery"})
	pushJSON(t, conn, inboundEnvelope{Type: msgTypeError, Error: "boom"})

	// The connection survives and later frames still apply.
	count := 7
	pushJSON(t, conn, inboundEnvelope{Type: msgTypeUnreadCount, Count: &count})
	waitFor(t, "count after garbage", func() bool { return c.UnreadCount() == 7 })

	if c.State() != StateConnected {
		t.Errorf("state = %s, want connected", c.State())
	}
	if len(c.Notifications()) != 0 {
		t.Errorf("log = %d entries, want 0", len(c.Notifications()))
	}
}

func TestConnectWithoutTokenIsNoop(t *testing.T) {
	h := newWSHarness(t)
	c := New(Config{URL: h.url(), Token: func() string { return "" }})

	c.Connect()
	time.Sleep(20 * time.Millisecond)

	if got := c.State(); got != StateDisconnected {
		t.Errorf("state = %s, want disconnected without a token", got)
	}
	select {
	case <-h.conns:
		t.Error("dialed without a token")
	default:
	}
}

func TestMarkAsReadSendsServerFrame(t *testing.T) {
	h := newWSHarness(t)
	c := newTestChannel(h, Config{})
	defer c.Disconnect()

	c.Connect()
	h.conn(t)
	h.nextMessage(t)

	c.Restore([]model.Notification{testNotification(55)})
	c.MarkAsRead(55)

	msg := h.nextMessage(t)
	if msg.Action != actionMarkAsRead || msg.NotificationID != 55 {
		t.Errorf("frame = %+v, want mark_as_read for 55", msg)
	}

	c.MarkAllAsRead()
	if msg := h.nextMessage(t); msg.Action != actionMarkAllAsRead {
		t.Errorf("frame action = %q, want %q", msg.Action, actionMarkAllAsRead)
	}
}

func TestRestoreDerivesUnreadFromFlags(t *testing.T) {
	c := New(Config{URL: "ws://unused", Token: func() string { return "" }})

	read := testNotification(1)
	read.IsRead = true
	c.Restore([]model.Notification{testNotification(3), testNotification(2), read})

	if c.UnreadCount() != 2 {
		t.Errorf("unread = %d, want 2", c.UnreadCount())
	}
	if len(c.Notifications()) != 3 {
		t.Errorf("log = %d entries, want 3", len(c.Notifications()))
	}
}

func TestSubscribePublishesEvents(t *testing.T) {
	h := newWSHarness(t)
	c := newTestChannel(h, Config{})
	defer c.Disconnect()

	events, cancel := c.Subscribe()
	defer cancel()

	c.Connect()
	conn := h.conn(t)
	h.nextMessage(t)

	n := testNotification(5)
	pushJSON(t, conn, inboundEnvelope{Type: msgTypeNotification, Notification: &n})

	var sawConnected, sawNotification, sawCount bool
	deadline := time.After(2 * time.Second)
	for !(sawConnected && sawNotification && sawCount) {
		select {
		case ev := <-events:
			switch {
			case ev.Kind == EventStateChanged && ev.State == StateConnected:
				sawConnected = true
			case ev.Kind == EventNotification && ev.Notification != nil && ev.Notification.ID == 5:
				sawNotification = true
			case ev.Kind == EventUnreadCount && ev.UnreadCount == 1:
				sawCount = true
			}
		case <-deadline:
			t.Fatalf("missing events: connected=%v notification=%v count=%v",
				sawConnected, sawNotification, sawCount)
		}
	}
}

// Guard against the envelope shape drifting from the wire protocol.
func TestInboundEnvelopeDecoding(t *testing.T) {
	raw := `{
		"type": "notification",
		"notification": {
			"id": 12,
			"title": "Low stock",
			"message": "Oil filter below minimum",
			"priority": "high",
			"type": "low_stock",
			"action_url": "/inventory/12",
			"created_at": "2026-08-01T10:00:00Z"
		}
	}`
	var env inboundEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if env.Type != msgTypeNotification || env.Notification == nil {
		t.Fatalf("envelope = %+v", env)
	}
	n := env.Notification
	if n.ID != 12 || n.Priority != model.PriorityHigh || n.ActionURL != "/inventory/12" {
		t.Errorf("notification = %+v", n)
	}
}
