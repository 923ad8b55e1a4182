// Package session owns the authenticated identity: the bearer token,
// the current user record, and the active shop context. It is the sole
// writer of the stored token; every other component only reads it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopcrm/crm-console/internal/api"
	"github.com/shopcrm/crm-console/internal/credential"
	"github.com/shopcrm/crm-console/internal/model"
)

// ErrNotAuthenticated is returned when an operation requires a live
// session and there is none.
var ErrNotAuthenticated = errors.New("not authenticated")

// API is the subset of the CRM client the session layer depends on.
type API interface {
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)
	Me(ctx context.Context) (*model.User, error)
	SwitchShop(ctx context.Context, shopID int) error
}

// Prefs persists the selected shop id across restarts. Implemented by
// the local store; a nil Prefs disables persistence.
type Prefs interface {
	SetCurrentShopID(shopID int) error
	ClearCurrentShopID() error
}

// State is an immutable snapshot of the session published to
// subscribers.
type State struct {
	// User is the validated identity, or nil when logged out.
	User *model.User

	// Shop is the active shop context, or nil.
	Shop *model.Shop

	// Authenticated is true only after a non-expired token was
	// validated against the server at least once since last logout.
	Authenticated bool

	// Loading is true while a login or revalidation request is in
	// flight. Route guards wait for it to settle before deciding.
	Loading bool
}

// Manager is the single source of truth for "who is logged in, with
// what token, in what shop context".
type Manager struct {
	apiClient API
	creds     credential.Store
	prefs     Prefs

	mu       sync.Mutex
	state    State
	inflight chan struct{}
	subs     map[int]chan State
	nextSub  int
}

// NewManager creates a session manager over the given API client and
// credential store. prefs may be nil.
func NewManager(apiClient API, creds credential.Store, prefs Prefs) *Manager {
	return &Manager{
		apiClient: apiClient,
		creds:     creds,
		prefs:     prefs,
		subs:      make(map[int]chan State),
	}
}

// Token returns the stored bearer token, or "" when absent.
func (m *Manager) Token() string {
	token, err := m.creds.Get(credential.KeyAccessToken)
	if err != nil {
		return ""
	}
	return token
}

// IsAuthenticated is a fast, client-only check: token present and not
// expired by the local clock. It does not guarantee server-side
// validity; callers needing certainty must use GetCurrentUser.
func (m *Manager) IsAuthenticated() bool {
	token := m.Token()
	return token != "" && !TokenExpired(token)
}

// State returns the current session snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a channel of session snapshots and a cancel
// function. The channel is buffered; slow consumers miss intermediate
// snapshots rather than blocking the session. Callers must cancel on
// teardown.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan State, 8)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publishLocked sends the current state to all subscribers without
// blocking. Callers must hold m.mu.
func (m *Manager) publishLocked() {
	for _, ch := range m.subs {
		select {
		case ch <- m.state:
		default:
			// Drop for slow consumers; the next snapshot supersedes.
		}
	}
}

// Login exchanges credentials for a token and establishes the session.
// On failure the stored state is left untouched and the returned error
// carries the server's message when the body had one (use
// api.UserMessage to display it).
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	m.state.Loading = true
	m.publishLocked()
	m.mu.Unlock()

	resp, err := m.apiClient.Login(ctx, username, password)
	if err != nil {
		m.mu.Lock()
		m.state.Loading = false
		m.publishLocked()
		m.mu.Unlock()
		return fmt.Errorf("logging in: %w", err)
	}

	if err := m.creds.Set(credential.KeyAccessToken, resp.AccessToken); err != nil {
		m.mu.Lock()
		m.state.Loading = false
		m.publishLocked()
		m.mu.Unlock()
		return fmt.Errorf("storing token: %w", err)
	}

	m.mu.Lock()
	user := resp.User
	m.state = State{
		User:          &user,
		Shop:          user.CurrentShop,
		Authenticated: true,
	}
	m.publishLocked()
	m.mu.Unlock()

	m.persistShop(user.CurrentShop)
	return nil
}

// GetCurrentUser revalidates the stored token against the server and
// refreshes the user and shop context. Any failure resolves to Logout:
// revalidation is fail-closed and never leaves the session in an
// unknown state. Concurrent calls coalesce into one request.
func (m *Manager) GetCurrentUser(ctx context.Context) (*model.User, error) {
	m.mu.Lock()
	if inflight := m.inflight; inflight != nil {
		m.mu.Unlock()
		select {
		case <-inflight:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.state.Authenticated {
			return nil, ErrNotAuthenticated
		}
		return m.state.User, nil
	}

	done := make(chan struct{})
	m.inflight = done
	m.state.Loading = true
	m.publishLocked()
	m.mu.Unlock()

	user, err := m.apiClient.Me(ctx)

	m.mu.Lock()
	m.inflight = nil
	if err != nil {
		// Reset state before releasing the waiters so none of them
		// can observe the pre-failure session.
		m.state = State{}
		m.publishLocked()
		close(done)
		m.mu.Unlock()
		m.Logout()
		return nil, fmt.Errorf("revalidating session: %w", err)
	}
	close(done)

	m.state = State{
		User:          user,
		Shop:          user.CurrentShop,
		Authenticated: true,
	}
	m.publishLocked()
	m.mu.Unlock()

	m.persistShop(user.CurrentShop)
	return user, nil
}

// SwitchShop requests a server-side shop context switch, then re-runs
// GetCurrentUser to pick up the new context. The server is
// authoritative: nothing is mutated locally until the refresh succeeds.
func (m *Manager) SwitchShop(ctx context.Context, shopID int) error {
	if err := m.apiClient.SwitchShop(ctx, shopID); err != nil {
		return fmt.Errorf("switching shop: %w", err)
	}
	if _, err := m.GetCurrentUser(ctx); err != nil {
		return fmt.Errorf("refreshing session after shop switch: %w", err)
	}
	return nil
}

// Logout clears the stored token and all session state unconditionally.
// It is a local-only operation with no network failure path; subscribers
// observe Authenticated=false and navigate back to the login entry.
func (m *Manager) Logout() {
	_ = m.creds.Delete(credential.KeyAccessToken)
	if m.prefs != nil {
		_ = m.prefs.ClearCurrentShopID()
	}

	m.mu.Lock()
	m.state = State{}
	m.publishLocked()
	m.mu.Unlock()
}

// persistShop records the active shop id for the next startup.
func (m *Manager) persistShop(shop *model.Shop) {
	if m.prefs == nil || shop == nil {
		return
	}
	_ = m.prefs.SetCurrentShopID(shop.ID)
}
