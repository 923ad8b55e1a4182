package session

import "context"

// Guard gates access to protected views. It rejects immediately when no
// token is stored, and otherwise waits for a server revalidation to
// settle before deciding, so the decision never races the in-flight
// response.
type Guard struct {
	manager *Manager
}

// NewGuard creates a guard over the given session manager.
func NewGuard(manager *Manager) *Guard {
	return &Guard{manager: manager}
}

// Allow reports whether a protected view may activate. Concurrent
// guards share a single revalidation request.
func (g *Guard) Allow(ctx context.Context) bool {
	if g.manager.Token() == "" {
		return false
	}

	if _, err := g.manager.GetCurrentUser(ctx); err != nil {
		return false
	}
	return true
}
