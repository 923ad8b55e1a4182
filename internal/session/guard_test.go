package session

import (
	"context"
	"testing"

	"github.com/shopcrm/crm-console/internal/api"
	"github.com/shopcrm/crm-console/internal/credential"
	"github.com/shopcrm/crm-console/internal/model"
)

func TestGuardDeniesWithoutToken(t *testing.T) {
	apiClient := &fakeAPI{
		meFunc: func(ctx context.Context) (*model.User, error) {
			return directorUser(), nil
		},
	}
	g := NewGuard(NewManager(apiClient, newMemCreds(), nil))

	if g.Allow(context.Background()) {
		t.Error("guard must deny with no stored token")
	}
	if apiClient.meCalls.Load() != 0 {
		t.Error("guard must not hit the server when no token is stored")
	}
}

func TestGuardAllowsAfterRevalidation(t *testing.T) {
	apiClient := &fakeAPI{
		meFunc: func(ctx context.Context) (*model.User, error) {
			return directorUser(), nil
		},
	}
	creds := newMemCreds()
	_ = creds.Set(credential.KeyAccessToken, "tok")
	g := NewGuard(NewManager(apiClient, creds, nil))

	if !g.Allow(context.Background()) {
		t.Error("guard must allow when revalidation succeeds")
	}
}

func TestGuardDeniesWhenRevalidationFails(t *testing.T) {
	apiClient := &fakeAPI{
		meFunc: func(ctx context.Context) (*model.User, error) {
			return nil, &api.AuthError{Message: "Token expired"}
		},
	}
	creds := newMemCreds()
	_ = creds.Set(credential.KeyAccessToken, "stale")
	m := NewManager(apiClient, creds, nil)
	g := NewGuard(m)

	if g.Allow(context.Background()) {
		t.Error("guard must deny when revalidation fails")
	}
	if state := m.State(); state.Authenticated {
		t.Error("failed guard check must leave the session logged out")
	}
}
