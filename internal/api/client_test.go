package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, func() string { return "tok-abc" }, 5*time.Second)
}

func TestClientSetsAuthHeaders(t *testing.T) {
	var gotAuth, gotRequestID, gotAccept string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotAccept = r.Header.Get("Accept")
		json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	})

	var out map[string]string
	if err := c.Get(context.Background(), "/api/ping", &out); err != nil {
		t.Fatalf("get: %v", err)
	}

	if gotAuth != "Bearer tok-abc" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("expected an X-Request-ID header")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if out["ok"] != "yes" {
		t.Errorf("response = %v", out)
	}
}

func TestClientExtractsServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid shop"})
	})

	err := c.Post(context.Background(), "/api/auth/switch-shop/99", struct{}{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "Invalid shop" {
		t.Errorf("got %+v", apiErr)
	}
	if UserMessage(err, "fallback") != "Invalid shop" {
		t.Errorf("UserMessage = %q", UserMessage(err, "fallback"))
	}
}

func TestClientReportsUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Token expired"})
	})

	hookCalled := false
	c.OnUnauthorized(func() { hookCalled = true })

	var out map[string]string
	err := c.Get(context.Background(), "/api/auth/me", &out)
	if !IsAuthError(err) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if !hookCalled {
		t.Error("401 must invoke the unauthorized hook")
	}
	if UserMessage(err, "fallback") != "Token expired" {
		t.Errorf("UserMessage = %q", UserMessage(err, "fallback"))
	}
}

func TestUserMessageFallsBack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>not json</html>"))
	})

	err := c.Get(context.Background(), "/api/auth/me", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := UserMessage(err, "Something went wrong"); got != "Something went wrong" {
		t.Errorf("UserMessage = %q, want fallback", got)
	}

	if got := UserMessage(errors.New("dial tcp: refused"), "Server unreachable"); got != "Server unreachable" {
		t.Errorf("UserMessage for transport error = %q, want fallback", got)
	}
}
