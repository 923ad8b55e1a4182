package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopcrm/crm-console/internal/store"
	"github.com/shopcrm/crm-console/tests/testutil"
)

func TestPrefsRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if _, err := s.GetPref(ctx, store.PrefTheme); !errors.Is(err, store.ErrPrefNotFound) {
		t.Fatalf("got %v for missing pref, want ErrPrefNotFound", err)
	}

	if err := s.SetPref(ctx, store.PrefTheme, "dark"); err != nil {
		t.Fatalf("setting pref: %v", err)
	}
	if err := s.SetPref(ctx, store.PrefTheme, "light"); err != nil {
		t.Fatalf("overwriting pref: %v", err)
	}

	value, err := s.GetPref(ctx, store.PrefTheme)
	if err != nil {
		t.Fatalf("getting pref: %v", err)
	}
	if value != "light" {
		t.Errorf("got %q, want %q", value, "light")
	}

	if err := s.DeletePref(ctx, store.PrefTheme); err != nil {
		t.Fatalf("deleting pref: %v", err)
	}
	if err := s.DeletePref(ctx, store.PrefTheme); err != nil {
		t.Fatalf("deleting missing pref should not error: %v", err)
	}
}

func TestCurrentShopID(t *testing.T) {
	s := testutil.NewTestStore(t)

	if _, ok := s.CurrentShopID(); ok {
		t.Fatal("expected no shop id on a fresh store")
	}

	if err := s.SetCurrentShopID(42); err != nil {
		t.Fatalf("setting shop id: %v", err)
	}
	id, ok := s.CurrentShopID()
	if !ok || id != 42 {
		t.Errorf("got (%d, %v), want (42, true)", id, ok)
	}

	if err := s.ClearCurrentShopID(); err != nil {
		t.Fatalf("clearing shop id: %v", err)
	}
	if _, ok := s.CurrentShopID(); ok {
		t.Error("shop id survived clear")
	}
}
