package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// ErrPrefNotFound is returned when no preference exists for a key.
var ErrPrefNotFound = errors.New("preference not found")

// GetPref retrieves a preference value by key.
func (s *SQLiteStore) GetPref(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		"SELECT value FROM prefs WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPrefNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting pref %q: %w", key, err)
	}
	return value, nil
}

// SetPref stores a preference value by key.
func (s *SQLiteStore) SetPref(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prefs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("setting pref %q: %w", key, err)
	}
	return nil
}

// DeletePref removes a preference by key. Deleting a missing key is
// not an error.
func (s *SQLiteStore) DeletePref(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM prefs WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting pref %q: %w", key, err)
	}
	return nil
}

// SetCurrentShopID persists the active shop id across restarts. It
// implements the session layer's Prefs contract.
func (s *SQLiteStore) SetCurrentShopID(shopID int) error {
	return s.SetPref(context.Background(), PrefCurrentShopID, strconv.Itoa(shopID))
}

// ClearCurrentShopID removes the persisted shop id.
func (s *SQLiteStore) ClearCurrentShopID() error {
	return s.DeletePref(context.Background(), PrefCurrentShopID)
}

// CurrentShopID returns the persisted shop id, if any.
func (s *SQLiteStore) CurrentShopID() (int, bool) {
	value, err := s.GetPref(context.Background(), PrefCurrentShopID)
	if err != nil {
		return 0, false
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return id, true
}
