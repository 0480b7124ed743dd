package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/charlesng35/veloigp/internal/cache"
	"github.com/charlesng35/veloigp/internal/database"
	apperrors "github.com/charlesng35/veloigp/pkg/errors"
)

// Fixed preference keys understood by the dashboard.
const (
	PreferenceConfig        = database.DashboardConfigKey
	PreferenceCookieConsent = "veloigp-cookie-consent"
	PreferenceAccessibility = "veloigp-accessibility"
)

const maxPreferenceBytes = 64 << 10

var (
	// ErrUnknownPreference is returned for keys outside the fixed set.
	ErrUnknownPreference = apperrors.New("UNKNOWN_PREFERENCE", "Unknown preference key", http.StatusNotFound)
	// ErrPreferenceNotSet is returned when a known key has no stored value and no default.
	ErrPreferenceNotSet = apperrors.New("PREFERENCE_NOT_SET", "Preference has not been saved yet", http.StatusNotFound)
)

var preferenceDefaults = map[string]json.RawMessage{
	PreferenceConfig: json.RawMessage(database.DefaultDashboardConfig),
}

// PreferenceKeys lists the accepted keys in a stable order.
func PreferenceKeys() []string {
	return []string{PreferenceConfig, PreferenceCookieConsent, PreferenceAccessibility}
}

// PreferencesService persists the dashboard's small JSON blobs in the KV store.
// Values carry no schema version; any valid JSON document is accepted.
type PreferencesService struct {
	store cache.Store
}

// NewPreferencesService constructs the service on top of a KV store.
func NewPreferencesService(store cache.Store) (*PreferencesService, error) {
	if store == nil {
		return nil, errors.New("preferences service: store is required")
	}
	return &PreferencesService{store: store}, nil
}

// Get returns the stored blob for key, falling back to its default.
func (s *PreferencesService) Get(ctx context.Context, key string) (json.RawMessage, error) {
	ctx = ensureContext(ctx)
	key, err := checkPreferenceKey(key)
	if err != nil {
		return nil, err
	}

	value, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("preferences service: load %s: %w", key, err)
	}
	if !ok {
		if def, found := preferenceDefaults[key]; found {
			return slices.Clone(def), nil
		}
		return nil, ErrPreferenceNotSet
	}
	return json.RawMessage(value), nil
}

// Put replaces the blob stored under key.
func (s *PreferencesService) Put(ctx context.Context, key string, value json.RawMessage) (json.RawMessage, error) {
	ctx = ensureContext(ctx)
	key, err := checkPreferenceKey(key)
	if err != nil {
		return nil, err
	}
	if len(value) > maxPreferenceBytes {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("preference value exceeds %d bytes", maxPreferenceBytes))
	}
	if len(value) == 0 || !json.Valid(value) {
		return nil, apperrors.NewBadRequest("preference value must be valid JSON")
	}

	if err := s.store.Set(ctx, key, value, 0); err != nil {
		return nil, fmt.Errorf("preferences service: store %s: %w", key, err)
	}
	return slices.Clone(value), nil
}

// Delete forgets the stored value so the default applies again.
func (s *PreferencesService) Delete(ctx context.Context, key string) error {
	ctx = ensureContext(ctx)
	key, err := checkPreferenceKey(key)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("preferences service: delete %s: %w", key, err)
	}
	return nil
}

func checkPreferenceKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if !slices.Contains(PreferenceKeys(), key) {
		return "", ErrUnknownPreference
	}
	return key, nil
}
