package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// SettingKeyOffersEnabled gates the purchase offer branch globally.
const SettingKeyOffersEnabled = "offers_enabled"

// ErrSettingNotFound indicates that no row exists for the requested key.
var ErrSettingNotFound = errors.New("setting not found")

// SettingsRepository reads operator-managed key/value settings.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	GetBool(ctx context.Context, key string, fallback bool) (bool, error)
}

type settingsRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSettingsRepository creates a SQL-backed settings repository.
func NewSettingsRepository(db *sql.DB, log *slog.Logger) SettingsRepository {
	return &settingsRepository{
		db:  db,
		log: log,
	}
}

// Get returns the raw value for the key or ErrSettingNotFound.
func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM settings WHERE key = $1`

	var value string
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", fmt.Errorf("select setting %q: %w", key, err)
	}

	return value, nil
}

// GetBool interprets the value as a boolean flag, returning fallback when
// the key is absent.
func (r *settingsRepository) GetBool(ctx context.Context, key string, fallback bool) (bool, error) {
	value, err := r.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			return fallback, nil
		}
		return fallback, err
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on", "1", "да":
		return true, nil
	default:
		return false, nil
	}
}
