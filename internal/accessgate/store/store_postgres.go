// Package store provides settings storage backends for the access gate.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"bookedge/internal/accessgate/models"
)

// PostgresStore reads the traffic-gating settings from the system_settings
// table. Settings are stored as key/value rows so operators can flip them
// without a deploy.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgres constructs a PostgreSQL-backed settings store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:    db,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAccessState reads both gating settings in one query. Keys missing
// from the table keep their defaults (maintenance off, registration on).
func (s *PostgresStore) FetchAccessState(ctx context.Context) (*models.AccessState, error) {
	query := `
		SELECT key, value
		FROM system_settings
		WHERE key IN ($1, $2)
	`
	rows, err := s.db.QueryContext(ctx, query,
		models.KeyMaintenanceMode, models.KeyAllowRegistration)
	if err != nil {
		return nil, fmt.Errorf("fetch access state: %w", err)
	}
	defer rows.Close()

	state := models.DefaultAccessState()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting row: %w", err)
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			// A malformed row keeps the key's default rather than failing
			// the whole fetch.
			continue
		}
		switch key {
		case models.KeyMaintenanceMode:
			state.MaintenanceMode = enabled
		case models.KeyAllowRegistration:
			state.AllowRegistration = enabled
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate setting rows: %w", err)
	}

	state.FetchedAt = s.clock()
	return state, nil
}

// SetMaintenanceMode flips the maintenance flag. Used by operator tooling
// and integration tests.
func (s *PostgresStore) SetMaintenanceMode(ctx context.Context, enabled bool) error {
	return s.upsert(ctx, models.KeyMaintenanceMode, strconv.FormatBool(enabled))
}

// SetAllowRegistration flips the registration flag.
func (s *PostgresStore) SetAllowRegistration(ctx context.Context, enabled bool) error {
	return s.upsert(ctx, models.KeyAllowRegistration, strconv.FormatBool(enabled))
}

func (s *PostgresStore) upsert(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO system_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
