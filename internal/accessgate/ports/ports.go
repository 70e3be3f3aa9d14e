// Package ports defines the storage interface for the access gate.
package ports

import (
	"context"

	"bookedge/internal/accessgate/models"
)

// SettingsStore loads the traffic-gating settings from their source of truth.
type SettingsStore interface {
	// FetchAccessState reads the current settings. Missing keys take their
	// default values; a transport failure returns an error.
	FetchAccessState(ctx context.Context) (*models.AccessState, error)
}
