// Package models defines the platform access state derived from the
// operator-controlled system settings.
package models

import "time"

// Setting keys in the system_settings table.
const (
	KeyMaintenanceMode   = "general.maintenance_mode"
	KeyAllowRegistration = "general.allow_registration"
)

// AccessState is the snapshot of the settings that gate inbound traffic.
type AccessState struct {
	MaintenanceMode   bool      `json:"maintenanceMode"`
	AllowRegistration bool      `json:"allowRegistration"`
	FetchedAt         time.Time `json:"-"`
}

// DefaultAccessState is the fail-open fallback used when no snapshot has
// ever been fetched: the platform stays reachable and registration stays
// enabled until the settings store says otherwise.
func DefaultAccessState() *AccessState {
	return &AccessState{
		MaintenanceMode:   false,
		AllowRegistration: true,
	}
}

// Age reports how long ago the snapshot was fetched.
func (s *AccessState) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}
