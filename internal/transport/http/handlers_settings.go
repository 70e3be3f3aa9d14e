package httptransport

import (
	"net/http"

	"bookedge/pkg/platform/httputil"
)

// settingsCacheControl lets the CDN serve the settings snapshot for the
// same window the gateway caches it, with a short stale grace.
const settingsCacheControl = "public, s-maxage=10, stale-while-revalidate=30"

type settingsStatusResponse struct {
	MaintenanceMode   bool `json:"maintenanceMode"`
	AllowRegistration bool `json:"allowRegistration"`
}

// handleSettingsStatus reports the traffic-gating flags. The route itself
// is exempt from the maintenance gate so clients can learn why they are
// blocked.
func (h *Handlers) handleSettingsStatus(w http.ResponseWriter, r *http.Request) {
	state := h.gate.AccessState(r.Context())

	w.Header().Set("Cache-Control", settingsCacheControl)
	httputil.WriteJSON(w, http.StatusOK, &settingsStatusResponse{
		MaintenanceMode:   state.MaintenanceMode,
		AllowRegistration: state.AllowRegistration,
	})
}

// handleHealth is the liveness probe.
func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
