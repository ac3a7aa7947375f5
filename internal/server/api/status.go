package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/moodsense/internal/app"
	"github.com/ayusman/moodsense/internal/store"
)

// EnabledSetting is the settings key that persists the pipeline's enabled flag.
const EnabledSetting = "enabled"

// StatusHandler exposes the live pipeline state: the latest result, the
// current session, and the enabled switch.
type StatusHandler struct {
	app      *app.App
	settings *store.SettingsRepository
}

// NewStatusHandler creates a StatusHandler. settings may be nil, in which
// case the enabled flag is not persisted.
func NewStatusHandler(a *app.App, settings *store.SettingsRepository) *StatusHandler {
	return &StatusHandler{app: a, settings: settings}
}

type statusResponse struct {
	Enabled bool             `json:"enabled"`
	Session *app.SessionInfo `json:"session"`
	Latest  *app.Result      `json:"latest"`
}

type resetRequest struct {
	StreamID string `json:"stream_id"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type enabledResponse struct {
	Enabled bool `json:"enabled"`
}

// Status handles GET /api/status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{Enabled: h.app.IsEnabled()}
	if info, ok := h.app.Session(); ok {
		resp.Session = &info
	}
	if latest, ok := h.app.Status(); ok {
		resp.Latest = &latest
	}

	writeJSON(w, http.StatusOK, resp)
}

// ResetSession handles POST /api/session/reset. The optional body names the
// stream the new session belongs to.
func (h *StatusHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	info := h.app.ResetSession(req.StreamID)
	writeJSON(w, http.StatusOK, info)
}

// Enabled handles GET and POST /api/enabled.
func (h *StatusHandler) Enabled(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, enabledResponse{Enabled: h.app.IsEnabled()})
	case http.MethodPost:
		var req enabledRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}

		h.app.SetEnabled(*req.Enabled)
		if h.settings != nil {
			if err := h.settings.SetBool(EnabledSetting, *req.Enabled); err != nil {
				log.WithError(err).Warn("Failed to persist enabled setting")
			}
		}
		writeJSON(w, http.StatusOK, enabledResponse{Enabled: *req.Enabled})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
