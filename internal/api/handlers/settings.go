package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/pkg/logger"
)

// SettingsHandler serves the typed runtime settings
// ⭐ SSOT: 설정 API 핸들러는 이 구조체에서만
type SettingsHandler struct {
	settings contracts.SettingsStore
	logger   *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings contracts.SettingsStore, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: log}
}

// Get returns the active settings
// GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Load(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load settings")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve settings")
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// Put replaces the settings. The whole document is validated against
// the whitelist before it is stored; unknown fields are rejected.
// 변경은 다음 사이클부터 적용됨.
// PUT /api/settings
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var settings contracts.Settings
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid settings body: "+err.Error())
		return
	}

	if err := settings.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.settings.Save(r.Context(), &settings); err != nil {
		h.logger.WithError(err).Error("Failed to save settings")
		respondError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"basket_size":   settings.TotalSize(),
		"trailing_stop": settings.TrailingStopPct,
	}).Info("Settings updated")
	respondJSON(w, http.StatusOK, &settings)
}
