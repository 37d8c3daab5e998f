package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/internal/store"
	"github.com/wonny/rotor/pkg/logger"
)

func TestSettingsGet_Defaults(t *testing.T) {
	h := NewSettingsHandler(store.NewMemorySettings(), logger.Nop())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest("GET", "/api/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var settings contracts.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, 15, settings.TotalSize())
	assert.Equal(t, 0.15, settings.TrailingStopPct)
}

func TestSettingsPut_RoundTrip(t *testing.T) {
	settingsStore := store.NewMemorySettings()
	h := NewSettingsHandler(settingsStore, logger.Nop())

	body := `{
		"take_profit_count": 2, "hold_count": 6, "buffer_count": 2,
		"trailing_stop_pct": 0.2, "initial_capital": 50000,
		"schedule_day": "fri", "schedule_time": "09:30",
		"schedule_timezone": "America/New_York"
	}`

	rec := httptest.NewRecorder()
	h.Put(rec, httptest.NewRequest("PUT", "/api/settings", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved, err := settingsStore.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, saved.TotalSize())
	assert.Equal(t, "fri", saved.ScheduleDay)
}

func TestSettingsPut_Rejections(t *testing.T) {
	h := NewSettingsHandler(store.NewMemorySettings(), logger.Nop())

	valid := func(mutate func(m map[string]interface{})) string {
		m := map[string]interface{}{
			"take_profit_count": 3, "hold_count": 10, "buffer_count": 2,
			"trailing_stop_pct": 0.15, "initial_capital": 150000,
			"schedule_day": "mon", "schedule_time": "19:00",
			"schedule_timezone": "Europe/Rome",
		}
		mutate(m)
		data, _ := json.Marshal(m)
		return string(data)
	}

	tests := []struct {
		name string
		body string
	}{
		{"unknown field", valid(func(m map[string]interface{}) { m["leverage"] = 2 })},
		{"stop out of range", valid(func(m map[string]interface{}) { m["trailing_stop_pct"] = 1.5 })},
		{"bad day", valid(func(m map[string]interface{}) { m["schedule_day"] = "monday" })},
		{"bad time", valid(func(m map[string]interface{}) { m["schedule_time"] = "7pm" })},
		{"bad timezone", valid(func(m map[string]interface{}) { m["schedule_timezone"] = "Mars/Olympus" })},
		{"oversized basket", valid(func(m map[string]interface{}) { m["hold_count"] = 60 })},
		{"not json", "take_profit_count=3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Put(rec, httptest.NewRequest("PUT", "/api/settings", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
