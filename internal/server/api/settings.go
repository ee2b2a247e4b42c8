package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/ayusman/fingerspell/internal/store"
)

// settingValidators lists the runtime settings and how their values are checked.
// Settings take effect on the next start.
var settingValidators = map[string]func(string) error{
	store.SettingCommitThreshold: func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("must be a positive integer")
		}
		return nil
	},
	store.SettingMinConfidence: func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || f < 0 || f > 1 {
			return fmt.Errorf("must be a number between 0 and 1")
		}
		return nil
	},
	store.SettingSampleEvery: func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("must be a positive integer")
		}
		return nil
	},
}

// SettingsHandler reads and writes runtime settings.
type SettingsHandler struct {
	store *store.Store
}

// NewSettingsHandler creates a new SettingsHandler with the given store.
func NewSettingsHandler(s *store.Store) *SettingsHandler {
	return &SettingsHandler{store: s}
}

type settingsResponse struct {
	Settings map[string]string `json:"settings"`
}

// ServeHTTP handles GET and PUT /api/settings.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req map[string]string
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		for key, value := range req {
			validate, ok := settingValidators[key]
			if !ok {
				writeError(w, http.StatusBadRequest, "Unknown setting "+key)
				return
			}
			if err := validate(value); err != nil {
				writeError(w, http.StatusBadRequest, key+" "+err.Error())
				return
			}
		}
		for key, value := range req {
			if err := h.store.Settings().Set(key, value); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to save settings")
				return
			}
		}
	default:
		methodNotAllowed(w)
		return
	}

	all, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Settings: all})
}
