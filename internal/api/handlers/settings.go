package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/pysugar/photo-slideshow/internal/config"
)

// Settings holds the player settings for the life of the process.
type Settings struct {
	mu      sync.RWMutex
	current config.Slideshow
}

func NewSettings(defaults config.Slideshow) *Settings {
	return &Settings{current: defaults}
}

func (s *Settings) Get() config.Slideshow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SettingsHandler returns or updates the player settings. Fields missing
// from a POST body keep their current value.
// GET|POST /api/settings
func SettingsHandler(settings *Settings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, settings.Get())
			return
		}

		settings.mu.Lock()
		next := settings.current
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			settings.mu.Unlock()
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if next.Speed <= 0 {
			next.Speed = settings.current.Speed
		}
		settings.current = next
		settings.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]string{"message": "Settings updated"})
	}
}
