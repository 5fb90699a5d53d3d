package handler

import (
	"net/http"

	"birdwatch/internal/config"
	"birdwatch/internal/service/session"
)

type statusResponse struct {
	session.Stats
	CaptureDir string `json:"capture_dir"`
	Provider   string `json:"provider"`
}

// StatusHandler reports live connections and tracked captures.
func StatusHandler(sessions *session.Manager, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(statusResponse{
			Stats:      sessions.Stats(),
			CaptureDir: cfg.CaptureDirectory,
			Provider:   cfg.VisionProvider,
		})
	}
}
