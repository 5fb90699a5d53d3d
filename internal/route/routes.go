package route

import (
	"net/http"
	"os"

	"birdwatch/internal/config"
	"birdwatch/internal/handler"
	"birdwatch/internal/logger"
	"birdwatch/internal/middleware"
	"birdwatch/internal/service/session"
)

// SetupRoutes registers the WebSocket endpoint, API endpoints and static files,
// and wraps the mux with request logging.
func SetupRoutes(dispatcher *handler.Dispatcher, sessions *session.Manager, cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", handler.AnalyzeWebsocketHandler(dispatcher, sessions, cfg, log))
	mux.HandleFunc("/api/status", handler.StatusHandler(sessions, cfg))

	// Log endpoints
	mux.HandleFunc("/api/logs/info", handler.ShowLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/api/logs/warning", handler.ShowLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/api/logs/error", handler.ShowLogsHandler(log, logger.ErrorFile))

	mux.HandleFunc("/api/logs/info/clear", handler.ClearLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/api/logs/warning/clear", handler.ClearLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/api/logs/error/clear", handler.ClearLogsHandler(log, logger.ErrorFile))

	if info, err := os.Stat(cfg.StaticDirectory); err == nil && info.IsDir() {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDirectory)))
	}

	return middleware.RequestLogger(log, mux)
}
