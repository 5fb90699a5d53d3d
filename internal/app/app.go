package app

import (
	"fmt"
	"net/http"

	"birdwatch/internal/config"
	"birdwatch/internal/handler"
	"birdwatch/internal/logger"
	"birdwatch/internal/repository"
	"birdwatch/internal/repository/sqlite"
	"birdwatch/internal/route"
	"birdwatch/internal/service/annotate"
	"birdwatch/internal/service/session"
	"birdwatch/internal/service/storage"
	"birdwatch/internal/service/stream"
	"birdwatch/internal/service/vision"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	vision     vision.Client
	sessions   *session.Manager
	dispatcher *handler.Dispatcher
}

// NewApp wires every service. The config must already be validated.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}

	var ledger repository.ArtifactRepository
	if cfg.LedgerPath != "" {
		db, err := sqlite.New(cfg.LedgerPath)
		if err != nil {
			log.Close()
			return nil, err
		}
		a.db = db
		ledger = sqlite.NewArtifactRepository(db)
	}

	client, err := vision.New(cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	a.vision = client

	a.sessions = session.NewManager(ledger, log)
	a.dispatcher = handler.NewDispatcher(
		cfg,
		stream.NewSource(cfg, log),
		client,
		storage.NewCaptureStore(cfg, log),
		a.sessions,
		annotate.NewRenderer(cfg.MarkerRadius),
		log,
	)
	return a, nil
}

// Run removes captures left by a previous process and serves until the listener fails.
func (a *App) Run() error {
	if _, err := a.sessions.SweepOrphans(); err != nil {
		a.logger.Error("Orphan sweep failed: %v", err)
	}

	router := route.SetupRoutes(a.dispatcher, a.sessions, a.config, a.logger)

	a.logger.Info("Bird detection server listening on :%d", a.config.Port)
	a.logger.Info("Stream: %s", a.config.StreamURL)
	a.logger.Info("Captures: %s", a.config.CaptureDirectory)
	a.logger.Info("Vision: %s/%s", a.config.VisionProvider, a.config.VisionModel)

	return http.ListenAndServe(fmt.Sprintf(":%d", a.config.Port), router)
}

func (a *App) Close() {
	if a.vision != nil {
		a.vision.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Close()
}
