package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/ranitraj/instaLens/internal/config"
	"github.com/ranitraj/instaLens/internal/handler"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/repository/sqlite"
	"github.com/ranitraj/instaLens/internal/routes"
	"github.com/ranitraj/instaLens/internal/service"
	"github.com/ranitraj/instaLens/internal/service/ai"
	"github.com/ranitraj/instaLens/internal/service/capture"
	"github.com/ranitraj/instaLens/internal/service/compositor"
	"github.com/ranitraj/instaLens/internal/service/detection"
	"github.com/ranitraj/instaLens/internal/service/overlay"
	"github.com/ranitraj/instaLens/internal/service/state"
	"github.com/ranitraj/instaLens/internal/service/storage"
	"github.com/ranitraj/instaLens/internal/service/websocket"
)

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	detector *detection.Manager
	manager  *service.Manager
	hub      *websocket.HubService
	router   http.Handler
}

func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	imageRepo := sqlite.NewImageRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	detector := detection.NewManager(ai.NewEngineFactory(cfg, log.Named("ai")), cfg.MaxResults, log.Named("detection"))
	st := state.New(cfg.InitialConfidence, log.Named("state"))

	colors := overlay.NewColorMap(0)
	comp := compositor.New(colors, compositor.Options{
		StrokeWidth: cfg.StrokeWidth,
		TextSize:    cfg.TextSize,
		LabelMargin: cfg.LabelMargin,
	})
	sink := storage.NewGallerySink(cfg, log.Named("gallery"), imageRepo)
	captureService := capture.New(st, comp, sink, log.Named("capture"), capture.WithMirrorFront(cfg.MirrorFrontCamera))

	mng := service.NewManager(detector, st, cfg, log.Named("pipeline"))
	hub := websocket.NewHubService(st, overlay.NewRenderer(colors), log.Named("hub"))

	router := routes.SetupRoutes(routes.Dependencies{
		Config:        cfg,
		Logger:        log,
		Manager:       mng,
		State:         st,
		Capture:       captureService,
		Hub:           hub,
		ImageRepo:     imageRepo,
		DetectionRepo: detectionRepo,
	})

	return &App{
		config:   cfg,
		logger:   log,
		db:       db,
		detector: detector,
		manager:  mng,
		hub:      hub,
		router:   router,
	}, nil
}

// Run serves until ctx is cancelled, then shuts everything down in order.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	// Start background services
	a.manager.Start(ctx)
	go a.hub.Run(ctx)
	go handler.UDPCameraHandler(ctx, a.manager, a.logger, a.config)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan struct{})
	go func() {
		defer close(shutdown)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server shutdown: %v", err)
		}
	}()

	a.logger.Info("🚀 instaLens server")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("📁 Images: %s", a.config.ImageDirectory)
	a.logger.Info("🤖 AI Model: %s (every %d frame(s), threshold %.2f)",
		a.config.ModelPath, a.config.FramesPerAnalysis, a.config.InitialConfidence)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return errors.Wrap(err, "server failed")
	}
	// Let in-flight requests finish before the database closes.
	<-shutdown
	return nil
}

func (a *App) close() {
	a.manager.Stop()
	if err := a.detector.Close(); err != nil {
		a.logger.Warning("Closing detector: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warning("Closing database: %v", err)
	}
	a.logger.Info("👋 Shutdown complete")
	_ = a.logger.Sync()
}
