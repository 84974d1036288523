package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/ranitraj/instaLens/internal/config"
	"github.com/ranitraj/instaLens/internal/handler"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/middleware"
	"github.com/ranitraj/instaLens/internal/repository"
	"github.com/ranitraj/instaLens/internal/service"
	"github.com/ranitraj/instaLens/internal/service/capture"
	"github.com/ranitraj/instaLens/internal/service/state"
	"github.com/ranitraj/instaLens/internal/service/websocket"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	Manager       *service.Manager
	State         *state.State
	Capture       *capture.Service
	Hub           *websocket.HubService
	ImageRepo     repository.ImageRepository
	DetectionRepo repository.DetectionRepository
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers static file serving and the API endpoints, wrapped with request logging.
func SetupRoutes(d Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Live pipeline
	mux.HandleFunc("/api/camera", handler.CameraWebsocketHandler(d.Manager, d.Logger))
	mux.HandleFunc("/api/camera/toggle", handler.ToggleLensHandler(d.Manager, d.Logger))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(d.Hub, d.Logger))
	mux.HandleFunc("/api/threshold", handler.ThresholdHandler(d.State, d.Logger))
	mux.HandleFunc("/api/capture", handler.CaptureHandler(d.Manager, d.Capture, d.Logger))
	mux.HandleFunc("/api/stats", handler.StatsHandler(d.Manager, d.Capture, d.ImageRepo, d.Logger))

	// Gallery
	mux.HandleFunc("/api/pictures", handler.GetPicturesHandler(d.Config, d.Logger, d.ImageRepo, d.DetectionRepo))
	mux.HandleFunc("/api/pictures/view", handler.ViewPictureHandler(d.Config))
	mux.HandleFunc("/api/pictures/clear", handler.ClearPicturesHandler(d.Config, d.Logger, d.ImageRepo))
	mux.HandleFunc("/api/pictures/delete", handler.DeletePictureHandler(d.Config, d.Logger, d.ImageRepo))

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(d.Logger, logger.InfoFile))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(d.Logger, logger.WarningFile))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(d.Logger, logger.ErrorFile))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(d.Logger, logger.InfoFile))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(d.Logger, logger.WarningFile))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(d.Logger, logger.ErrorFile))

	// Automatic HTML handler mapping for example: /gallery -> /static/gallery.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.RequestLogger(d.Logger)(mux)
}
