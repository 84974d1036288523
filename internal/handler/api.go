package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ranitraj/instaLens/internal/imageutil"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/repository"
	"github.com/ranitraj/instaLens/internal/service"
	"github.com/ranitraj/instaLens/internal/service/capture"
	"github.com/ranitraj/instaLens/internal/service/state"
)

// MaxCaptureBytes caps the size of an uploaded full-resolution photo.
const MaxCaptureBytes = 32 << 20

type thresholdBody struct {
	Threshold float64 `json:"threshold"`
}

// ThresholdHandler reads (GET) or sets (POST {"threshold":v}) the confidence threshold.
func ThresholdHandler(st *state.State, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, thresholdBody{Threshold: st.Threshold()}, logger)

		case http.MethodPost, http.MethodPut:
			var body thresholdBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "Invalid JSON body", http.StatusBadRequest)
				return
			}
			if err := state.ValidateThreshold(body.Threshold); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			v := st.SetThreshold(body.Threshold)
			logger.Info("Confidence threshold set to %.2f", v)
			writeJSON(w, http.StatusOK, thresholdBody{Threshold: v}, logger)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// ToggleLensHandler switches between the front and back lens.
func ToggleLensHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		lens := manager.ToggleLens()
		writeJSON(w, http.StatusOK, map[string]model.Lens{"lens": lens}, logger)
	}
}

// CaptureHandler saves the uploaded photo with the current detections burned in.
// The request body is the encoded photo; "rotation" turns it upright.
func CaptureHandler(manager *service.Manager, captureService *capture.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxCaptureBytes))
		if err != nil {
			http.Error(w, "Unable to read photo", http.StatusBadRequest)
			return
		}
		img, err := imageutil.Decode(data)
		if err != nil {
			logger.Warning("Rejected capture upload: %v", err)
			http.Error(w, "Invalid photo", http.StatusBadRequest)
			return
		}

		res, err := captureService.Capture(r.Context(), capture.Request{
			Image:    img,
			Rotation: rotationParam(r),
			Lens:     manager.Lens(),
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				// Client went away; the capture finishes on its own.
				return
			}
			writeJSON(w, http.StatusInternalServerError, res, logger)
			return
		}
		writeJSON(w, http.StatusOK, res, logger)
	}
}

type statsResponse struct {
	Pipeline         service.Stats     `json:"pipeline"`
	Gallery          *model.ImageStats `json:"gallery,omitempty"`
	LastCaptureSaved bool              `json:"last_capture_saved"`
}

// StatsHandler reports pipeline counters and, when an index is configured, gallery totals.
func StatsHandler(manager *service.Manager, captureService *capture.Service, imageRepo repository.ImageRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statsResponse{
			Pipeline:         manager.Stats(),
			LastCaptureSaved: captureService.Saved(),
		}
		if imageRepo != nil {
			stats, err := imageRepo.GetStats()
			if err != nil {
				logger.Error("Error reading gallery stats: %v", err)
			} else {
				resp.Gallery = stats
			}
		}
		writeJSON(w, http.StatusOK, resp, logger)
	}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// rotationParam reads the "rotation" query parameter in degrees; missing or invalid means 0.
func rotationParam(r *http.Request) int {
	v, err := strconv.Atoi(r.URL.Query().Get("rotation"))
	if err != nil {
		return 0
	}
	return v
}
