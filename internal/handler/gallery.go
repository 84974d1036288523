package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ranitraj/instaLens/internal/config"
	"github.com/ranitraj/instaLens/internal/dto"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/repository"
)

// GetPicturesHandler returns a filtered, paginated list of captures from the index.
func GetPicturesHandler(cfg *config.Config, logger *logger.Logger,
	imageRepo repository.ImageRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.ImageFilters{
			Lens:       q.Get("lens"),
			Label:      q.Get("label"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			TimeAfter:  parseTimeOfDay(q.Get("timeAfter")),
			TimeBefore: parseTimeOfDay(q.Get("timeBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		images, err := imageRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying images from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := imageRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting images: %v", err)
			totalCount = len(images)
		}

		var totalSize int64
		if stats, err := imageRepo.GetStats(); err != nil {
			logger.Error("Error getting gallery size: %v", err)
		} else {
			totalSize = stats.TotalSizeBytes
		}

		pictures := make([]dto.ImageInfo, 0, len(images))
		for _, img := range images {
			labels, err := detectionRepo.GetLabelsByImageID(img.ID)
			if err != nil {
				logger.Error("Error getting labels for image %d: %v", img.ID, err)
			}
			if labels == nil {
				labels = []string{}
			}

			pictures = append(pictures, dto.ImageInfo{
				Name:      img.Filename,
				Date:      img.Timestamp,
				TimeOfDay: img.Timestamp,
				Lens:      string(img.Lens),
				Labels:    labels,
				Size:      img.FileSize,
			})
		}

		allLabels, err := detectionRepo.GetAllLabels()
		if err != nil {
			logger.Error("Error listing labels: %v", err)
		}
		if allLabels == nil {
			allLabels = []string{}
		}

		writeJSON(w, http.StatusOK, dto.ImagesData{
			Images:      pictures,
			ImagesDir:   cfg.ImageDirectory,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
			Labels:      allLabels,
		}, logger)
	}
}

// DeletePictureHandler removes a capture from disk and from the index.
func DeletePictureHandler(cfg *config.Config, logger *logger.Logger, imageRepo repository.ImageRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		filename, ok := cleanName(r.URL.Query().Get("filename"))
		if !ok {
			http.Error(w, "Filename required", http.StatusBadRequest)
			return
		}

		filePath := filepath.Join(cfg.ImageDirectory, filename)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
			http.Error(w, "Unable to delete picture", http.StatusInternalServerError)
			return
		}

		if err := imageRepo.DeleteByFilename(filename); err != nil {
			logger.Error("Failed to delete from database: %v", err)
		}

		logger.Info("Deleted picture: %s", filename)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "filename": filename}, logger)
	}
}

// ClearPicturesHandler deletes every capture from the image directory and clears the index.
func ClearPicturesHandler(cfg *config.Config, logger *logger.Logger, imageRepo repository.ImageRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		files, err := os.ReadDir(cfg.ImageDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading pictures directory: %v", err)
			http.Error(w, "Unable to read pictures directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if !file.IsDir() && filepath.Ext(file.Name()) == ".jpg" {
				if err := os.Remove(filepath.Join(cfg.ImageDirectory, file.Name())); err != nil {
					logger.Error("Error deleting file %s: %v", file.Name(), err)
				}
			}
		}

		if err := imageRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
		}

		logger.Info("All pictures cleared from directory: %s", cfg.ImageDirectory)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ViewPictureHandler serves a single capture specified via the "image" query parameter.
func ViewPictureHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image, ok := cleanName(r.URL.Query().Get("image"))
		if !ok {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.ImageDirectory, image))
	}
}

// cleanName keeps only the base name so requests cannot leave the image directory.
func cleanName(name string) (string, bool) {
	base := filepath.Base(filepath.Clean("/" + name))
	if name == "" || base == "/" || base == "." {
		return "", false
	}
	return base, true
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseTimeOfDay parses a time-of-day string in the format "15:04" (HTML input format).
func parseTimeOfDay(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
