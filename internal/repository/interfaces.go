package repository

import (
	"github.com/ranitraj/instaLens/internal/dto"
	"github.com/ranitraj/instaLens/internal/model"
)

// ImageRepository defines the interface for capture index operations.
type ImageRepository interface {
	// Create operations
	Insert(img *model.Image) (int64, error)
	InsertWithDetections(img *model.Image, detections []model.DetectionRecord) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Image, error)
	GetByFilename(filename string) (*model.Image, error)
	GetAll(filter *dto.ImageFilters) ([]model.Image, error)
	GetTotalCount(filter *dto.ImageFilters) (int, error)
	GetStats() (*model.ImageStats, error)
	Exists(filename string) (bool, error)

	// Delete operations
	Delete(id int64) error
	DeleteByFilename(filename string) error
	DeleteAll() error
}

// DetectionRepository defines the interface for per-capture detection operations.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.DetectionRecord) error

	// Read operations
	GetByImageID(imageID int64) ([]model.DetectionRecord, error)
	GetLabelsByImageID(imageID int64) ([]string, error)
	GetAllLabels() ([]string, error)

	// Delete operations
	DeleteByImageID(imageID int64) error
}
