// Package detection defines the object detection port and its production implementation.
package detection

import (
	"context"
	"image"

	"github.com/ranitraj/instaLens/internal/model"
)

// Port detects objects in a single frame.
//
// rotation is the clockwise rotation in degrees needed to make img upright and is one of
// 0, 90, 180 or 270. Returned detections all have a score >= threshold, are in ranking
// order and are expressed in the coordinate space of the upright image.
type Port interface {
	Detect(ctx context.Context, img image.Image, rotation int, threshold float64) ([]model.Detection, error)
}

// Object is a raw engine result before filtering. Box is in pixels of the image the
// engine was given, relative to its top-left corner.
type Object struct {
	Box     model.Rect
	ClassID int
	Label   string
	Score   float64
}

// Engine runs inference on an upright image.
type Engine interface {
	Infer(img image.Image) ([]Object, error)
	Close() error
}

// EngineFactory loads an Engine. It is called at most once per Manager.
type EngineFactory func() (Engine, error)
