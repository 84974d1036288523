// Package coords converts detection boxes between the model's input space, a live
// preview surface and a captured photo.
package coords

import (
	"math"

	"github.com/ranitraj/instaLens/internal/model"
)

// PreviewScale returns the uniform cover factor max(pw/sw, ph/sh). A degenerate source
// yields 1 so callers never divide by zero.
func PreviewScale(src, preview model.Size) float64 {
	if src.Width == 0 || src.Height == 0 {
		return 1
	}
	return math.Max(
		float64(preview.Width)/float64(src.Width),
		float64(preview.Height)/float64(src.Height),
	)
}

// PreviewMap scales box from src into a preview that is filled edge to edge and clamps
// the result to the preview bounds.
func PreviewMap(box model.Rect, src, preview model.Size) model.Rect {
	if src.Width == 0 || src.Height == 0 {
		return box
	}
	s := PreviewScale(src, preview)
	pw, ph := float64(preview.Width), float64(preview.Height)
	return model.Rect{
		Left:   clamp(box.Left*s, pw),
		Top:    clamp(box.Top*s, ph),
		Right:  clamp(box.Right*s, pw),
		Bottom: clamp(box.Bottom*s, ph),
	}
}

// CaptureScale returns independent horizontal and vertical factors from src to captured.
func CaptureScale(src, captured model.Size) (float64, float64) {
	if src.Width == 0 || src.Height == 0 {
		return 1, 1
	}
	return float64(captured.Width) / float64(src.Width),
		float64(captured.Height) / float64(src.Height)
}

// CaptureMap scales box from src into a captured image. No clamping is applied.
func CaptureMap(box model.Rect, src, captured model.Size) model.Rect {
	if src.Width == 0 || src.Height == 0 {
		return box
	}
	sx, sy := CaptureScale(src, captured)
	return model.Rect{
		Left:   box.Left * sx,
		Top:    box.Top * sy,
		Right:  box.Right * sx,
		Bottom: box.Bottom * sy,
	}
}

// CaptureUnmap is the inverse of CaptureMap. A degenerate source or captured size maps
// the box unchanged.
func CaptureUnmap(box model.Rect, src, captured model.Size) model.Rect {
	if src.Width == 0 || src.Height == 0 || captured.Width == 0 || captured.Height == 0 {
		return box
	}
	sx, sy := CaptureScale(src, captured)
	return model.Rect{
		Left:   box.Left / sx,
		Top:    box.Top / sy,
		Right:  box.Right / sx,
		Bottom: box.Bottom / sy,
	}
}

func clamp(v, hi float64) float64 {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
