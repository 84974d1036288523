// Package detectiontest provides a scriptable detection.Port for tests.
package detectiontest

import (
	"context"
	"image"
	"sync"

	"github.com/ranitraj/instaLens/internal/model"
)

// Call records the arguments of one Detect invocation.
type Call struct {
	Size      model.Size
	Rotation  int
	Threshold float64
}

// Port is a detection.Port whose behavior is set by DetectFunc.
// A nil DetectFunc returns no detections.
type Port struct {
	DetectFunc func(ctx context.Context, img image.Image, rotation int, threshold float64) ([]model.Detection, error)

	mu    sync.Mutex
	calls []Call
}

// Detect records the call and delegates to DetectFunc.
func (p *Port) Detect(ctx context.Context, img image.Image, rotation int, threshold float64) ([]model.Detection, error) {
	call := Call{Rotation: rotation, Threshold: threshold}
	if img != nil {
		b := img.Bounds()
		call.Size = model.Size{Width: b.Dx(), Height: b.Dy()}
	}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()

	if p.DetectFunc == nil {
		return []model.Detection{}, nil
	}
	return p.DetectFunc(ctx, img, rotation, threshold)
}

// Calls returns a copy of the recorded calls.
func (p *Port) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// Returning builds a DetectFunc that always returns the given detections,
// filtered by threshold the way the production port does.
func Returning(detections ...model.Detection) func(context.Context, image.Image, int, float64) ([]model.Detection, error) {
	return func(_ context.Context, _ image.Image, _ int, threshold float64) ([]model.Detection, error) {
		out := make([]model.Detection, 0, len(detections))
		for _, d := range detections {
			if d.Score >= threshold {
				out = append(out, d)
			}
		}
		return out, nil
	}
}
