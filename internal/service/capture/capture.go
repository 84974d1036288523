// Package capture turns a full-resolution photo and the current detections into a saved image.
package capture

import (
	"context"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/ranitraj/instaLens/internal/imageutil"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/service/compositor"
	"github.com/ranitraj/instaLens/internal/service/state"
)

// NameLayout formats capture names as IMG_yyyyMMdd_HHmmss.
const NameLayout = "20060102_150405"

// Name returns the capture name for t.
func Name(t time.Time) string {
	return "IMG_" + t.Format(NameLayout)
}

// Sink persists a finished image under name and returns the filename actually used.
type Sink interface {
	Save(ctx context.Context, img image.Image, name string, lens model.Lens, detections []model.Detection) (string, error)
}

// Snapshotter provides the detection state at capture time.
type Snapshotter interface {
	Snapshot() state.Snapshot
}

// Request is one capture: the raw photo, its rotation to upright and the lens that took it.
type Request struct {
	Image    image.Image
	Rotation int
	Lens     model.Lens
}

// Result reports the outcome of a capture.
type Result struct {
	ID         string `json:"id"`
	Saved      bool   `json:"saved"`
	Name       string `json:"name"`
	Filename   string `json:"filename,omitempty"`
	Detections int    `json:"detections"`
	Err        error  `json:"-"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to name captures.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMirrorFront mirrors front lens captures to match the preview.
func WithMirrorFront(mirror bool) Option {
	return func(s *Service) { s.mirrorFront = mirror }
}

// Service composes and saves captures off the caller's goroutine.
type Service struct {
	state      Snapshotter
	compositor *compositor.Compositor
	sink       Sink
	logger     *logger.Logger

	clock       clock.Clock
	mirrorFront bool
	saved       atomic.Bool
}

// New creates a capture Service.
func New(st Snapshotter, comp *compositor.Compositor, sink Sink, logger *logger.Logger, opts ...Option) *Service {
	s := &Service{
		state:      st,
		compositor: comp,
		sink:       sink,
		logger:     logger,
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Saved reports whether the most recent capture was persisted.
func (s *Service) Saved() bool {
	return s.saved.Load()
}

// Capture runs a capture and waits for it to finish or for ctx to end.
// The capture itself keeps running if ctx ends first.
func (s *Service) Capture(ctx context.Context, req Request) (Result, error) {
	done := s.CaptureAsync(context.Background(), req)
	select {
	case res := <-done:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// CaptureAsync snapshots the detections now and composes and saves on a new goroutine.
// The returned channel receives exactly one Result.
func (s *Service) CaptureAsync(ctx context.Context, req Request) <-chan Result {
	snap := s.state.Snapshot()
	res := Result{
		ID:         uuid.NewString(),
		Name:       Name(s.clock.Now()),
		Detections: snap.Count(),
	}
	done := make(chan Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				res.Err = errors.Errorf("capture panicked: %v", r)
				s.finish(res, done)
			}
		}()
		res.Filename, res.Err = s.process(ctx, req, snap, res.Name)
		s.finish(res, done)
	}()
	return done
}

func (s *Service) process(ctx context.Context, req Request, snap state.Snapshot, name string) (string, error) {
	if req.Image == nil || req.Image.Bounds().Empty() {
		return "", imageutil.ErrEmptyFrame
	}
	upright := imageutil.Upright(req.Image, imageutil.OrientationFor(imageutil.NormalizeRotation(req.Rotation)))
	detections := snap.Batch.Detections
	if req.Lens == model.LensFront && s.mirrorFront {
		upright = imageutil.Mirror(upright)
		detections = mirrored(detections)
	}

	composed := s.compositor.Compose(upright, detections, model.Size{})

	filename, err := s.sink.Save(ctx, composed, name, req.Lens, detections)
	if err != nil {
		return "", errors.Wrapf(err, "failed to save %s", name)
	}
	return filename, nil
}

// mirrored flips every box to match a mirrored photo. The input is not modified.
func mirrored(detections []model.Detection) []model.Detection {
	out := make([]model.Detection, len(detections))
	for i, d := range detections {
		out[i] = d.Mirrored()
	}
	return out
}

func (s *Service) finish(res Result, done chan<- Result) {
	res.Saved = res.Err == nil
	s.saved.Store(res.Saved)
	if res.Saved {
		s.logger.Info("Capture %s saved as %s with %d detection(s)", res.ID, res.Filename, res.Detections)
	} else {
		s.logger.Error("Capture %s not saved: %v", res.ID, res.Err)
	}
	done <- res
}
