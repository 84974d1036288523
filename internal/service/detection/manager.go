package detection

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/ranitraj/instaLens/internal/imageutil"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
)

// DefaultMaxResults caps the number of detections returned per frame.
const DefaultMaxResults = 10

// Manager is the production Port. The engine is loaded lazily on the first Detect call.
// If loading fails the Manager stays usable and reports no detections.
type Manager struct {
	factory    EngineFactory
	maxResults int
	logger     *logger.Logger

	once    sync.Once
	engine  Engine
	initErr error

	mu sync.Mutex // engines are not safe for concurrent inference
}

// NewManager creates a Manager. maxResults <= 0 uses DefaultMaxResults.
func NewManager(factory EngineFactory, maxResults int, logger *logger.Logger) *Manager {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Manager{
		factory:    factory,
		maxResults: maxResults,
		logger:     logger,
	}
}

// initializeEngine runs the factory. Failure, including a panic, is logged once and remembered.
func (m *Manager) initializeEngine() {
	engine, err := m.loadEngine()
	if err == nil && engine == nil {
		err = errors.New("engine factory returned no engine")
	}
	if err != nil {
		m.initErr = err
		m.logger.Warning("Could not initialize detection engine, detections disabled: %v", err)
		return
	}
	m.engine = engine
	m.logger.Info("Detection engine initialized successfully")
}

func (m *Manager) loadEngine() (engine Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			engine, err = nil, errors.Errorf("engine factory panicked: %v", r)
		}
	}()
	return m.factory()
}

// Ready reports whether the engine loaded. It triggers loading if it has not happened yet.
func (m *Manager) Ready() bool {
	m.once.Do(m.initializeEngine)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine != nil
}

// InitError returns the engine load failure, if any.
func (m *Manager) InitError() error {
	m.once.Do(m.initializeEngine)
	return m.initErr
}

// Detect implements Port.
func (m *Manager) Detect(ctx context.Context, img image.Image, rotation int, threshold float64) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.once.Do(m.initializeEngine)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return []model.Detection{}, nil
	}
	if img == nil || img.Bounds().Empty() {
		return nil, imageutil.ErrEmptyFrame
	}

	upright := imageutil.Upright(img, imageutil.OrientationFor(rotation))
	width, height := imageutil.SizeOf(upright)

	objects, err := m.engine.Infer(upright)
	if err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	return m.filter(objects, threshold, width, height), nil
}

// filter keeps objects scoring at least threshold, in engine order, up to maxResults.
func (m *Manager) filter(objects []Object, threshold float64, width, height int) []model.Detection {
	detections := make([]model.Detection, 0, minInt(len(objects), m.maxResults))
	for _, o := range objects {
		if math.IsNaN(o.Score) || o.Score < threshold {
			continue
		}
		d := model.Detection{
			Box:          o.Box,
			Label:        o.Label,
			Score:        o.Score,
			SourceWidth:  width,
			SourceHeight: height,
		}
		detections = append(detections, d.Clamped())
		if len(detections) == m.maxResults {
			break
		}
	}
	return detections
}

// Close releases the engine if one was loaded.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return nil
	}
	err := m.engine.Close()
	m.engine = nil
	return err
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
