package service

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/ranitraj/instaLens/internal/config"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/service/analyzer"
	"github.com/ranitraj/instaLens/internal/service/detection"
	"github.com/ranitraj/instaLens/internal/service/state"
)

// DefaultFrameQueueSize is the analyzer queue capacity when the config does not set one.
const DefaultFrameQueueSize = 4

// Stats is what the manager reports on /api/stats.
type Stats struct {
	Lens              model.Lens     `json:"lens"`
	Running           bool           `json:"running"`
	Received          uint64         `json:"received"`
	BackpressureDrops uint64         `json:"backpressure_drops"`
	Restarts          uint64         `json:"restarts"`
	Threshold         float64        `json:"threshold"`
	Objects           int            `json:"objects"`
	Analyzer          analyzer.Stats `json:"analyzer"`
}

// Manager owns the live pipeline for the active lens: frame queue, analyzer and the
// hand-off of batches into the detection state.
type Manager struct {
	port   detection.Port
	state  *state.State
	logger *logger.Logger

	every     int
	queueSize int
	opts      []analyzer.Option

	// ctl serializes Start, Stop and lens switches. mu guards the fields below and is never
	// held while waiting for the pipeline to drain.
	ctl      sync.Mutex
	mu       sync.RWMutex
	parent   context.Context
	cancel   context.CancelFunc
	frames   chan analyzer.Frame
	analyzer *analyzer.Analyzer
	lens     model.Lens
	wg       sync.WaitGroup

	received     atomic.Uint64
	backpressure atomic.Uint64
	restarts     atomic.Uint64
}

// NewManager creates a stopped Manager. Call Start to begin analyzing.
func NewManager(port detection.Port, st *state.State, cfg *config.Config, logger *logger.Logger, opts ...analyzer.Option) *Manager {
	queueSize := cfg.FrameQueueSize
	if queueSize <= 0 {
		queueSize = DefaultFrameQueueSize
	}
	lens := model.Lens(cfg.DefaultLens)
	if lens != model.LensFront {
		lens = model.LensBack
	}
	return &Manager{
		port:      port,
		state:     st,
		logger:    logger,
		every:     cfg.FramesPerAnalysis,
		queueSize: queueSize,
		opts:      opts,
		lens:      lens,
	}
}

// Start launches the analyzer for the current lens. Everything stops when ctx ends or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	m.parent = ctx
	m.startLocked()
	m.logger.Info("🎬 Manager started - analyzing every %d frame(s) on %s lens", m.every, m.lens)
}

// Stop shuts the analyzer down and releases any queued frames.
func (m *Manager) Stop() {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	if !m.stop() {
		return
	}
	m.logger.Info("🛑 Manager stopped")
}

// HandleFrame queues a frame for the analyzer without blocking. When the queue is full or
// the manager is stopped the frame is released right away.
func (m *Manager) HandleFrame(frame analyzer.Frame) bool {
	m.received.Inc()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.frames == nil {
		frame.Close()
		m.backpressure.Inc()
		return false
	}

	select {
	case m.frames <- frame:
		return true
	default:
		frame.Close()
		if m.backpressure.Inc()%100 == 1 {
			m.logger.Warning("⚠️  Frame queue full - dropped %d frame(s) so far", m.backpressure.Load())
		}
		return false
	}
}

// Lens returns the active lens.
func (m *Manager) Lens() model.Lens {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lens
}

// SelectLens switches to lens. A running pipeline is restarted with a fresh frame counter
// and the previous lens's detections are cleared.
func (m *Manager) SelectLens(lens model.Lens) model.Lens {
	if lens != model.LensFront {
		lens = model.LensBack
	}

	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.mu.Lock()
	if lens == m.lens {
		m.mu.Unlock()
		return lens
	}
	m.lens = lens
	m.mu.Unlock()

	running := m.stop()
	m.state.Clear()
	if running {
		m.mu.Lock()
		m.startLocked()
		m.mu.Unlock()
		m.restarts.Inc()
	}
	m.logger.Info("📷 Switched to %s lens", lens)
	return lens
}

// ToggleLens switches between front and back and returns the new lens.
func (m *Manager) ToggleLens() model.Lens {
	return m.SelectLens(m.Lens().Toggle())
}

// Stats returns the manager and analyzer counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Lens:              m.lens,
		Running:           m.cancel != nil,
		Received:          m.received.Load(),
		BackpressureDrops: m.backpressure.Load(),
		Restarts:          m.restarts.Load(),
		Threshold:         m.state.Threshold(),
		Objects:           m.state.Count(),
	}
	if m.analyzer != nil {
		stats.Analyzer = m.analyzer.Stats()
	}
	return stats
}

// startLocked wires a new frame queue, analyzer and state hand-off. m.mu must be held.
func (m *Manager) startLocked() {
	ctx, cancel := context.WithCancel(m.parent)
	m.cancel = cancel
	m.frames = make(chan analyzer.Frame, m.queueSize)
	m.analyzer = analyzer.New(m.port, m.state, m.every, m.logger, m.opts...)

	frames, a := m.frames, m.analyzer
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		a.Run(ctx, frames)
	}()
	go func() {
		defer m.wg.Done()
		m.state.Run(ctx, a.Results())
	}()
}

// stop detaches and closes the frame queue under m.mu, then waits for the pipeline with
// m.mu released so HandleFrame keeps dropping frames instead of blocking. m.ctl must be held.
// It reports whether a pipeline was running.
func (m *Manager) stop() bool {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return false
	}
	m.cancel()
	close(m.frames)
	m.cancel = nil
	m.frames = nil
	m.mu.Unlock()

	m.wg.Wait()
	return true
}
