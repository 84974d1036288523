// Package analyzer throttles camera frames down to the ones that are sent to the detector.
package analyzer

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/ranitraj/instaLens/internal/imageutil"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/service/detection"
)

// DefaultFramesPerAnalysis analyzes one frame out of every 60.
const DefaultFramesPerAnalysis = 60

// State is the position of the analyzer in its per-frame cycle.
type State int32

const (
	Idle State = iota
	Deciding
	Skipped
	Dispatching
	AwaitingResult
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Deciding:
		return "deciding"
	case Skipped:
		return "skipped"
	case Dispatching:
		return "dispatching"
	case AwaitingResult:
		return "awaiting_result"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ThresholdSource supplies the confidence threshold current at dispatch time.
type ThresholdSource interface {
	Threshold() float64
}

// ThresholdFunc adapts a function to ThresholdSource.
type ThresholdFunc func() float64

func (f ThresholdFunc) Threshold() float64 { return f() }

// Stats is a point-in-time view of the analyzer counters.
type Stats struct {
	Seen           uint64 `json:"seen"`
	Analyzed       uint64 `json:"analyzed"`
	Skipped        uint64 `json:"skipped"`
	BusySkipped    uint64 `json:"busy_skipped"`
	Failed         uint64 `json:"failed"`
	DroppedResults uint64 `json:"dropped_results"`
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock sets the clock used to stamp batches.
func WithClock(c clock.Clock) Option {
	return func(a *Analyzer) { a.clock = c }
}

// Analyzer decides per frame whether to run detection and publishes one batch per analyzed frame.
type Analyzer struct {
	port      detection.Port
	threshold ThresholdSource
	every     uint64
	logger    *logger.Logger
	clock     clock.Clock

	counter atomic.Uint64
	busy    atomic.Bool
	state   atomic.Int32

	seen        atomic.Uint64
	analyzed    atomic.Uint64
	skipped     atomic.Uint64
	busySkipped atomic.Uint64
	failed      atomic.Uint64
	dropped     atomic.Uint64

	resultsMu sync.Mutex
	results   chan model.Batch
	closed    bool
}

// New creates an Analyzer that analyzes every Nth frame. every <= 0 uses DefaultFramesPerAnalysis.
func New(port detection.Port, threshold ThresholdSource, every int, logger *logger.Logger, opts ...Option) *Analyzer {
	if every <= 0 {
		every = DefaultFramesPerAnalysis
	}
	a := &Analyzer{
		port:      port,
		threshold: threshold,
		every:     uint64(every),
		logger:    logger,
		clock:     clock.New(),
		results:   make(chan model.Batch, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Results delivers the newest batch. An unread batch is replaced by a newer one.
// The channel is closed when Run returns.
func (a *Analyzer) Results() <-chan model.Batch {
	return a.results
}

// State returns the current cycle state.
func (a *Analyzer) State() State {
	return State(a.state.Load())
}

// Stats returns a snapshot of the counters.
func (a *Analyzer) Stats() Stats {
	return Stats{
		Seen:           a.seen.Load(),
		Analyzed:       a.analyzed.Load(),
		Skipped:        a.skipped.Load(),
		BusySkipped:    a.busySkipped.Load(),
		Failed:         a.failed.Load(),
		DroppedResults: a.dropped.Load(),
	}
}

// Analyze runs the gate for one frame and, if due, detection. The frame is always closed
// before Analyze returns. It reports whether detection was dispatched.
func (a *Analyzer) Analyze(ctx context.Context, frame Frame) bool {
	defer frame.Close()

	// Deciding and Skipped are only recorded while no analysis owns the state.
	deciding := a.state.CompareAndSwap(int32(Idle), int32(Deciding))
	a.seen.Inc()
	index := a.counter.Inc() - 1

	if index%a.every != 0 {
		a.skipped.Inc()
		a.leaveDeciding(deciding)
		return false
	}
	if !a.busy.CompareAndSwap(false, true) {
		a.busySkipped.Inc()
		a.leaveDeciding(deciding)
		a.logger.Debug("Analysis in flight, skipping frame %d", index)
		return false
	}
	defer a.busy.Store(false)
	defer a.state.Store(int32(Idle))

	a.state.Store(int32(Dispatching))
	rotation := imageutil.NormalizeRotation(frame.Rotation())
	threshold := a.threshold.Threshold()

	img, err := frame.Image()
	if err != nil {
		a.failed.Inc()
		a.logger.Warning("Dropping frame %d: %v", index, err)
		return true
	}

	a.state.Store(int32(AwaitingResult))
	detections, err := a.detect(ctx, img, rotation, threshold)
	if err != nil {
		a.failed.Inc()
		a.logger.Warning("Detection failed for frame %d: %v", index, err)
		return true
	}

	a.analyzed.Inc()
	a.publish(model.Batch{
		Seq:        index,
		Detections: detections,
		Threshold:  threshold,
		Rotation:   rotation,
		AnalyzedAt: a.clock.Now(),
	})
	return true
}

func (a *Analyzer) leaveDeciding(deciding bool) {
	if deciding && a.state.CompareAndSwap(int32(Deciding), int32(Skipped)) {
		a.state.CompareAndSwap(int32(Skipped), int32(Idle))
	}
}

// detect calls the port, converting a panic into an error.
func (a *Analyzer) detect(ctx context.Context, img image.Image, rotation int, threshold float64) (dets []model.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("detector panicked: %v", r)
		}
	}()
	return a.port.Detect(ctx, img, rotation, threshold)
}

func (a *Analyzer) publish(batch model.Batch) {
	a.resultsMu.Lock()
	defer a.resultsMu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.results <- batch:
		return
	default:
	}
	// Replace the stale batch nobody has read yet.
	select {
	case <-a.results:
		a.dropped.Inc()
	default:
	}
	select {
	case a.results <- batch:
	default:
		a.dropped.Inc()
	}
}

// Run analyzes frames until ctx is done or frames is closed, then closes Results.
// Frames still buffered in the channel when ctx ends are released unanalyzed.
func (a *Analyzer) Run(ctx context.Context, frames <-chan Frame) {
	defer a.closeResults()
	for {
		select {
		case <-ctx.Done():
			drain(frames)
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				frame.Close()
				drain(frames)
				return
			}
			a.Analyze(ctx, frame)
		}
	}
}

func (a *Analyzer) closeResults() {
	a.resultsMu.Lock()
	defer a.resultsMu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.results)
	}
}

// drain releases whatever is immediately readable from frames.
func drain(frames <-chan Frame) {
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			frame.Close()
		default:
			return
		}
	}
}
