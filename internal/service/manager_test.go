package service

import (
	"context"
	"image"
	"testing"
	"time"

	"go.uber.org/atomic"
	"go.viam.com/test"

	"github.com/ranitraj/instaLens/internal/config"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/service/analyzer"
	"github.com/ranitraj/instaLens/internal/service/detection/detectiontest"
	"github.com/ranitraj/instaLens/internal/service/state"
)

type releases struct {
	n atomic.Int64
}

func (r *releases) frame() *analyzer.BufferFrame {
	return analyzer.NewRGBAFrame(make([]byte, 4*4*4), 4, 4, 0, func() { r.n.Inc() })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newManager(t *testing.T, port *detectiontest.Port, every, queue int) (*Manager, *state.State) {
	t.Helper()
	st := state.New(0.5, logger.NewNop())
	cfg := &config.Config{FramesPerAnalysis: every, FrameQueueSize: queue, DefaultLens: "back"}
	m := NewManager(port, st, cfg, logger.NewNop())
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m, st
}

func TestManagerStoppedReleasesFrames(t *testing.T) {
	st := state.New(0.5, logger.NewNop())
	m := NewManager(&detectiontest.Port{}, st, &config.Config{}, logger.NewNop())
	var r releases

	test.That(t, m.HandleFrame(r.frame()), test.ShouldBeFalse)
	test.That(t, r.n.Load(), test.ShouldEqual, int64(1))
	test.That(t, m.Stats().Running, test.ShouldBeFalse)
	test.That(t, m.Lens(), test.ShouldEqual, model.LensBack)
}

func TestManagerBackpressure(t *testing.T) {
	started := make(chan struct{}, 1)
	unblock := make(chan struct{})
	port := &detectiontest.Port{
		DetectFunc: func(ctx context.Context, _ image.Image, _ int, _ float64) ([]model.Detection, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-unblock
			return nil, nil
		},
	}
	m, _ := newManager(t, port, 1, 2)
	var r releases

	test.That(t, m.HandleFrame(r.frame()), test.ShouldBeTrue)
	<-started

	// The analyzer is busy: two frames fit in the queue, the third is dropped.
	test.That(t, m.HandleFrame(r.frame()), test.ShouldBeTrue)
	test.That(t, m.HandleFrame(r.frame()), test.ShouldBeTrue)
	test.That(t, m.HandleFrame(r.frame()), test.ShouldBeFalse)
	test.That(t, r.n.Load(), test.ShouldEqual, int64(1))

	stats := m.Stats()
	test.That(t, stats.Received, test.ShouldEqual, uint64(4))
	test.That(t, stats.BackpressureDrops, test.ShouldEqual, uint64(1))
	test.That(t, stats.Analyzer.Seen, test.ShouldEqual, uint64(1))

	close(unblock)
	m.Stop()
	test.That(t, r.n.Load(), test.ShouldEqual, int64(4))
}

func TestManagerToggleResetsCounter(t *testing.T) {
	port := &detectiontest.Port{DetectFunc: detectiontest.Returning(model.Detection{
		Box: model.Rect{Right: 2, Bottom: 2}, Label: "cat", Score: 0.9, SourceWidth: 4, SourceHeight: 4,
	})}
	m, st := newManager(t, port, 3, 4)
	var r releases

	m.HandleFrame(r.frame())
	waitFor(t, func() bool { return st.Count() == 1 })
	test.That(t, port.Calls(), test.ShouldHaveLength, 1)

	test.That(t, m.ToggleLens(), test.ShouldEqual, model.LensFront)
	test.That(t, st.Count(), test.ShouldEqual, 0)
	test.That(t, m.Stats().Restarts, test.ShouldEqual, uint64(1))

	// Frame index 1 on the old analyzer would be skipped; the new one starts at 0.
	m.HandleFrame(r.frame())
	waitFor(t, func() bool { return st.Count() == 1 })
	test.That(t, port.Calls(), test.ShouldHaveLength, 2)
	test.That(t, m.Lens(), test.ShouldEqual, model.LensFront)
}

func TestManagerSelectSameLens(t *testing.T) {
	m, _ := newManager(t, &detectiontest.Port{}, 1, 1)

	test.That(t, m.SelectLens(model.LensBack), test.ShouldEqual, model.LensBack)
	test.That(t, m.Stats().Restarts, test.ShouldEqual, uint64(0))
	test.That(t, m.SelectLens("sideways"), test.ShouldEqual, model.LensBack)
}

func TestManagerStopIsIdempotent(t *testing.T) {
	m, _ := newManager(t, &detectiontest.Port{}, 1, 1)
	m.Stop()
	m.Stop()

	var r releases
	test.That(t, m.HandleFrame(r.frame()), test.ShouldBeFalse)
	test.That(t, r.n.Load(), test.ShouldEqual, int64(1))
}

func TestManagerDropsFramesWhileStopping(t *testing.T) {
	started := make(chan struct{}, 1)
	unblock := make(chan struct{})
	port := &detectiontest.Port{
		DetectFunc: func(ctx context.Context, _ image.Image, _ int, _ float64) ([]model.Detection, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-unblock
			return nil, nil
		},
	}
	m, _ := newManager(t, port, 1, 2)
	var r releases

	test.That(t, m.HandleFrame(r.frame()), test.ShouldBeTrue)
	<-started

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		m.Stop()
	}()
	waitFor(t, func() bool { return !m.Stats().Running })

	// Stop is still waiting on the detector, yet a new frame is released immediately.
	handled := make(chan bool, 1)
	go func() { handled <- m.HandleFrame(r.frame()) }()
	select {
	case ok := <-handled:
		test.That(t, ok, test.ShouldBeFalse)
	case <-time.After(2 * time.Second):
		t.Fatal("HandleFrame blocked while the manager was stopping")
	}
	test.That(t, r.n.Load(), test.ShouldEqual, int64(1))

	close(unblock)
	<-stopped
	test.That(t, r.n.Load(), test.ShouldEqual, int64(2))
}
