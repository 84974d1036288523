package state

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
)

func batch(seq uint64, labels ...string) model.Batch {
	b := model.Batch{Seq: seq, Threshold: 0.5}
	for _, l := range labels {
		b.Detections = append(b.Detections, model.Detection{Label: l, Score: 0.9, SourceWidth: 384, SourceHeight: 384})
	}
	return b
}

func TestThreshold(t *testing.T) {
	s := New(0.5, logger.NewNop())
	test.That(t, s.Threshold(), test.ShouldEqual, 0.5)

	test.That(t, s.SetThreshold(0.8), test.ShouldEqual, 0.8)
	test.That(t, s.Threshold(), test.ShouldEqual, 0.8)
	test.That(t, s.Snapshot().Threshold, test.ShouldEqual, 0.8)

	test.That(t, s.SetThreshold(1.5), test.ShouldEqual, 1.0)
	test.That(t, s.SetThreshold(-2), test.ShouldEqual, 0.0)

	test.That(t, New(7, logger.NewNop()).Threshold(), test.ShouldEqual, 1.0)
}

func TestValidateThreshold(t *testing.T) {
	test.That(t, ValidateThreshold(0), test.ShouldBeNil)
	test.That(t, ValidateThreshold(1), test.ShouldBeNil)
	test.That(t, ValidateThreshold(0.42), test.ShouldBeNil)
	test.That(t, errors.Is(ValidateThreshold(1.01), ErrInvalidThreshold), test.ShouldBeTrue)
	test.That(t, errors.Is(ValidateThreshold(-0.01), ErrInvalidThreshold), test.ShouldBeTrue)
}

func TestRunReplacesBatchWholesale(t *testing.T) {
	s := New(0.5, logger.NewNop())
	batches := make(chan model.Batch, 2)
	batches <- batch(0, "cat", "dog", "cup")
	batches <- batch(60, "car")
	close(batches)

	s.Run(context.Background(), batches)

	snap := s.Snapshot()
	test.That(t, snap.Batch.Seq, test.ShouldEqual, uint64(60))
	test.That(t, snap.Count(), test.ShouldEqual, 1)
	test.That(t, s.Count(), test.ShouldEqual, 1)
	test.That(t, snap.Batch.Detections[0].Label, test.ShouldEqual, "car")
	test.That(t, snap.Version, test.ShouldEqual, uint64(2))
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := New(0.5, logger.NewNop())
	batches := make(chan model.Batch, 1)
	batches <- batch(0, "cat")
	close(batches)
	s.Run(context.Background(), batches)

	snap := s.Snapshot()
	snap.Batch.Detections[0].Label = "mutated"
	test.That(t, s.Snapshot().Batch.Detections[0].Label, test.ShouldEqual, "cat")
}

func TestThresholdChangeKeepsBatch(t *testing.T) {
	s := New(0.5, logger.NewNop())
	batches := make(chan model.Batch, 1)
	batches <- batch(0, "cat", "dog")
	close(batches)
	s.Run(context.Background(), batches)

	s.SetThreshold(0.95)
	snap := s.Snapshot()
	test.That(t, snap.Count(), test.ShouldEqual, 2)
	test.That(t, snap.Batch.Threshold, test.ShouldEqual, 0.5)
	test.That(t, snap.Threshold, test.ShouldEqual, 0.95)
}

func TestSubscribe(t *testing.T) {
	s := New(0.5, logger.NewNop())
	ch, cancel := s.Subscribe()

	first := <-ch
	test.That(t, first.Version, test.ShouldEqual, uint64(0))

	s.SetThreshold(0.6)
	s.SetThreshold(0.7)
	s.SetThreshold(0.9)

	// a slow subscriber only sees the newest snapshot
	latest := <-ch
	test.That(t, latest.Threshold, test.ShouldEqual, 0.9)
	test.That(t, latest.Version, test.ShouldEqual, uint64(3))
	test.That(t, len(ch), test.ShouldEqual, 0)

	cancel()
	cancel()
	_, ok := <-ch
	test.That(t, ok, test.ShouldBeFalse)

	// updates after cancel do not panic on the closed channel
	test.That(t, func() { s.SetThreshold(0.1) }, test.ShouldNotPanic)
}

func TestClear(t *testing.T) {
	s := New(0.5, logger.NewNop())
	batches := make(chan model.Batch, 1)
	batches <- batch(0, "cat")
	close(batches)
	s.Run(context.Background(), batches)

	s.Clear()
	test.That(t, s.Count(), test.ShouldEqual, 0)
	test.That(t, s.Threshold(), test.ShouldEqual, 0.5)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(0.5, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx, make(chan model.Batch))
		close(done)
	}()
	<-done
	test.That(t, s.Snapshot().Version, test.ShouldEqual, uint64(0))
}
