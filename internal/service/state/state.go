// Package state holds the latest detection batch and the confidence threshold.
package state

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
)

// ErrInvalidThreshold is returned for thresholds outside [0, 1].
var ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")

// ValidateThreshold checks v without clamping it.
func ValidateThreshold(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return errors.Wrapf(ErrInvalidThreshold, "got %v", v)
	}
	return nil
}

// Snapshot is an immutable view of the state. Version increases on every change.
type Snapshot struct {
	Batch     model.Batch
	Threshold float64
	Version   uint64
}

// Count is the number of detections in the snapshot.
func (s Snapshot) Count() int {
	return s.Batch.Len()
}

// State is the single owner of the latest batch. Run is its only batch writer.
type State struct {
	logger    *logger.Logger
	threshold atomic.Float64

	mu      sync.RWMutex
	current Snapshot

	subsMu sync.Mutex
	subs   map[uint64]chan Snapshot
	nextID uint64
}

// New creates a State with the given initial threshold, clamped to [0, 1].
func New(initialThreshold float64, logger *logger.Logger) *State {
	s := &State{
		logger: logger,
		subs:   make(map[uint64]chan Snapshot),
	}
	s.threshold.Store(clampThreshold(initialThreshold))
	s.current.Threshold = s.threshold.Load()
	return s
}

func clampThreshold(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Threshold returns the current confidence threshold.
func (s *State) Threshold() float64 {
	return s.threshold.Load()
}

// SetThreshold stores v clamped to [0, 1] and returns the stored value.
// Only later analyses see the new threshold; the current batch is kept.
func (s *State) SetThreshold(v float64) float64 {
	v = clampThreshold(v)
	s.threshold.Store(v)
	s.update(func(snap *Snapshot) { snap.Threshold = v })
	return v
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.current
	snap.Batch = snap.Batch.Copy()
	return snap
}

// Count returns the number of objects in the latest batch.
func (s *State) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Batch.Len()
}

// Clear drops the current batch, e.g. after switching lenses.
func (s *State) Clear() {
	s.update(func(snap *Snapshot) { snap.Batch = model.Batch{} })
}

// Run replaces the current batch with each batch received until ctx is done or batches closes.
// Each batch supersedes the previous one wholesale.
func (s *State) Run(ctx context.Context, batches <-chan model.Batch) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			batch = batch.Copy()
			s.update(func(snap *Snapshot) { snap.Batch = batch })
			s.logger.Debug("Batch %d applied: %d object(s)", batch.Seq, batch.Len())
		}
	}
}

// update applies a change and broadcasts it. subsMu is held throughout so subscribers
// observe versions in order.
func (s *State) update(apply func(*Snapshot)) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.mu.Lock()
	apply(&s.current)
	s.current.Version++
	snap := s.current
	s.mu.Unlock()

	for _, ch := range s.subs {
		offerLatest(ch, snap)
	}
}

// Subscribe returns a channel that receives the current snapshot and every later one.
// A slow subscriber only sees the newest snapshot. cancel must be called when done.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.Snapshot()
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subsMu.Unlock()
		})
	}
	return ch, cancel
}

// offerLatest puts snap in a one-slot channel, replacing an unread value.
func offerLatest(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
