package detection

import (
	"context"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/ranitraj/instaLens/internal/imageutil"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
)

type fakeEngine struct {
	mu      sync.Mutex
	objects []Object
	err     error
	sizes   []model.Size
	closed  bool
}

func (e *fakeEngine) Infer(img image.Image) ([]Object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := img.Bounds()
	e.sizes = append(e.sizes, model.Size{Width: b.Dx(), Height: b.Dy()})
	return e.objects, e.err
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

func obj(label string, score float64) Object {
	return Object{Box: model.Rect{Left: 10, Top: 10, Right: 50, Bottom: 60}, Label: label, Score: score}
}

func factoryFor(e Engine) EngineFactory {
	return func() (Engine, error) { return e, nil }
}

func frame(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestManagerInitFailure(t *testing.T) {
	log, logs := logger.NewObserved()
	calls := 0
	m := NewManager(func() (Engine, error) {
		calls++
		return nil, errors.New("model file not found")
	}, 0, log)

	for i := 0; i < 3; i++ {
		dets, err := m.Detect(context.Background(), frame(384, 384), 0, 0.5)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, dets, test.ShouldNotBeNil)
		test.That(t, dets, test.ShouldBeEmpty)
	}

	test.That(t, calls, test.ShouldEqual, 1)
	test.That(t, m.Ready(), test.ShouldBeFalse)
	test.That(t, m.InitError().Error(), test.ShouldContainSubstring, "model file not found")
	test.That(t, logs.FilterMessageSnippet("Could not initialize").Len(), test.ShouldEqual, 1)
}

func TestManagerNilEngineIsFailure(t *testing.T) {
	m := NewManager(func() (Engine, error) { return nil, nil }, 0, logger.NewNop())
	dets, err := m.Detect(context.Background(), frame(10, 10), 0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldBeEmpty)
	test.That(t, m.InitError(), test.ShouldNotBeNil)
}

func TestManagerFactoryPanic(t *testing.T) {
	log, logs := logger.NewObserved()
	m := NewManager(func() (Engine, error) { panic("bad model") }, 0, log)

	for i := 0; i < 2; i++ {
		dets, err := m.Detect(context.Background(), frame(10, 10), 0, 0.5)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, dets, test.ShouldBeEmpty)
	}
	test.That(t, m.Ready(), test.ShouldBeFalse)
	test.That(t, m.InitError().Error(), test.ShouldContainSubstring, "bad model")
	test.That(t, logs.FilterMessageSnippet("Could not initialize").Len(), test.ShouldEqual, 1)
}

func TestManagerFiltersByThreshold(t *testing.T) {
	engine := &fakeEngine{objects: []Object{obj("cat", 0.9), obj("dog", 0.4), obj("car", 0.5), obj("bus", 0.49)}}
	m := NewManager(factoryFor(engine), 0, logger.NewNop())

	dets, err := m.Detect(context.Background(), frame(384, 384), 0, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 2)
	test.That(t, dets[0].Label, test.ShouldEqual, "cat")
	test.That(t, dets[1].Label, test.ShouldEqual, "car")
	for _, d := range dets {
		test.That(t, d.Score, test.ShouldBeGreaterThanOrEqualTo, 0.5)
		test.That(t, d.SourceWidth, test.ShouldEqual, 384)
		test.That(t, d.SourceHeight, test.ShouldEqual, 384)
	}

	// threshold 1.0 keeps only perfect scores
	dets, err = m.Detect(context.Background(), frame(384, 384), 0, 1.0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldBeEmpty)
}

func TestManagerCapsWithoutResorting(t *testing.T) {
	var objects []Object
	for i := 0; i < 25; i++ {
		objects = append(objects, obj(strings.Repeat("x", i+1), 0.6+float64(i%3)*0.1))
	}
	m := NewManager(factoryFor(&fakeEngine{objects: objects}), 0, logger.NewNop())

	dets, err := m.Detect(context.Background(), frame(100, 100), 0, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, DefaultMaxResults)
	for i, d := range dets {
		test.That(t, d.Label, test.ShouldEqual, objects[i].Label)
	}
}

func TestManagerCapAppliesAfterFiltering(t *testing.T) {
	objects := []Object{obj("low", 0.1), obj("low", 0.1), obj("a", 0.9), obj("b", 0.9), obj("c", 0.9)}
	m := NewManager(factoryFor(&fakeEngine{objects: objects}), 2, logger.NewNop())

	dets, err := m.Detect(context.Background(), frame(100, 100), 0, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 2)
	test.That(t, dets[0].Label, test.ShouldEqual, "a")
	test.That(t, dets[1].Label, test.ShouldEqual, "b")
}

func TestManagerAppliesOrientation(t *testing.T) {
	engine := &fakeEngine{objects: []Object{{Box: model.Rect{Left: 0, Top: 0, Right: 1000, Bottom: 1000}, Label: "tall", Score: 1}}}
	m := NewManager(factoryFor(engine), 0, logger.NewNop())

	dets, err := m.Detect(context.Background(), frame(640, 480), 90, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, engine.sizes[0], test.ShouldResemble, model.Size{Width: 480, Height: 640})
	test.That(t, dets[0].Source(), test.ShouldResemble, model.Size{Width: 480, Height: 640})
	// boxes are clamped into the upright image
	test.That(t, dets[0].Box, test.ShouldResemble, model.Rect{Left: 0, Top: 0, Right: 480, Bottom: 640})

	_, err = m.Detect(context.Background(), frame(640, 480), 180, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, engine.sizes[1], test.ShouldResemble, model.Size{Width: 640, Height: 480})

	// unknown rotation is treated as upright
	_, err = m.Detect(context.Background(), frame(640, 480), 45, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, engine.sizes[2], test.ShouldResemble, model.Size{Width: 640, Height: 480})
}

func TestManagerErrors(t *testing.T) {
	engine := &fakeEngine{err: errors.New("bad tensor")}
	m := NewManager(factoryFor(engine), 0, logger.NewNop())

	_, err := m.Detect(context.Background(), frame(10, 10), 0, 0.5)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad tensor")

	_, err = m.Detect(context.Background(), image.NewRGBA(image.Rectangle{}), 0, 0.5)
	test.That(t, errors.Is(err, imageutil.ErrEmptyFrame), test.ShouldBeTrue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Detect(ctx, frame(10, 10), 0, 0.5)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestManagerClose(t *testing.T) {
	engine := &fakeEngine{}
	m := NewManager(factoryFor(engine), 0, logger.NewNop())
	test.That(t, m.Ready(), test.ShouldBeTrue)
	test.That(t, m.Close(), test.ShouldBeNil)
	test.That(t, engine.closed, test.ShouldBeTrue)

	dets, err := m.Detect(context.Background(), frame(10, 10), 0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldBeEmpty)
}

func TestLabels(t *testing.T) {
	labels, err := ReadLabels(strings.NewReader("person\nbicycle\n???\n car \n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, labels, test.ShouldHaveLength, 4)
	test.That(t, labels.Name(0), test.ShouldEqual, "person")
	test.That(t, labels.Name(2), test.ShouldEqual, "")
	test.That(t, labels.Name(3), test.ShouldEqual, "car")
	test.That(t, labels.Name(-1), test.ShouldEqual, "")
	test.That(t, labels.Name(99), test.ShouldEqual, "")

	_, err = LoadLabels("/nonexistent/labels.txt")
	test.That(t, err, test.ShouldNotBeNil)
}
