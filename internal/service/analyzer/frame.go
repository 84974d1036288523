package analyzer

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/ranitraj/instaLens/internal/imageutil"
)

// ErrFrameReleased is returned when a frame's pixels are read after Close.
var ErrFrameReleased = errors.New("frame already released")

// Frame is one camera frame lent to the analyzer. The analyzer calls Close exactly once
// when it is done with the frame, whether or not it analyzed it.
type Frame interface {
	// Rotation is the clockwise rotation in degrees that makes the frame upright.
	Rotation() int
	Image() (image.Image, error)
	Close()
}

// BufferFrame is a Frame over an encoded (JPEG/PNG) or raw RGBA buffer.
type BufferFrame struct {
	data     []byte
	rotation int
	width    int
	height   int
	raw      bool

	release  func()
	once     sync.Once
	released atomic.Bool
}

// NewEncodedFrame wraps a JPEG or PNG buffer. release, if non-nil, runs once on Close.
func NewEncodedFrame(data []byte, rotation int, release func()) *BufferFrame {
	return &BufferFrame{data: data, rotation: rotation, release: release}
}

// NewRGBAFrame wraps a tightly packed RGBA buffer.
func NewRGBAFrame(pix []byte, width, height, rotation int, release func()) *BufferFrame {
	return &BufferFrame{data: pix, width: width, height: height, rotation: rotation, raw: true, release: release}
}

func (f *BufferFrame) Rotation() int { return f.rotation }

// Image decodes the frame. It fails once the frame has been released.
func (f *BufferFrame) Image() (image.Image, error) {
	if f.released.Load() {
		return nil, ErrFrameReleased
	}
	if f.raw {
		return imageutil.FromRGBA(f.data, f.width, f.height)
	}
	return imageutil.Decode(f.data)
}

// Close releases the frame. Calls after the first are no-ops.
func (f *BufferFrame) Close() {
	f.once.Do(func() {
		f.released.Store(true)
		if f.release != nil {
			f.release()
		}
	})
}

// Released reports whether Close has been called.
func (f *BufferFrame) Released() bool {
	return f.released.Load()
}
