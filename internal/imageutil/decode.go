package imageutil

import (
	"bytes"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrEmptyFrame is returned for frames with no pixels.
var ErrEmptyFrame = errors.New("empty frame")

// Decode reads a JPEG or PNG frame. EXIF orientation is ignored; rotation travels with the frame.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode frame")
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}
	return img, nil
}

// EncodeJPEG writes img as a JPEG at the given quality.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	return errors.Wrap(imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)), "failed to encode jpeg")
}

// FromRGBA wraps a tightly packed RGBA buffer of the given size without copying.
func FromRGBA(pix []byte, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyFrame
	}
	if len(pix) < width*height*4 {
		return nil, errors.Errorf("rgba buffer too short: %d bytes for %dx%d", len(pix), width, height)
	}
	return &image.RGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}, nil
}

// SizeOf returns the pixel dimensions of img.
func SizeOf(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
