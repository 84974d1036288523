package imageutil

import (
	"image"

	"github.com/disintegration/imaging"
)

// Orientation is the EXIF orientation tag describing how stored pixels relate to an upright image.
type Orientation int

const (
	TopLeft     Orientation = 1 // upright
	TopRight    Orientation = 2 // mirrored horizontally
	BottomRight Orientation = 3 // rotated 180
	BottomLeft  Orientation = 4 // mirrored vertically
	LeftTop     Orientation = 5 // transposed
	RightTop    Orientation = 6 // needs 90 clockwise
	RightBottom Orientation = 7 // transversed
	LeftBottom  Orientation = 8 // needs 90 counter-clockwise
)

var rotationOrientations = map[int]Orientation{
	0:   TopLeft,
	90:  RightTop,
	180: BottomRight,
	270: LeftBottom,
}

// NormalizeRotation maps any angle in degrees onto {0, 90, 180, 270}, rounding down
// to the nearest quarter turn.
func NormalizeRotation(degrees int) int {
	d := ((degrees % 360) + 360) % 360
	return d / 90 * 90
}

// OrientationFor returns the orientation for a clockwise rotation in degrees.
// Unknown rotations fall back to TopLeft.
func OrientationFor(rotation int) Orientation {
	if o, ok := rotationOrientations[rotation]; ok {
		return o
	}
	return TopLeft
}

// Upright applies o to img. TopLeft returns img unchanged.
func Upright(img image.Image, o Orientation) image.Image {
	switch o {
	case TopRight:
		return imaging.FlipH(img)
	case BottomRight:
		return imaging.Rotate180(img)
	case BottomLeft:
		return imaging.FlipV(img)
	case LeftTop:
		return imaging.Transpose(img)
	case RightTop:
		return imaging.Rotate270(img)
	case RightBottom:
		return imaging.Transverse(img)
	case LeftBottom:
		return imaging.Rotate90(img)
	}
	return img
}

// UprightSize is the size of img after Upright without transforming pixels.
func UprightSize(w, h int, o Orientation) (int, int) {
	switch o {
	case LeftTop, RightTop, RightBottom, LeftBottom:
		return h, w
	}
	return w, h
}

// Mirror flips img horizontally, as a front lens preview shows it.
func Mirror(img image.Image) image.Image {
	return imaging.FlipH(img)
}
