package model

import "time"

// Rect is an axis-aligned box in pixel coordinates of some image.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns the horizontal extent of the box.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical extent of the box.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Size is the pixel size of a surface: a model tensor, a preview or a captured photo.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether either dimension is zero or negative.
func (s Size) Empty() bool { return s.Width <= 0 || s.Height <= 0 }

// Detection is one recognized object in one analyzed frame. Box is expressed in the
// coordinate space of the image the detector saw, which is SourceWidth x SourceHeight.
type Detection struct {
	Box          Rect    `json:"box"`
	Label        string  `json:"label"`
	Score        float64 `json:"score"`
	SourceWidth  int     `json:"source_width"`
	SourceHeight int     `json:"source_height"`
}

// Source returns the size of the image the box coordinates are relative to.
func (d Detection) Source() Size {
	return Size{Width: d.SourceWidth, Height: d.SourceHeight}
}

// Clamped returns a copy whose box lies inside the source image and whose
// score lies in [0, 1].
func (d Detection) Clamped() Detection {
	w, h := float64(d.SourceWidth), float64(d.SourceHeight)
	d.Box.Left = clamp(d.Box.Left, 0, w)
	d.Box.Right = clamp(d.Box.Right, d.Box.Left, w)
	d.Box.Top = clamp(d.Box.Top, 0, h)
	d.Box.Bottom = clamp(d.Box.Bottom, d.Box.Top, h)
	d.Score = clamp(d.Score, 0, 1)
	return d
}

// Mirrored returns a copy whose box is flipped horizontally within the source width.
// A detection without a source width is returned unchanged.
func (d Detection) Mirrored() Detection {
	if d.SourceWidth <= 0 {
		return d
	}
	w := float64(d.SourceWidth)
	d.Box.Left, d.Box.Right = w-d.Box.Right, w-d.Box.Left
	return d
}

// Batch is the full, ordered result of analyzing one frame.
type Batch struct {
	Seq        uint64      `json:"seq"`
	Detections []Detection `json:"detections"`
	Threshold  float64     `json:"threshold"`
	Rotation   int         `json:"rotation"`
	AnalyzedAt time.Time   `json:"analyzed_at"`
}

// Len returns the number of detections in the batch.
func (b Batch) Len() int { return len(b.Detections) }

// Copy returns a batch that shares nothing mutable with b.
func (b Batch) Copy() Batch {
	out := b
	if b.Detections != nil {
		out.Detections = make([]Detection, len(b.Detections))
		copy(out.Detections, b.Detections)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
