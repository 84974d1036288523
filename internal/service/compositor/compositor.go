// Package compositor burns detection boxes and captions into a captured photo.
package compositor

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/ranitraj/instaLens/internal/coords"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/service/overlay"
)

// Defaults match the live overlay's look at full capture resolution.
const (
	DefaultStrokeWidth = 8
	DefaultTextSize    = 20
	DefaultLabelMargin = 10
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Options controls box and caption styling. Zero values use the defaults.
type Options struct {
	StrokeWidth float64
	TextSize    float64
	LabelMargin float64
}

// Compositor draws detections over captured images. Safe for concurrent use.
type Compositor struct {
	colors *overlay.ColorMap
	opts   Options
}

// New creates a Compositor using colors for box and caption colors.
func New(colors *overlay.ColorMap, opts Options) *Compositor {
	if opts.StrokeWidth <= 0 {
		opts.StrokeWidth = DefaultStrokeWidth
	}
	if opts.TextSize <= 0 {
		opts.TextSize = DefaultTextSize
	}
	if opts.LabelMargin == 0 {
		opts.LabelMargin = DefaultLabelMargin
	}
	return &Compositor{colors: colors, opts: opts}
}

// Compose returns a new image of the target size with raw as the base layer and every
// detection drawn on top in batch order. raw is never modified. A zero target uses raw's size.
func (c *Compositor) Compose(raw image.Image, batch []model.Detection, target model.Size) *image.RGBA {
	bounds := raw.Bounds()
	if target.Empty() {
		target = model.Size{Width: bounds.Dx(), Height: bounds.Dy()}
	}

	base := raw
	if bounds.Dx() != target.Width || bounds.Dy() != target.Height {
		base = imaging.Resize(raw, target.Width, target.Height, imaging.Lanczos)
	}

	out := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	draw.Draw(out, out.Bounds(), base, base.Bounds().Min, draw.Src)

	dc := gg.NewContextForRGBA(out)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: c.opts.TextSize}))
	dc.SetLineWidth(c.opts.StrokeWidth)

	for _, d := range batch {
		box := coords.CaptureMap(d.Box, d.Source(), target)
		dc.SetColor(c.colors.ColorFor(d.Label))

		dc.DrawRectangle(box.Left, box.Top, box.Width(), box.Height())
		dc.Stroke()

		dc.DrawString(overlay.LabelText(d.Label, d.Score), box.Left, box.Top-c.opts.LabelMargin)
	}
	return out
}
