package overlay

import (
	"fmt"
	"math"

	"github.com/ranitraj/instaLens/internal/coords"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/service/state"
)

// LabelText is the caption drawn next to a box, e.g. "cat 87%".
func LabelText(label string, score float64) string {
	return fmt.Sprintf("%s %d%%", label, int(math.Round(score*100)))
}

// Box is one detection mapped onto a preview surface.
type Box struct {
	Rect  model.Rect `json:"rect"`
	Label string     `json:"label"`
	Score float64    `json:"score"`
	Text  string     `json:"text"`
	Color string     `json:"color"`
}

// Overlay is everything a viewer needs to draw the current detections.
type Overlay struct {
	Seq       uint64  `json:"seq"`
	Threshold float64 `json:"threshold"`
	Count     int     `json:"count"`
	Boxes     []Box   `json:"boxes"`
}

// Renderer maps detection snapshots onto preview surfaces.
type Renderer struct {
	colors *ColorMap
}

// NewRenderer creates a Renderer sharing colors with other consumers of the map.
func NewRenderer(colors *ColorMap) *Renderer {
	return &Renderer{colors: colors}
}

// Render maps snap's detections into a preview of the given size, in batch order.
// An empty preview yields no boxes but still reports the count.
func (r *Renderer) Render(snap state.Snapshot, preview model.Size) Overlay {
	out := Overlay{
		Seq:       snap.Batch.Seq,
		Threshold: snap.Threshold,
		Count:     snap.Count(),
		Boxes:     []Box{},
	}
	if preview.Empty() {
		return out
	}
	for _, d := range snap.Batch.Detections {
		out.Boxes = append(out.Boxes, Box{
			Rect:  coords.PreviewMap(d.Box, d.Source(), preview),
			Label: d.Label,
			Score: d.Score,
			Text:  LabelText(d.Label, d.Score),
			Color: Hex(r.colors.ColorFor(d.Label)),
		})
	}
	return out
}
