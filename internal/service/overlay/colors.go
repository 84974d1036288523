// Package overlay assigns label colors and renders detection boxes for a preview surface.
package overlay

import (
	"image/color"
	"math/rand"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorMap lazily assigns a random bright color to each label. A label keeps its color
// for the life of the map. Safe for concurrent use.
type ColorMap struct {
	colors sync.Map // label -> color.RGBA

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewColorMap creates a ColorMap. A zero seed picks a time-based one.
func NewColorMap(seed int64) *ColorMap {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &ColorMap{rnd: rand.New(rand.NewSource(seed))}
}

// ColorFor returns the color of label, assigning one on first use.
func (m *ColorMap) ColorFor(label string) color.RGBA {
	if c, ok := m.colors.Load(label); ok {
		return c.(color.RGBA)
	}
	actual, _ := m.colors.LoadOrStore(label, m.next())
	return actual.(color.RGBA)
}

// Len returns the number of labels with an assigned color.
func (m *ColorMap) Len() int {
	n := 0
	m.colors.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// next draws a bright, saturated color.
func (m *ColorMap) next() color.RGBA {
	m.mu.Lock()
	h, s, v := m.rnd.Float64()*360.0, 0.7+m.rnd.Float64()*0.3, 0.6+m.rnd.Float64()*0.3
	m.mu.Unlock()

	r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	cc, _ := colorful.MakeColor(c)
	return cc.Hex()
}
