package model

import "time"

// Lens identifies which camera produced a frame or a capture.
type Lens string

const (
	LensBack  Lens = "back"
	LensFront Lens = "front"
)

// Toggle returns the other lens.
func (l Lens) Toggle() Lens {
	if l == LensFront {
		return LensBack
	}
	return LensFront
}

// Image represents a saved capture record.
type Image struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Lens      Lens      `json:"lens"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}
