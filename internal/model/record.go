package model

// DetectionRecord is a detection burned into a saved capture, in capture pixel space.
type DetectionRecord struct {
	ID         int64   `json:"id"`
	ImageID    int64   `json:"image_id"`
	Label      string  `json:"label"`
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	Right      float64 `json:"right"`
	Bottom     float64 `json:"bottom"`
	Confidence float64 `json:"confidence"`
}
