package model

// ImageStats summarizes the gallery index.
type ImageStats struct {
	TotalImages    int            `json:"total_images"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerLens        map[string]int `json:"per_lens"`
	LabelCounts    map[string]int `json:"label_counts"`
}
