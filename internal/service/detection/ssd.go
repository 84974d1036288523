package detection

import "github.com/ranitraj/instaLens/internal/model"

// ssdRowLen is the width of one DetectionOutput row:
// [batch_id, class_id, confidence, x1, y1, x2, y2] with normalized coordinates.
const ssdRowLen = 7

// ParseSSD converts a flattened DetectionOutput tensor into objects in a width x height image.
// Rows keep the engine's order; rows with a non-positive confidence are padding and skipped.
func ParseSSD(data []float32, width, height int, labels Labels) []Object {
	rows := len(data) / ssdRowLen
	objects := make([]Object, 0, rows)
	w, h := float64(width), float64(height)
	for i := 0; i < rows; i++ {
		row := data[i*ssdRowLen : (i+1)*ssdRowLen]
		score := float64(row[2])
		if score <= 0 {
			continue
		}
		classID := int(row[1])
		objects = append(objects, Object{
			Box: model.Rect{
				Left:   float64(row[3]) * w,
				Top:    float64(row[4]) * h,
				Right:  float64(row[5]) * w,
				Bottom: float64(row[6]) * h,
			},
			ClassID: classID,
			Label:   labels.Name(classID),
			Score:   score,
		})
	}
	return objects
}
