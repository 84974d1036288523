// ImageFilters describe user-provided filters to narrow the gallery list.
package dto

import "time"

type ImageFilters struct {
	Lens       string
	Label      string
	DateAfter  time.Time
	DateBefore time.Time
	TimeAfter  time.Time
	TimeBefore time.Time
	Limit      int
	Offset     int
}
