// ImagesData is a paginated response payload for the capture gallery.
package dto

type ImagesData struct {
	Images      []ImageInfo `json:"images"`
	ImagesDir   string      `json:"imagesDir"`
	Size        int64       `json:"size"`
	Length      int         `json:"length"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	Limit       int         `json:"pageSize"`
	Labels      []string    `json:"labels"`
}
