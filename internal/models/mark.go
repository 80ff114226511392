package models

import "time"

// MarkKind selects the favourite or report relation
type MarkKind string

const (
	MarkFavourite MarkKind = "favourite"
	MarkReport    MarkKind = "report"
)

// Mark is one (photo, user) membership row. Its existence means the user
// marked the photo; at most one exists per pair and kind.
type Mark struct {
	PhotoID   int64     `json:"photoId"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// GalleryEntry indexes a public photo for the gallery
type GalleryEntry struct {
	PhotoID    int64     `json:"photoId"`
	UploadedOn time.Time `json:"uploadedOn"`
}
