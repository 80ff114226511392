package models

import "time"

// UploadResult is returned after uploading a photo
type UploadResult struct {
	Photo     PhotoResponse  `json:"photo"`
	Exchanged *PhotoResponse `json:"exchanged,omitempty"`
	Outcome   string         `json:"outcome"`
}

// ToggleResponse is returned by the favourite and report endpoints
type ToggleResponse struct {
	Status string `json:"status"`
	Count  *int   `json:"count,omitempty"`
}

// PhotoResponse is a single photo in API responses
type PhotoResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Exchange      Exchange  `json:"exchange"`
	LocationMapID int64     `json:"locationMapId,omitempty"`
	IsPublic      bool      `json:"isPublic"`
	Lon           float64   `json:"lon"`
	Lat           float64   `json:"lat"`
	UploadedOn    time.Time `json:"uploadedOn"`
}

// GalleryResponse is returned when listing the public gallery
type GalleryResponse struct {
	Photos     []PhotoResponse `json:"photos"`
	TotalCount int             `json:"totalCount"`
	Skip       int             `json:"skip"`
	Take       int             `json:"take"`
}

// LifecycleRunResult is returned after a manual lifecycle run
type LifecycleRunResult struct {
	SoftDeleted int `json:"softDeleted"`
	HardDeleted int `json:"hardDeleted"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// PhotoToResponse converts a Photo to PhotoResponse
func PhotoToResponse(p *Photo) PhotoResponse {
	return PhotoResponse{
		ID:            p.ID,
		Name:          p.Name,
		Exchange:      p.Exchange,
		LocationMapID: p.LocationMapID,
		IsPublic:      p.IsPublic,
		Lon:           p.Lon,
		Lat:           p.Lat,
		UploadedOn:    p.UploadedOn,
	}
}
