package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnonymousCoordinate marks a photo uploaded without a location when used
// for both Lon and Lat.
const AnonymousCoordinate = -1

// Photo represents one uploaded image plus its exchange and lifecycle state
type Photo struct {
	ID            int64     `json:"id"`
	Exchange      Exchange  `json:"exchange"`
	OwnerID       int64     `json:"ownerId"`
	LocationMapID int64     `json:"locationMapId"`
	Name          string    `json:"name"`
	IsPublic      bool      `json:"isPublic"`
	Lon           float64   `json:"lon"`
	Lat           float64   `json:"lat"`
	UploadedOn    time.Time `json:"uploadedOn"`
	DeletedOn     time.Time `json:"deletedOn"`
	IPHash        string    `json:"-"`
}

// NewPhoto creates a new Photo in the claiming state with a generated name.
// Lon and Lat must either both be AnonymousCoordinate or be valid degrees.
func NewPhoto(ownerID int64, lon, lat float64, isPublic bool, uploadedOn time.Time, ipHash string) (*Photo, error) {
	if ownerID <= 0 {
		return nil, ErrInvalidOwner
	}
	if !validCoordinates(lon, lat) {
		return nil, ErrInvalidCoordinates
	}

	return &Photo{
		Exchange:   ClaimingExchange(),
		OwnerID:    ownerID,
		Name:       NewPhotoName(),
		IsPublic:   isPublic,
		Lon:        lon,
		Lat:        lat,
		UploadedOn: uploadedOn.UTC().Truncate(time.Second),
		IPHash:     ipHash,
	}, nil
}

// NewPhotoName generates a globally unique photo name
func NewPhotoName() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// IsValidPhotoName reports whether name looks like a generated photo name
func IsValidPhotoName(name string) bool {
	if len(name) != 32 {
		return false
	}
	for _, c := range name {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// IsAnonymous returns true when the photo was uploaded without a location
func (p *Photo) IsAnonymous() bool {
	return p.Lon == AnonymousCoordinate && p.Lat == AnonymousCoordinate
}

// IsDeleted returns true once the photo has been soft deleted
func (p *Photo) IsDeleted() bool {
	return !p.DeletedOn.IsZero()
}

// HasLocationMap returns true once a preview map has been attached
func (p *Photo) HasLocationMap() bool {
	return p.LocationMapID > 0
}

// IsPairedWith reports whether p points at other and other points back at p
func (p *Photo) IsPairedWith(other *Photo) bool {
	if other == nil {
		return false
	}
	peer, ok := p.Exchange.Peer()
	if !ok || peer != other.ID {
		return false
	}
	back, ok := other.Exchange.Peer()
	return ok && back == p.ID
}

func validCoordinates(lon, lat float64) bool {
	if lon == AnonymousCoordinate && lat == AnonymousCoordinate {
		return true
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// Errors
type PhotoError struct {
	Message string
}

func (e PhotoError) Error() string {
	return e.Message
}

var (
	ErrInvalidOwner         = PhotoError{"owner id must be positive"}
	ErrInvalidCoordinates   = PhotoError{"coordinates out of range"}
	ErrInvalidPhotoName     = PhotoError{"invalid photo name"}
	ErrPhotoNotFound        = PhotoError{"photo not found"}
	ErrUserNotFound         = PhotoError{"user not found"}
	ErrConsistencyViolation = PhotoError{"unexpected number of rows changed"}
	ErrTransientStore       = PhotoError{"store operation failed"}
	ErrPathTraversal        = PhotoError{"invalid path - path traversal detected"}
	ErrFileTooLarge         = PhotoError{"file too large"}
	ErrEmptyFile            = PhotoError{"file is empty"}
)
