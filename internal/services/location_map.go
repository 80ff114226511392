package services

import (
	"math"

	"github.com/photoexchange/server/internal/models"
)

// AnonymousLocationMapID is shared by every photo uploaded without a location
const AnonymousLocationMapID int64 = 1

// DefaultMapCellDegrees is the edge of one location map cell
const DefaultMapCellDegrees = 1.0

// LocationMapResolver chooses the preview map for a photo's coordinates
type LocationMapResolver interface {
	Resolve(lon, lat float64) int64
}

// GridLocationMaps assigns maps from a fixed lon/lat grid. Photos in the
// same cell share a map; ids start after AnonymousLocationMapID.
type GridLocationMaps struct {
	cellDegrees float64
	columns     int64
	rows        int64
}

// NewGridLocationMaps creates a grid with square cells of cellDegrees
func NewGridLocationMaps(cellDegrees float64) *GridLocationMaps {
	if cellDegrees <= 0 || cellDegrees > 180 {
		cellDegrees = DefaultMapCellDegrees
	}
	return &GridLocationMaps{
		cellDegrees: cellDegrees,
		columns:     int64(math.Ceil(360 / cellDegrees)),
		rows:        int64(math.Ceil(180 / cellDegrees)),
	}
}

// Resolve returns the map id for the coordinates
func (g *GridLocationMaps) Resolve(lon, lat float64) int64 {
	if lon == models.AnonymousCoordinate && lat == models.AnonymousCoordinate {
		return AnonymousLocationMapID
	}

	col := clampCell(int64(math.Floor((lon+180)/g.cellDegrees)), g.columns)
	row := clampCell(int64(math.Floor((lat+90)/g.cellDegrees)), g.rows)

	return AnonymousLocationMapID + 1 + row*g.columns + col
}

func clampCell(v, n int64) int64 {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
