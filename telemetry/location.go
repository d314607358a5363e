package telemetry

import (
	"hotspot-advisor/models"

	"github.com/golang/geo/s2"
)

// cellLevel gives cells of roughly 1 km across.
const cellLevel = 13

func newLocation(lat, lng float64, city, state string) models.Location {
	loc := models.Location{
		Lat:   lat,
		Lng:   lng,
		City:  city,
		State: state,
	}
	if lat != 0 || lng != 0 {
		loc.Cell = s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(cellLevel).ToToken()
	}
	return loc
}
