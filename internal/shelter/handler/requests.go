package handler

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"reliefops/internal/geodata"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
)

// CreateShelterRequest is the body of POST /shelters.
type CreateShelterRequest struct {
	Name        string            `json:"name"`
	FloodZoneID string            `json:"flood_zone_id,omitempty"`
	Location    *geojson.Geometry `json:"location"`
	Capacity    int               `json:"capacity"`

	parsedZone     *id.FloodZoneID
	parsedLocation orb.Point
}

func (r *CreateShelterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Capacity <= 0 {
		return dErrors.New(dErrors.CodeValidation, "capacity must be greater than zero")
	}
	if zone := strings.TrimSpace(r.FloodZoneID); zone != "" {
		zoneID, err := id.ParseFloodZoneID(zone)
		if err != nil {
			return err
		}
		r.parsedZone = &zoneID
	}
	location, err := geodata.PointFromGeoJSON(r.Location, "location")
	if err != nil {
		return err
	}
	r.parsedLocation = location
	return nil
}
