package handler

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"reliefops/internal/geodata"
	"reliefops/internal/shelter/models"
)

type ShelterResponse struct {
	ID               string            `json:"id"`
	Code             string            `json:"code"`
	Name             string            `json:"name"`
	FloodZoneID      string            `json:"flood_zone_id,omitempty"`
	Location         *geojson.Geometry `json:"location"`
	Capacity         int               `json:"capacity"`
	CurrentOccupancy int               `json:"current_occupancy"`
	Status           string            `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type ListResponse struct {
	Shelters []ShelterResponse `json:"shelters"`
}

func FromShelter(s *models.Shelter) ShelterResponse {
	resp := ShelterResponse{
		ID:               s.ID.String(),
		Code:             s.Code,
		Name:             s.Name,
		Location:         geodata.ToGeoJSON(&s.Location),
		Capacity:         s.Capacity,
		CurrentOccupancy: s.CurrentOccupancy,
		Status:           string(s.Status),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if s.FloodZoneID != nil {
		resp.FloodZoneID = s.FloodZoneID.String()
	}
	return resp
}

func FromShelters(shelters []*models.Shelter) ListResponse {
	resp := ListResponse{Shelters: make([]ShelterResponse, 0, len(shelters))}
	for _, s := range shelters {
		resp.Shelters = append(resp.Shelters, FromShelter(s))
	}
	return resp
}
