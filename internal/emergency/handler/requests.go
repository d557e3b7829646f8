package handler

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"reliefops/internal/emergency/models"
	"reliefops/internal/emergency/service"
	"reliefops/internal/geodata"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
)

// CreateCallRequest is the body of POST /emergency-calls.
type CreateCallRequest struct {
	CallerPhone    string            `json:"caller_phone"`
	CallerName     string            `json:"caller_name,omitempty"`
	CallNumber     string            `json:"call_number"`
	CallerLocation *geojson.Geometry `json:"caller_location,omitempty"`
	FloodZoneID    string            `json:"flood_zone_id,omitempty"`
	Description    string            `json:"description,omitempty"`
	Urgency        string            `json:"urgency,omitempty"`

	parsedLocation *orb.Point
	parsedZone     *id.FloodZoneID
}

func (r *CreateCallRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.CallerPhone) == "" {
		return dErrors.New(dErrors.CodeValidation, "caller_phone is required")
	}
	if r.CallerLocation != nil {
		p, err := geodata.PointFromGeoJSON(r.CallerLocation, "caller_location")
		if err != nil {
			return err
		}
		r.parsedLocation = &p
	}
	if zone := strings.TrimSpace(r.FloodZoneID); zone != "" {
		zoneID, err := id.ParseFloodZoneID(zone)
		if err != nil {
			return err
		}
		r.parsedZone = &zoneID
	}
	return nil
}

func (r *CreateCallRequest) toServiceRequest() service.CreateRequest {
	return service.CreateRequest{
		CallerPhone:    r.CallerPhone,
		CallerName:     r.CallerName,
		CallNumber:     models.CallNumber(strings.TrimSpace(r.CallNumber)),
		CallerLocation: r.parsedLocation,
		FloodZoneID:    r.parsedZone,
		Description:    r.Description,
		Urgency:        models.Urgency(r.Urgency),
	}
}

type TriageRequest struct {
	Urgency string  `json:"urgency"`
	Notes   *string `json:"notes,omitempty"`
}

func (r *TriageRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Urgency) == "" {
		return dErrors.New(dErrors.CodeValidation, "urgency is required")
	}
	return nil
}

type DispatchRequest struct {
	OrgID                  string `json:"org_id"`
	CreateRescue           bool   `json:"create_rescue"`
	EstimatedPersonsAtRisk *int   `json:"estimated_persons_at_risk,omitempty"`

	parsedOrg id.OrganizationID
}

func (r *DispatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	orgID, err := id.ParseOrganizationID(strings.TrimSpace(r.OrgID))
	if err != nil {
		return err
	}
	r.parsedOrg = orgID
	if r.EstimatedPersonsAtRisk != nil && *r.EstimatedPersonsAtRisk < 0 {
		return dErrors.New(dErrors.CodeValidation, "estimated_persons_at_risk must not be negative")
	}
	return nil
}

// NotesRequest is the body of resolve and false-alarm requests.
type NotesRequest struct {
	Notes *string `json:"notes,omitempty"`
}

func (r *NotesRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

type DuplicateRequest struct {
	DuplicateOfID string `json:"duplicate_of_id"`

	parsedOriginal id.EmergencyCallID
}

func (r *DuplicateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	original, err := id.ParseEmergencyCallID(strings.TrimSpace(r.DuplicateOfID))
	if err != nil {
		return err
	}
	r.parsedOriginal = original
	return nil
}
