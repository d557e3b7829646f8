package handler

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"reliefops/internal/geodata"
	"reliefops/internal/rescue/models"
	"reliefops/internal/rescue/service"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
)

// CreateOperationRequest is the body of POST /rescue-operations.
type CreateOperationRequest struct {
	FloodZoneID            string            `json:"flood_zone_id"`
	TargetLocation         *geojson.Geometry `json:"target_location"`
	AssignedOrgID          string            `json:"assigned_org_id"`
	OperationType          string            `json:"operation_type"`
	Priority               string            `json:"priority,omitempty"`
	EstimatedPersonsAtRisk int               `json:"estimated_persons_at_risk"`
	EmergencyCallID        string            `json:"emergency_call_id,omitempty"`
	Notes                  string            `json:"notes,omitempty"`

	parsedZone   id.FloodZoneID
	parsedTarget orb.Point
	parsedOrg    id.OrganizationID
	parsedCall   *id.EmergencyCallID
}

func (r *CreateOperationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	zoneID, err := id.ParseFloodZoneID(strings.TrimSpace(r.FloodZoneID))
	if err != nil {
		return err
	}
	r.parsedZone = zoneID

	target, err := geodata.PointFromGeoJSON(r.TargetLocation, "target_location")
	if err != nil {
		return err
	}
	r.parsedTarget = target

	orgID, err := id.ParseOrganizationID(strings.TrimSpace(r.AssignedOrgID))
	if err != nil {
		return err
	}
	r.parsedOrg = orgID

	if call := strings.TrimSpace(r.EmergencyCallID); call != "" {
		callID, err := id.ParseEmergencyCallID(call)
		if err != nil {
			return err
		}
		r.parsedCall = &callID
	}
	return nil
}

func (r *CreateOperationRequest) toServiceRequest() service.CreateRequest {
	target := r.parsedTarget
	return service.CreateRequest{
		FloodZoneID:            r.parsedZone,
		TargetLocation:         &target,
		AssignedOrgID:          r.parsedOrg,
		OperationType:          models.OperationType(r.OperationType),
		Priority:               models.Priority(r.Priority),
		EstimatedPersonsAtRisk: r.EstimatedPersonsAtRisk,
		EmergencyCallID:        r.parsedCall,
		Notes:                  r.Notes,
	}
}

// UpdateStatusRequest is the body of POST /rescue-operations/{id}/status.
type UpdateStatusRequest struct {
	Status         string  `json:"status"`
	PersonsRescued *int    `json:"persons_rescued,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Status) == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}

// CompleteRequest is the body of POST /rescue-operations/{id}/complete.
type CompleteRequest struct {
	PersonsRescued *int    `json:"persons_rescued"`
	Notes          *string `json:"notes,omitempty"`
}

func (r *CompleteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.PersonsRescued == nil {
		return dErrors.New(dErrors.CodeValidation, "persons_rescued is required")
	}
	return nil
}

// AssignTeamRequest is the body of PUT /rescue-operations/{id}/team.
type AssignTeamRequest struct {
	UserIDs  []string `json:"user_ids"`
	LeaderID string   `json:"leader_id,omitempty"`

	parsedUsers  []id.UserID
	parsedLeader *id.UserID
}

func (r *AssignTeamRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.parsedUsers = make([]id.UserID, 0, len(r.UserIDs))
	for _, raw := range r.UserIDs {
		userID, err := id.ParseUserID(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		r.parsedUsers = append(r.parsedUsers, userID)
	}
	if leader := strings.TrimSpace(r.LeaderID); leader != "" {
		leaderID, err := id.ParseUserID(leader)
		if err != nil {
			return err
		}
		r.parsedLeader = &leaderID
	}
	return nil
}
