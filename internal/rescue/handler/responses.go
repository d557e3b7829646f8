package handler

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"reliefops/internal/geodata"
	"reliefops/internal/rescue/models"
)

type OperationResponse struct {
	ID                     string            `json:"id"`
	Code                   string            `json:"code"`
	FloodZoneID            string            `json:"flood_zone_id"`
	TargetLocation         *geojson.Geometry `json:"target_location"`
	AssignedOrgID          string            `json:"assigned_org_id"`
	OperationType          string            `json:"operation_type"`
	Priority               string            `json:"priority"`
	Status                 string            `json:"status"`
	EstimatedPersonsAtRisk int               `json:"estimated_persons_at_risk"`
	PersonsRescued         int               `json:"persons_rescued"`
	EmergencyCallID        string            `json:"emergency_call_id,omitempty"`
	TeamSize               int               `json:"team_size"`
	Notes                  string            `json:"notes,omitempty"`
	DispatchedAt           *time.Time        `json:"dispatched_at,omitempty"`
	ArrivedAt              *time.Time        `json:"arrived_at,omitempty"`
	CompletedAt            *time.Time        `json:"completed_at,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

type ListResponse struct {
	Operations []OperationResponse `json:"operations"`
}

type TeamMemberResponse struct {
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	AssignedAt time.Time `json:"assigned_at"`
}

type TeamResponse struct {
	OperationID string               `json:"operation_id"`
	LeaderID    string               `json:"leader_id,omitempty"`
	Members     []TeamMemberResponse `json:"members"`
}

func FromOperation(op *models.Operation) OperationResponse {
	resp := OperationResponse{
		ID:                     op.ID.String(),
		Code:                   op.Code,
		FloodZoneID:            op.FloodZoneID.String(),
		TargetLocation:         geodata.ToGeoJSON(&op.TargetLocation),
		AssignedOrgID:          op.AssignedOrgID.String(),
		OperationType:          string(op.OperationType),
		Priority:               string(op.Priority),
		Status:                 string(op.Status),
		EstimatedPersonsAtRisk: op.EstimatedPersonsAtRisk,
		PersonsRescued:         op.PersonsRescued,
		TeamSize:               op.TeamSize,
		Notes:                  op.Notes,
		DispatchedAt:           op.DispatchedAt,
		ArrivedAt:              op.ArrivedAt,
		CompletedAt:            op.CompletedAt,
		CreatedAt:              op.CreatedAt,
		UpdatedAt:              op.UpdatedAt,
	}
	if op.EmergencyCallID != nil {
		resp.EmergencyCallID = op.EmergencyCallID.String()
	}
	return resp
}

func FromOperations(ops []*models.Operation) ListResponse {
	out := ListResponse{Operations: make([]OperationResponse, 0, len(ops))}
	for _, op := range ops {
		out.Operations = append(out.Operations, FromOperation(op))
	}
	return out
}

func FromTeam(team *models.Team) TeamResponse {
	resp := TeamResponse{
		OperationID: team.OperationID.String(),
		Members:     make([]TeamMemberResponse, 0, len(team.Members)),
	}
	if leader, ok := team.Leader(); ok {
		resp.LeaderID = leader.UserID.String()
	}
	for _, m := range team.Members {
		resp.Members = append(resp.Members, TeamMemberResponse{
			UserID:     m.UserID.String(),
			Role:       string(m.Role),
			AssignedAt: m.AssignedAt,
		})
	}
	return resp
}
