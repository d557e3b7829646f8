package handler

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"reliefops/internal/emergency/models"
	"reliefops/internal/emergency/service"
	"reliefops/internal/geodata"
	rescueHandler "reliefops/internal/rescue/handler"
	"reliefops/pkg/platform/privacy"
)

// CallResponse shows the caller's phone masked to its last digits.
type CallResponse struct {
	ID                string            `json:"id"`
	Code              string            `json:"code"`
	CallerPhone       string            `json:"caller_phone"`
	CallerName        string            `json:"caller_name,omitempty"`
	CallNumber        string            `json:"call_number"`
	CallerLocation    *geojson.Geometry `json:"caller_location,omitempty"`
	FloodZoneID       string            `json:"flood_zone_id,omitempty"`
	Description       string            `json:"description,omitempty"`
	Urgency           string            `json:"urgency"`
	Status            string            `json:"status"`
	DispatchedToOrgID string            `json:"dispatched_to_org_id,omitempty"`
	RescueOperationID string            `json:"rescue_operation_id,omitempty"`
	DuplicateOfID     string            `json:"duplicate_of_id,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	ReceivedAt        time.Time         `json:"received_at"`
	TriagedAt         *time.Time        `json:"triaged_at,omitempty"`
	DispatchedAt      *time.Time        `json:"dispatched_at,omitempty"`
	ResolvedAt        *time.Time        `json:"resolved_at,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type ListResponse struct {
	Calls []CallResponse `json:"calls"`
}

type DispatchResponse struct {
	Call            CallResponse                     `json:"call"`
	RescueOperation *rescueHandler.OperationResponse `json:"rescue_operation,omitempty"`
}

func FromCall(c *models.Call) CallResponse {
	resp := CallResponse{
		ID:             c.ID.String(),
		Code:           c.Code,
		CallerPhone:    privacy.MaskPhone(c.CallerPhone),
		CallerName:     c.CallerName,
		CallNumber:     string(c.CallNumber),
		CallerLocation: geodata.ToGeoJSON(c.CallerLocation),
		Description:    c.Description,
		Urgency:        string(c.Urgency),
		Status:         string(c.Status),
		Notes:          c.Notes,
		ReceivedAt:     c.ReceivedAt,
		TriagedAt:      c.TriagedAt,
		DispatchedAt:   c.DispatchedAt,
		ResolvedAt:     c.ResolvedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.FloodZoneID != nil {
		resp.FloodZoneID = c.FloodZoneID.String()
	}
	if c.DispatchedToOrgID != nil {
		resp.DispatchedToOrgID = c.DispatchedToOrgID.String()
	}
	if c.RescueOperationID != nil {
		resp.RescueOperationID = c.RescueOperationID.String()
	}
	if c.DuplicateOfID != nil {
		resp.DuplicateOfID = c.DuplicateOfID.String()
	}
	return resp
}

func FromCalls(calls []*models.Call) ListResponse {
	out := ListResponse{Calls: make([]CallResponse, 0, len(calls))}
	for _, c := range calls {
		out.Calls = append(out.Calls, FromCall(c))
	}
	return out
}

func FromDispatch(r *service.DispatchResult) DispatchResponse {
	resp := DispatchResponse{Call: FromCall(r.Call)}
	if r.Rescue != nil {
		op := rescueHandler.FromOperation(r.Rescue)
		resp.RescueOperation = &op
	}
	return resp
}
