package handler

import (
	"time"

	"reliefops/internal/person/models"
	"reliefops/pkg/platform/privacy"
)

// PersonResponse masks the phone number; full contact details stay with
// registration desks.
type PersonResponse struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	FullName         string    `json:"full_name"`
	DateOfBirth      string    `json:"date_of_birth,omitempty"`
	Gender           string    `json:"gender"`
	Phone            string    `json:"phone,omitempty"`
	Needs            []string  `json:"needs"`
	Status           string    `json:"status"`
	CurrentShelterID string    `json:"current_shelter_id,omitempty"`
	FamilyGroupID    string    `json:"family_group_id,omitempty"`
	RegisteredAt     time.Time `json:"registered_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func FromPerson(p *models.Person) PersonResponse {
	resp := PersonResponse{
		ID:           p.ID.String(),
		Code:         p.Code,
		FullName:     p.FullName,
		Gender:       string(p.Gender),
		Phone:        privacy.MaskPhone(p.Phone),
		Needs:        p.Needs,
		Status:       string(p.Status),
		RegisteredAt: p.RegisteredAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.DateOfBirth != nil {
		resp.DateOfBirth = p.DateOfBirth.Format(dateLayout)
	}
	if p.CurrentShelterID != nil {
		resp.CurrentShelterID = p.CurrentShelterID.String()
	}
	if p.FamilyGroupID != nil {
		resp.FamilyGroupID = p.FamilyGroupID.String()
	}
	return resp
}

type FamilyGroupResponse struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	HeadPersonID string    `json:"head_person_id,omitempty"`
	FamilySize   int       `json:"family_size"`
	CreatedAt    time.Time `json:"created_at"`
}

func FromFamilyGroup(g *models.FamilyGroup) FamilyGroupResponse {
	resp := FamilyGroupResponse{
		ID:         g.ID.String(),
		Code:       g.Code,
		Name:       g.Name,
		FamilySize: g.FamilySize,
		CreatedAt:  g.CreatedAt,
	}
	if g.HeadPersonID != nil {
		resp.HeadPersonID = g.HeadPersonID.String()
	}
	return resp
}
