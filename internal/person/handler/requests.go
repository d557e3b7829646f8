package handler

import (
	"strings"
	"time"

	"reliefops/internal/person/models"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// RegisterPersonRequest is the body of POST /persons.
type RegisterPersonRequest struct {
	FullName    string   `json:"full_name"`
	DateOfBirth string   `json:"date_of_birth,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Needs       []string `json:"needs,omitempty"`
	ShelterID   string   `json:"shelter_id,omitempty"`

	parsedDOB     *time.Time
	parsedGender  models.Gender
	parsedShelter *id.ShelterID
}

func (r *RegisterPersonRequest) Validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	if raw := strings.TrimSpace(r.DateOfBirth); raw != "" {
		dob, err := time.Parse(dateLayout, raw)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "date_of_birth must be YYYY-MM-DD")
		}
		r.parsedDOB = &dob
	}
	gender, err := models.ParseGender(r.Gender)
	if err != nil {
		return err
	}
	r.parsedGender = gender
	if raw := strings.TrimSpace(r.ShelterID); raw != "" {
		shelterID, err := id.ParseShelterID(raw)
		if err != nil {
			return err
		}
		r.parsedShelter = &shelterID
	}
	return nil
}

// AssignShelterRequest is the body of POST /persons/{id}/shelter.
type AssignShelterRequest struct {
	ShelterID string `json:"shelter_id"`

	parsed id.ShelterID
}

func (r *AssignShelterRequest) Validate() error {
	shelterID, err := id.ParseShelterID(r.ShelterID)
	if err != nil {
		return err
	}
	r.parsed = shelterID
	return nil
}

// DischargeRequest is the body of POST /persons/{id}/discharge.
type DischargeRequest struct {
	Status string `json:"status"`
}

func (r *DischargeRequest) Validate() error {
	if !models.Status(r.Status).IsDischargeTarget() {
		return dErrors.New(dErrors.CodeValidation, "status must be relocated or returned_home")
	}
	return nil
}

// CreateFamilyGroupRequest is the body of POST /family-groups.
type CreateFamilyGroupRequest struct {
	Name         string `json:"name"`
	HeadPersonID string `json:"head_person_id,omitempty"`

	parsedHead *id.PersonID
}

func (r *CreateFamilyGroupRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if raw := strings.TrimSpace(r.HeadPersonID); raw != "" {
		personID, err := id.ParsePersonID(raw)
		if err != nil {
			return err
		}
		r.parsedHead = &personID
	}
	return nil
}

// AddMemberRequest is the body of POST /family-groups/{id}/members.
type AddMemberRequest struct {
	PersonID string `json:"person_id"`

	parsed id.PersonID
}

func (r *AddMemberRequest) Validate() error {
	personID, err := id.ParsePersonID(r.PersonID)
	if err != nil {
		return err
	}
	r.parsed = personID
	return nil
}
