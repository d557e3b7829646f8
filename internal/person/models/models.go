package models

import (
	"strings"
	"time"

	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	platformstrings "reliefops/pkg/platform/strings"
)

// Status tracks where a displaced person currently is.
type Status string

const (
	StatusRegistered   Status = "registered"
	StatusSheltered    Status = "sheltered"
	StatusRelocated    Status = "relocated"
	StatusReturnedHome Status = "returned_home"
	StatusMissing      Status = "missing"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusRegistered, StatusSheltered, StatusRelocated, StatusReturnedHome, StatusMissing:
		return true
	}
	return false
}

// IsDischargeTarget reports whether a sheltered person may leave for s.
func (s Status) IsDischargeTarget() bool {
	return s == StatusRelocated || s == StatusReturnedHome
}

type Gender string

const (
	GenderUnknown Gender = "unknown"
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderOther   Gender = "other"
)

func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GenderUnknown, nil
	case GenderUnknown, GenderFemale, GenderMale, GenderOther:
		return g, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "gender must be one of female, male, other, unknown")
}

const (
	maxNameLength  = 200
	maxNeeds       = 20
	maxPhoneLength = 32
)

// Person is a displaced person. CurrentShelterID is exclusive: a person holds
// at most one shelter slot, and only the shelter ledger changes it.
type Person struct {
	ID                 id.PersonID       `json:"id"`
	Code               string            `json:"code"`
	FullName           string            `json:"full_name"`
	DateOfBirth        *time.Time        `json:"date_of_birth,omitempty"`
	Gender             Gender            `json:"gender"`
	Phone              string            `json:"phone,omitempty"`
	Needs              []string          `json:"needs"`
	Status             Status            `json:"status"`
	CurrentShelterID   *id.ShelterID     `json:"current_shelter_id,omitempty"`
	FamilyGroupID      *id.FamilyGroupID `json:"family_group_id,omitempty"`
	RegisteredByUserID id.UserID         `json:"registered_by_user_id"`
	RegisteredAt       time.Time         `json:"registered_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewPersonParams carries validated registration input.
type NewPersonParams struct {
	FullName     string
	DateOfBirth  *time.Time
	Gender       Gender
	Phone        string
	Needs        []string
	RegisteredBy id.UserID
}

// NewPerson builds a person in the registered state.
func NewPerson(personID id.PersonID, p NewPersonParams, now time.Time) (*Person, error) {
	name := strings.TrimSpace(p.FullName)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "full_name must be 200 characters or less")
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "date_of_birth must not be in the future")
	}
	phone := strings.TrimSpace(p.Phone)
	if len(phone) > maxPhoneLength {
		return nil, dErrors.New(dErrors.CodeValidation, "phone is too long")
	}
	needs := platformstrings.DedupeAndTrim(p.Needs)
	if len(needs) > maxNeeds {
		return nil, dErrors.New(dErrors.CodeValidation, "too many needs listed")
	}
	if needs == nil {
		needs = []string{}
	}
	gender := p.Gender
	if gender == "" {
		gender = GenderUnknown
	}
	if p.RegisteredBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "registering user is required")
	}
	return &Person{
		ID:                 personID,
		FullName:           name,
		DateOfBirth:        p.DateOfBirth,
		Gender:             gender,
		Phone:              phone,
		Needs:              needs,
		Status:             StatusRegistered,
		RegisteredByUserID: p.RegisteredBy,
		RegisteredAt:       now,
		UpdatedAt:          now,
	}, nil
}

// CanDischarge checks that the person holds a shelter slot and that target
// is a place they can leave to.
func (p *Person) CanDischarge(target Status) error {
	if !target.IsDischargeTarget() {
		return dErrors.New(dErrors.CodeValidation, "discharge status must be relocated or returned_home")
	}
	if p.CurrentShelterID == nil {
		return dErrors.IllegalTransition("person", string(p.Status), "discharge")
	}
	return nil
}

// FamilyGroup ties displaced persons together. FamilySize only changes
// through atomic store increments.
type FamilyGroup struct {
	ID           id.FamilyGroupID `json:"id"`
	Code         string           `json:"code"`
	Name         string           `json:"name"`
	HeadPersonID *id.PersonID     `json:"head_person_id,omitempty"`
	FamilySize   int              `json:"family_size"`
	CreatedAt    time.Time        `json:"created_at"`
}

func NewFamilyGroup(groupID id.FamilyGroupID, name string, head *id.PersonID, now time.Time) (*FamilyGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "family group name is required")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "family group name must be 200 characters or less")
	}
	return &FamilyGroup{
		ID:           groupID,
		Name:         name,
		HeadPersonID: head,
		CreatedAt:    now,
	}, nil
}
