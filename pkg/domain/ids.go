package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "reliefops/pkg/domain-errors"
)

// Typed identifiers keep a shelter id from being passed where a person id is
// expected. All of them wrap a UUID.
type (
	UserID            uuid.UUID
	OrganizationID    uuid.UUID
	ShelterID         uuid.UUID
	PersonID          uuid.UUID
	FamilyGroupID     uuid.UUID
	FloodZoneID       uuid.UUID
	RescueOperationID uuid.UUID
	EmergencyCallID   uuid.UUID
)

func (id UserID) String() string            { return uuid.UUID(id).String() }
func (id OrganizationID) String() string    { return uuid.UUID(id).String() }
func (id ShelterID) String() string         { return uuid.UUID(id).String() }
func (id PersonID) String() string          { return uuid.UUID(id).String() }
func (id FamilyGroupID) String() string     { return uuid.UUID(id).String() }
func (id FloodZoneID) String() string       { return uuid.UUID(id).String() }
func (id RescueOperationID) String() string { return uuid.UUID(id).String() }
func (id EmergencyCallID) String() string   { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id OrganizationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ShelterID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id PersonID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id FamilyGroupID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id FloodZoneID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id RescueOperationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EmergencyCallID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)            { return uuid.UUID(id).MarshalText() }
func (id OrganizationID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id ShelterID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id PersonID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id FamilyGroupID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id FloodZoneID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id RescueOperationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id EmergencyCallID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *OrganizationID) UnmarshalText(b []byte) error {
	return unmarshalID((*uuid.UUID)(id), b)
}
func (id *ShelterID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *PersonID) UnmarshalText(b []byte) error  { return unmarshalID((*uuid.UUID)(id), b) }
func (id *FamilyGroupID) UnmarshalText(b []byte) error {
	return unmarshalID((*uuid.UUID)(id), b)
}
func (id *FloodZoneID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *RescueOperationID) UnmarshalText(b []byte) error {
	return unmarshalID((*uuid.UUID)(id), b)
}
func (id *EmergencyCallID) UnmarshalText(b []byte) error {
	return unmarshalID((*uuid.UUID)(id), b)
}

func unmarshalID(dst *uuid.UUID, b []byte) error {
	parsed, err := parseUUID(string(b), "id")
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID(s, "organization_id")
	return OrganizationID(u), err
}

func ParseShelterID(s string) (ShelterID, error) {
	u, err := parseUUID(s, "shelter_id")
	return ShelterID(u), err
}

func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID(s, "person_id")
	return PersonID(u), err
}

func ParseFamilyGroupID(s string) (FamilyGroupID, error) {
	u, err := parseUUID(s, "family_group_id")
	return FamilyGroupID(u), err
}

func ParseFloodZoneID(s string) (FloodZoneID, error) {
	u, err := parseUUID(s, "flood_zone_id")
	return FloodZoneID(u), err
}

func ParseRescueOperationID(s string) (RescueOperationID, error) {
	u, err := parseUUID(s, "rescue_operation_id")
	return RescueOperationID(u), err
}

func ParseEmergencyCallID(s string) (EmergencyCallID, error) {
	u, err := parseUUID(s, "emergency_call_id")
	return EmergencyCallID(u), err
}

// maxIDLength bounds input before it reaches uuid.Parse. The longest accepted
// form is the urn-prefixed one (45 chars).
const maxIDLength = 45

// parseUUID enforces the invariant that ids are valid, non-nil UUIDs.
func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > maxIDLength || !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must be a valid UUID")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be the nil UUID")
	}
	return u, nil
}
