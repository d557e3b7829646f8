package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"reliefops/internal/geodata"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
)

// Status is the shelter's lifecycle and capacity state.
type Status string

const (
	StatusPreparing   Status = "preparing"
	StatusOpen        Status = "open"
	StatusFull        Status = "full"
	StatusOvercrowded Status = "overcrowded"
	StatusClosed      Status = "closed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPreparing, StatusOpen, StatusFull, StatusOvercrowded, StatusClosed:
		return true
	}
	return false
}

// IsOperating reports whether occupancy changes drive the status.
func (s Status) IsOperating() bool {
	return s == StatusOpen || s == StatusFull || s == StatusOvercrowded
}

// OperatingStatuses are the states in which the shelter is admitting people.
var OperatingStatuses = []Status{StatusOpen, StatusFull, StatusOvercrowded}

// CapacityStatus derives the operating status from occupancy. The ledger has
// no hard ceiling: going past capacity is recorded, not refused.
func CapacityStatus(occupancy, capacity int) Status {
	switch {
	case occupancy < capacity:
		return StatusOpen
	case occupancy == capacity:
		return StatusFull
	default:
		return StatusOvercrowded
	}
}

// Shelter is a physical site housing displaced persons.
//
// Invariants:
//   - Capacity > 0 and CurrentOccupancy >= 0
//   - While operating, Status always equals CapacityStatus(CurrentOccupancy, Capacity)
//   - Preparing and closed shelters keep their status when occupancy changes
//   - Code is immutable after creation
type Shelter struct {
	ID               id.ShelterID    `json:"id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	FloodZoneID      *id.FloodZoneID `json:"flood_zone_id,omitempty"`
	Location         orb.Point       `json:"-"`
	Capacity         int             `json:"capacity"`
	CurrentOccupancy int             `json:"current_occupancy"`
	Status           Status          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        *time.Time      `json:"deleted_at,omitempty"`
}

// NewShelter validates and builds a shelter in the preparing state.
func NewShelter(shelterID id.ShelterID, name string, zone *id.FloodZoneID, location orb.Point, capacity int, now time.Time) (*Shelter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "shelter name is required")
	}
	if len(name) > 200 {
		return nil, dErrors.New(dErrors.CodeValidation, "shelter name must be 200 characters or less")
	}
	if capacity <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "capacity must be greater than zero")
	}
	if err := geodata.ValidatePoint(location, "location"); err != nil {
		return nil, err
	}
	return &Shelter{
		ID:          shelterID,
		Name:        name,
		FloodZoneID: zone,
		Location:    location,
		Capacity:    capacity,
		Status:      StatusPreparing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsAcceptingPeople reports whether a person can be assigned here. Preparing
// shelters accept early arrivals; closed ones do not.
func (s *Shelter) IsAcceptingPeople() bool {
	return s.Status != StatusClosed
}

// CanOpen allows preparing -> open and closed -> open.
func (s *Shelter) CanOpen() error {
	if s.Status != StatusPreparing && s.Status != StatusClosed {
		return dErrors.IllegalTransition("shelter", string(s.Status), "open")
	}
	return nil
}

// CanClose allows any operating state -> closed.
func (s *Shelter) CanClose() error {
	if !s.Status.IsOperating() {
		return dErrors.IllegalTransition("shelter", string(s.Status), "close")
	}
	return nil
}

// CanDelete requires the shelter to be empty.
func (s *Shelter) CanDelete() error {
	if s.CurrentOccupancy > 0 {
		return dErrors.New(dErrors.CodePreconditionFailed, "shelter still houses people").
			WithDetail("current_occupancy", strconv.Itoa(s.CurrentOccupancy))
	}
	return nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Status      Status
	FloodZoneID *id.FloodZoneID
}

// MoveResult is the outcome of MoveOccupant.
type MoveResult struct {
	Origin      *Shelter `json:"origin,omitempty"`
	Destination *Shelter `json:"destination"`
	// Moved is false when the person already occupied the destination.
	Moved bool `json:"moved"`
}
