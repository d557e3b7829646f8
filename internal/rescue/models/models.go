package models

import (
	"slices"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"reliefops/internal/geodata"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	platformstrings "reliefops/pkg/platform/strings"
)

const maxNotesLength = 4000

// Operation is a rescue mission.
//
// Invariants:
//   - EmergencyCallID is set at creation and never changes
//   - PersonsRescued never decreases
//   - TeamSize equals the number of rescue_team_members rows
//   - Terminal operations accept no further transitions or team changes
type Operation struct {
	ID                     id.RescueOperationID `json:"id"`
	Code                   string               `json:"code"`
	FloodZoneID            id.FloodZoneID       `json:"flood_zone_id"`
	TargetLocation         orb.Point            `json:"-"`
	AssignedOrgID          id.OrganizationID    `json:"assigned_org_id"`
	OperationType          OperationType        `json:"operation_type"`
	Priority               Priority             `json:"priority"`
	Status                 Status               `json:"status"`
	EstimatedPersonsAtRisk int                  `json:"estimated_persons_at_risk"`
	PersonsRescued         int                  `json:"persons_rescued"`
	EmergencyCallID        *id.EmergencyCallID  `json:"emergency_call_id,omitempty"`
	RequestedByUserID      id.UserID            `json:"requested_by_user_id"`
	TeamSize               int                  `json:"team_size"`
	Notes                  string               `json:"notes,omitempty"`
	DispatchedAt           *time.Time           `json:"dispatched_at,omitempty"`
	ArrivedAt              *time.Time           `json:"arrived_at,omitempty"`
	CompletedAt            *time.Time           `json:"completed_at,omitempty"`
	CreatedAt              time.Time            `json:"created_at"`
	UpdatedAt              time.Time            `json:"updated_at"`
	DeletedAt              *time.Time           `json:"deleted_at,omitempty"`
}

// NewOperationParams carries creation input.
type NewOperationParams struct {
	FloodZoneID            id.FloodZoneID
	TargetLocation         *orb.Point
	AssignedOrgID          id.OrganizationID
	OperationType          OperationType
	Priority               Priority
	EstimatedPersonsAtRisk int
	EmergencyCallID        *id.EmergencyCallID
	RequestedBy            id.UserID
	Notes                  string
}

// NewOperation validates input and builds a pending operation. Priority
// defaults to high.
func NewOperation(opID id.RescueOperationID, p NewOperationParams, now time.Time) (*Operation, error) {
	if p.FloodZoneID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "flood_zone_id is required")
	}
	if p.TargetLocation == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "target_location is required")
	}
	if err := geodata.ValidatePoint(*p.TargetLocation, "target_location"); err != nil {
		return nil, err
	}
	if p.AssignedOrgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "assigned_org_id is required")
	}
	if !p.OperationType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "operation_type is invalid")
	}
	priority := p.Priority
	if priority == "" {
		priority = PriorityHigh
	}
	if !priority.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "priority is invalid")
	}
	if p.EstimatedPersonsAtRisk < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "estimated_persons_at_risk must not be negative")
	}
	if len(p.Notes) > maxNotesLength {
		return nil, dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	if p.RequestedBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "requesting user is required")
	}
	return &Operation{
		ID:                     opID,
		FloodZoneID:            p.FloodZoneID,
		TargetLocation:         *p.TargetLocation,
		AssignedOrgID:          p.AssignedOrgID,
		OperationType:          p.OperationType,
		Priority:               priority,
		Status:                 StatusPending,
		EstimatedPersonsAtRisk: p.EstimatedPersonsAtRisk,
		EmergencyCallID:        p.EmergencyCallID,
		RequestedByUserID:      p.RequestedBy,
		Notes:                  p.Notes,
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

// Transition is a conditional status change handed to the store. The store
// applies it only while the operation is still in one of From.
type Transition struct {
	From           []Status
	To             Status
	PersonsRescued *int
	Notes          *string
	DispatchedAt   *time.Time
	ArrivedAt      *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

// newTransition stamps the timestamp the target status implies.
func newTransition(from, to Status, rescued *int, notes *string, now time.Time) Transition {
	t := Transition{From: []Status{from}, To: to, PersonsRescued: rescued, Notes: notes, UpdatedAt: now}
	switch to {
	case StatusDispatched:
		t.DispatchedAt = &now
	case StatusOnSite:
		t.ArrivedAt = &now
	case StatusCompleted, StatusAborted, StatusFailed:
		t.CompletedAt = &now
	}
	return t
}

// Dispatch builds pending -> dispatched.
func (o *Operation) Dispatch(now time.Time) (Transition, error) {
	if o.Status != StatusPending {
		return Transition{}, dErrors.IllegalTransition("rescue operation", string(o.Status), "dispatch")
	}
	return newTransition(StatusPending, StatusDispatched, nil, nil, now), nil
}

// TransitionTo builds a status change per the transition table.
func (o *Operation) TransitionTo(target Status, rescued *int, notes *string, now time.Time) (Transition, error) {
	if !target.IsValid() {
		return Transition{}, dErrors.New(dErrors.CodeValidation, "unknown rescue status "+strconv.Quote(string(target)))
	}
	if !o.Status.CanTransitionTo(target) {
		return Transition{}, dErrors.IllegalTransition("rescue operation", string(o.Status), "move to "+string(target))
	}
	if err := o.checkRescued(rescued); err != nil {
		return Transition{}, err
	}
	if err := checkNotes(notes); err != nil {
		return Transition{}, err
	}
	return newTransition(o.Status, target, rescued, notes, now), nil
}

// Complete builds a transition to completed. Completing twice is a conflict
// rather than a no-op.
func (o *Operation) Complete(rescued int, notes *string, now time.Time) (Transition, error) {
	switch o.Status {
	case StatusCompleted:
		return Transition{}, dErrors.New(dErrors.CodeConflict, "rescue operation is already completed").
			WithDetail("current_status", string(o.Status))
	case StatusAborted, StatusFailed:
		return Transition{}, dErrors.IllegalTransition("rescue operation", string(o.Status), "complete")
	}
	if err := o.checkRescued(&rescued); err != nil {
		return Transition{}, err
	}
	if err := checkNotes(notes); err != nil {
		return Transition{}, err
	}
	return newTransition(o.Status, StatusCompleted, &rescued, notes, now), nil
}

func (o *Operation) checkRescued(rescued *int) error {
	if rescued == nil {
		return nil
	}
	if *rescued < 0 {
		return dErrors.New(dErrors.CodeValidation, "persons_rescued must not be negative")
	}
	if *rescued < o.PersonsRescued {
		return dErrors.New(dErrors.CodeValidation, "persons_rescued cannot decrease").
			WithDetail("current_persons_rescued", strconv.Itoa(o.PersonsRescued))
	}
	return nil
}

func checkNotes(notes *string) error {
	if notes != nil && len(*notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	return nil
}

// CanAssignTeam rejects team changes on finished operations.
func (o *Operation) CanAssignTeam() error {
	if o.Status.IsTerminal() {
		return dErrors.IllegalTransition("rescue operation", string(o.Status), "assign team")
	}
	return nil
}

// CanDelete allows withdrawal only before dispatch or after an abort/failure.
func (o *Operation) CanDelete() error {
	switch o.Status {
	case StatusPending, StatusAborted, StatusFailed:
		return nil
	}
	return dErrors.IllegalTransition("rescue operation", string(o.Status), "delete")
}

// TeamMember is one user on an operation's team.
type TeamMember struct {
	OperationID id.RescueOperationID `json:"operation_id"`
	UserID      id.UserID            `json:"user_id"`
	Role        Role                 `json:"role"`
	AssignedAt  time.Time            `json:"assigned_at"`
}

// Team is an operation's full membership.
type Team struct {
	OperationID id.RescueOperationID `json:"operation_id"`
	Members     []TeamMember         `json:"members"`
}

// Leader returns the leading member, if any.
func (t *Team) Leader() (TeamMember, bool) {
	for _, m := range t.Members {
		if m.Role == RoleLeader {
			return m, true
		}
	}
	return TeamMember{}, false
}

// BuildTeam de-duplicates userIDs keeping their order and picks the leader:
// leaderID when given (it must be one of the users), else the first user.
// An empty list yields an empty team with no leader.
func BuildTeam(opID id.RescueOperationID, userIDs []id.UserID, leaderID *id.UserID, now time.Time) (*Team, error) {
	unique := platformstrings.Dedupe(userIDs)
	team := &Team{OperationID: opID, Members: make([]TeamMember, 0, len(unique))}
	for _, u := range unique {
		if u.IsNil() {
			return nil, dErrors.New(dErrors.CodeValidation, "team user ids must not be empty")
		}
	}
	if len(unique) == 0 {
		if leaderID != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "leader must be a member of the team")
		}
		return team, nil
	}

	leader := unique[0]
	if leaderID != nil {
		if !slices.Contains(unique, *leaderID) {
			return nil, dErrors.New(dErrors.CodeValidation, "leader must be a member of the team")
		}
		leader = *leaderID
	}

	for _, u := range unique {
		role := RoleMember
		if u == leader {
			role = RoleLeader
		}
		team.Members = append(team.Members, TeamMember{OperationID: opID, UserID: u, Role: role, AssignedAt: now})
	}
	return team, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Status      Status
	FloodZoneID *id.FloodZoneID
}
