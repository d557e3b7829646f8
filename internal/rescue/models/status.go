package models

// Status is a rescue operation's position in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusEnRoute    Status = "en_route"
	StatusOnSite     Status = "on_site"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAborted    Status = "aborted"
	StatusFailed     Status = "failed"
)

// mainSequence ranks the forward path. Exceptional exits have no rank.
var mainSequence = map[Status]int{
	StatusPending:    0,
	StatusDispatched: 1,
	StatusEnRoute:    2,
	StatusOnSite:     3,
	StatusInProgress: 4,
	StatusCompleted:  5,
}

// NonTerminalStatuses lists every state an operation can still leave.
var NonTerminalStatuses = []Status{StatusPending, StatusDispatched, StatusEnRoute, StatusOnSite, StatusInProgress}

// DeletableStatuses lists the states in which an operation may be withdrawn.
var DeletableStatuses = []Status{StatusPending, StatusAborted, StatusFailed}

func (s Status) IsValid() bool {
	if _, ok := mainSequence[s]; ok {
		return true
	}
	return s == StatusAborted || s == StatusFailed
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAborted || s == StatusFailed
}

// CanTransitionTo reports whether s -> target is legal: forward along the
// main sequence (skipping allowed), or out to aborted/failed, and never from
// a terminal state. A non-terminal operation never steps back to an earlier
// stage; corrections go through abort and a new operation.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() || !target.IsValid() {
		return false
	}
	if target == StatusAborted || target == StatusFailed {
		return true
	}
	return mainSequence[target] > mainSequence[s]
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type OperationType string

const (
	TypeEvacuation        OperationType = "evacuation"
	TypeSearchAndRescue   OperationType = "search_and_rescue"
	TypeMedicalEvacuation OperationType = "medical_evacuation"
	TypeSupplyDelivery    OperationType = "supply_delivery"
	TypeAssessment        OperationType = "assessment"
)

func (t OperationType) IsValid() bool {
	switch t {
	case TypeEvacuation, TypeSearchAndRescue, TypeMedicalEvacuation, TypeSupplyDelivery, TypeAssessment:
		return true
	}
	return false
}

type Role string

const (
	RoleLeader Role = "leader"
	RoleMember Role = "member"
)
