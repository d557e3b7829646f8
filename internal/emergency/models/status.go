package models

import (
	"slices"

	rescueModels "reliefops/internal/rescue/models"
)

// Status is an emergency call's position in the pipeline.
type Status string

const (
	StatusReceived   Status = "received"
	StatusTriaged    Status = "triaged"
	StatusDispatched Status = "dispatched"
	StatusResolved   Status = "resolved"
	StatusDuplicate  Status = "duplicate"
	StatusFalseAlarm Status = "false_alarm"
)

// transitions is the complete table; anything absent is illegal.
var transitions = map[Status][]Status{
	StatusReceived:   {StatusTriaged, StatusDispatched, StatusDuplicate, StatusFalseAlarm, StatusResolved},
	StatusTriaged:    {StatusDispatched, StatusDuplicate, StatusFalseAlarm, StatusResolved},
	StatusDispatched: {StatusResolved},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusReceived, StatusTriaged, StatusDispatched, StatusResolved, StatusDuplicate, StatusFalseAlarm:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusDuplicate || s == StatusFalseAlarm
}

func (s Status) CanTransitionTo(target Status) bool {
	return slices.Contains(transitions[s], target)
}

// Urgency is the caller-reported or triaged severity.
type Urgency string

const (
	UrgencyLow             Urgency = "low"
	UrgencyMedium          Urgency = "medium"
	UrgencyHigh            Urgency = "high"
	UrgencyLifeThreatening Urgency = "life_threatening"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyLifeThreatening:
		return true
	}
	return false
}

// RescuePriority maps urgency onto the priority of a spawned rescue.
func (u Urgency) RescuePriority() rescueModels.Priority {
	switch u {
	case UrgencyLifeThreatening:
		return rescueModels.PriorityCritical
	case UrgencyHigh:
		return rescueModels.PriorityHigh
	default:
		return rescueModels.PriorityMedium
	}
}

// CallNumber is the short code the caller dialled.
type CallNumber string

const (
	CallNumberGeneral CallNumber = "112"
	CallNumberRescue  CallNumber = "115"
)

func (n CallNumber) IsValid() bool {
	return n == CallNumberGeneral || n == CallNumberRescue
}
