// Package notify carries best-effort operational notifications (a shelter
// filling up, a rescue team dispatched) from the core to dashboards and
// field radios. Delivery is never guaranteed and failures never reach the
// caller of a core operation.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reliefops/pkg/platform/tx"
	"reliefops/pkg/requestcontext"
)

// EventType names what happened.
type EventType string

const (
	ShelterCreated       EventType = "shelter.created"
	ShelterStatusChanged EventType = "shelter.status_changed"
	ShelterDeleted       EventType = "shelter.deleted"
	OccupantMoved        EventType = "shelter.occupant_moved"

	PersonRegistered   EventType = "person.registered"
	PersonDischarged   EventType = "person.discharged"
	FamilyGroupCreated EventType = "family_group.created"
	FamilyMemberAdded  EventType = "family_group.member_added"

	RescueCreated       EventType = "rescue.created"
	RescueDispatched    EventType = "rescue.dispatched"
	RescueStatusChanged EventType = "rescue.status_changed"
	RescueTeamAssigned  EventType = "rescue.team_assigned"
	RescueDeleted       EventType = "rescue.deleted"

	CallReceived   EventType = "emergency_call.received"
	CallTriaged    EventType = "emergency_call.triaged"
	CallDispatched EventType = "emergency_call.dispatched"
	CallResolved   EventType = "emergency_call.resolved"
	CallDuplicate  EventType = "emergency_call.duplicate"
	CallFalseAlarm EventType = "emergency_call.false_alarm"
)

// Event is the wire shape published to the notification topic.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	EntityID   string            `json:"entity_id"`
	Code       string            `json:"code,omitempty"`
	Status     string            `json:"status,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewEvent stamps an event with the acting user, request id and request time
// carried by ctx.
func NewEvent(ctx context.Context, typ EventType, entityID fmt.Stringer, code, status string) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       typ,
		EntityID:   entityID.String(),
		Code:       code,
		Status:     status,
		RequestID:  requestcontext.RequestID(ctx),
		OccurredAt: requestcontext.Now(ctx),
	}
	if actor := requestcontext.UserID(ctx); !actor.IsNil() {
		ev.ActorID = actor.String()
	}
	return ev
}

// With returns a copy of ev with an extra attribute.
func (ev Event) With(key, value string) Event {
	attrs := make(map[string]string, len(ev.Attributes)+1)
	for k, v := range ev.Attributes {
		attrs[k] = v
	}
	attrs[key] = value
	ev.Attributes = attrs
	return ev
}

// Publisher accepts events. Implementations must not block the caller on
// network I/O and must not return delivery failures.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublishAfterCommit hands events to p once the transaction carried by ctx
// commits, or immediately when there is none.
func PublishAfterCommit(ctx context.Context, p Publisher, events ...Event) {
	if p == nil || len(events) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	tx.AfterCommit(ctx, func() {
		for _, ev := range events {
			p.Publish(detached, ev)
		}
	})
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
