package models

import (
	"strings"
	"time"

	"github.com/paulmach/orb"

	"reliefops/internal/geodata"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
)

const (
	maxCallerNameLength  = 200
	maxDescriptionLength = 4000
	maxNotesLength       = 4000
	minPhoneDigits       = 6
	maxPhoneDigits       = 20
)

// Call is one emergency call as logged by a dispatcher.
type Call struct {
	ID                id.EmergencyCallID    `json:"id"`
	Code              string                `json:"code"`
	CallerPhone       string                `json:"caller_phone"`
	CallerName        string                `json:"caller_name,omitempty"`
	CallNumber        CallNumber            `json:"call_number"`
	CallerLocation    *orb.Point            `json:"-"`
	FloodZoneID       *id.FloodZoneID       `json:"flood_zone_id,omitempty"`
	Description       string                `json:"description,omitempty"`
	Urgency           Urgency               `json:"urgency"`
	Status            Status                `json:"status"`
	ReceivedByUserID  id.UserID             `json:"received_by_user_id"`
	DispatchedToOrgID *id.OrganizationID    `json:"dispatched_to_org_id,omitempty"`
	RescueOperationID *id.RescueOperationID `json:"rescue_operation_id,omitempty"`
	DuplicateOfID     *id.EmergencyCallID   `json:"duplicate_of_id,omitempty"`
	Notes             string                `json:"notes,omitempty"`
	ReceivedAt        time.Time             `json:"received_at"`
	TriagedAt         *time.Time            `json:"triaged_at,omitempty"`
	DispatchedAt      *time.Time            `json:"dispatched_at,omitempty"`
	ResolvedAt        *time.Time            `json:"resolved_at,omitempty"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

type NewCallParams struct {
	CallerPhone    string
	CallerName     string
	CallNumber     CallNumber
	CallerLocation *orb.Point
	FloodZoneID    *id.FloodZoneID
	Description    string
	Urgency        Urgency
	ReceivedBy     id.UserID
}

// NewCall validates input and builds a received call. Urgency defaults to
// medium and the phone number is normalized.
func NewCall(callID id.EmergencyCallID, p NewCallParams, now time.Time) (*Call, error) {
	phone, err := NormalizePhone(p.CallerPhone)
	if err != nil {
		return nil, err
	}
	if !p.CallNumber.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "call_number must be 112 or 115")
	}
	name := strings.TrimSpace(p.CallerName)
	if len(name) > maxCallerNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "caller_name is too long")
	}
	if len(p.Description) > maxDescriptionLength {
		return nil, dErrors.New(dErrors.CodeValidation, "description is too long")
	}
	if p.CallerLocation != nil {
		if err := geodata.ValidatePoint(*p.CallerLocation, "caller_location"); err != nil {
			return nil, err
		}
	}
	urgency := p.Urgency
	if urgency == "" {
		urgency = UrgencyMedium
	}
	if !urgency.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "urgency is invalid")
	}
	if p.ReceivedBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "receiving user is required")
	}
	return &Call{
		ID:               callID,
		CallerPhone:      phone,
		CallerName:       name,
		CallNumber:       p.CallNumber,
		CallerLocation:   p.CallerLocation,
		FloodZoneID:      p.FloodZoneID,
		Description:      strings.TrimSpace(p.Description),
		Urgency:          urgency,
		Status:           StatusReceived,
		ReceivedByUserID: p.ReceivedBy,
		ReceivedAt:       now,
		UpdatedAt:        now,
	}, nil
}

// NormalizePhone strips separators and checks for 6 to 20 digits with an
// optional leading plus sign.
//
//	NormalizePhone(" +84 (90) 123-4567 ") // "+84901234567"
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeValidation, "caller_phone is required")
	}
	var b strings.Builder
	digits := 0
	for i, r := range raw {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", dErrors.New(dErrors.CodeValidation, "caller_phone contains invalid characters")
		}
	}
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return "", dErrors.New(dErrors.CodeValidation, "caller_phone must have 6 to 20 digits")
	}
	return b.String(), nil
}

// Transition is a conditional change handed to the store. Nil fields keep
// their stored value.
type Transition struct {
	From              []Status
	To                Status
	Urgency           *Urgency
	Notes             *string
	DispatchedToOrgID *id.OrganizationID
	RescueOperationID *id.RescueOperationID
	DuplicateOfID     *id.EmergencyCallID
	TriagedAt         *time.Time
	DispatchedAt      *time.Time
	ResolvedAt        *time.Time
	UpdatedAt         time.Time
}

func (c *Call) transition(to Status, action string, notes *string, now time.Time) (Transition, error) {
	if !c.Status.CanTransitionTo(to) {
		return Transition{}, dErrors.IllegalTransition("emergency call", string(c.Status), action)
	}
	if notes != nil && len(*notes) > maxNotesLength {
		return Transition{}, dErrors.New(dErrors.CodeValidation, "notes are too long")
	}
	t := Transition{From: []Status{c.Status}, To: to, Notes: notes, UpdatedAt: now}
	switch to {
	case StatusTriaged:
		t.TriagedAt = &now
	case StatusDispatched:
		t.DispatchedAt = &now
	case StatusResolved, StatusDuplicate, StatusFalseAlarm:
		t.ResolvedAt = &now
	}
	return t, nil
}

// Triage records the assessed urgency. Only received calls can be triaged.
func (c *Call) Triage(urgency Urgency, notes *string, now time.Time) (Transition, error) {
	if !urgency.IsValid() {
		return Transition{}, dErrors.New(dErrors.CodeValidation, "urgency is invalid")
	}
	t, err := c.transition(StatusTriaged, "triage", notes, now)
	if err != nil {
		return Transition{}, err
	}
	t.Urgency = &urgency
	return t, nil
}

// Dispatch hands the call to an organization. The caller attaches the
// rescue operation id when one is spawned.
func (c *Call) Dispatch(orgID id.OrganizationID, now time.Time) (Transition, error) {
	if orgID.IsNil() {
		return Transition{}, dErrors.New(dErrors.CodeValidation, "org_id is required")
	}
	t, err := c.transition(StatusDispatched, "dispatch", nil, now)
	if err != nil {
		return Transition{}, err
	}
	t.DispatchedToOrgID = &orgID
	return t, nil
}

func (c *Call) Resolve(notes *string, now time.Time) (Transition, error) {
	return c.transition(StatusResolved, "resolve", notes, now)
}

// MarkDuplicate closes the call in favour of an earlier one.
func (c *Call) MarkDuplicate(original id.EmergencyCallID, now time.Time) (Transition, error) {
	if original.IsNil() {
		return Transition{}, dErrors.New(dErrors.CodeValidation, "duplicate_of_id is required")
	}
	if original == c.ID {
		return Transition{}, dErrors.New(dErrors.CodeValidation, "a call cannot duplicate itself")
	}
	t, err := c.transition(StatusDuplicate, "mark duplicate", nil, now)
	if err != nil {
		return Transition{}, err
	}
	t.DuplicateOfID = &original
	return t, nil
}

func (c *Call) MarkFalseAlarm(notes *string, now time.Time) (Transition, error) {
	return c.transition(StatusFalseAlarm, "mark false alarm", notes, now)
}

// ListFilter narrows List results.
type ListFilter struct {
	Status  Status
	Urgency Urgency
}
