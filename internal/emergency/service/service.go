// Package service runs the emergency call pipeline from intake through
// triage to dispatch, optionally spawning a rescue operation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"reliefops/internal/codegen"
	emergencyMetrics "reliefops/internal/emergency/metrics"
	"reliefops/internal/emergency/models"
	"reliefops/internal/geodata"
	"reliefops/internal/notify"
	rescueModels "reliefops/internal/rescue/models"
	rescueService "reliefops/internal/rescue/service"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/privacy"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/platform/tracing"
	"reliefops/pkg/platform/tx"
	"reliefops/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, call *models.Call) error
	FindByID(ctx context.Context, callID id.EmergencyCallID) (*models.Call, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Call, error)
	ApplyTransition(ctx context.Context, callID id.EmergencyCallID, t models.Transition) (*models.Call, error)
}

// Rescues creates a rescue operation inside the caller's transaction.
type Rescues interface {
	CreateWithCode(ctx context.Context, req rescueService.CreateRequest, code string) (*rescueModels.Operation, error)
}

type CodeGenerator interface {
	Generate(ctx context.Context, kind codegen.Kind, create func(ctx context.Context, code string) error) (string, error)
}

type Service struct {
	calls     Store
	rescues   Rescues
	zones     geodata.Directory
	codes     CodeGenerator
	tx        tx.Runner
	fallback  orb.Point
	publisher notify.Publisher
	hasher    *privacy.Hasher
	metrics   *emergencyMetrics.Metrics
	logger    *slog.Logger
	tracer    tracing.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *emergencyMetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithPhoneHasher sets the keyed digest used in place of caller phone
// numbers in logs and events.
func WithPhoneHasher(h *privacy.Hasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

// WithFallbackTarget sets the rescue target used when a call carries no
// caller location.
func WithFallbackTarget(p orb.Point) Option {
	return func(s *Service) {
		s.fallback = p
	}
}

func New(calls Store, rescues Rescues, zones geodata.Directory, codes CodeGenerator, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		calls:     calls,
		rescues:   rescues,
		zones:     zones,
		codes:     codes,
		tx:        runner,
		publisher: notify.NopPublisher{},
		logger:    slog.Default(),
		tracer:    tracing.New("reliefops/emergency"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateRequest struct {
	CallerPhone    string
	CallerName     string
	CallNumber     models.CallNumber
	CallerLocation *orb.Point
	FloodZoneID    *id.FloodZoneID
	Description    string
	Urgency        models.Urgency
}

// Create logs a received call under a fresh code.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *models.Call, err error) {
	ctx, span := s.tracer.Start(ctx, "emergency.Create")
	defer func() { tracing.End(span, err) }()

	call, err := models.NewCall(id.EmergencyCallID(uuid.New()), models.NewCallParams{
		CallerPhone:    req.CallerPhone,
		CallerName:     req.CallerName,
		CallNumber:     req.CallNumber,
		CallerLocation: req.CallerLocation,
		FloodZoneID:    req.FloodZoneID,
		Description:    req.Description,
		Urgency:        req.Urgency,
		ReceivedBy:     requestcontext.UserID(ctx),
	}, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if call.FloodZoneID != nil {
		if err := s.checkZone(ctx, *call.FloodZoneID); err != nil {
			return nil, err
		}
	}

	var created *models.Call
	_, err = s.codes.Generate(ctx, codegen.KindEmergencyCall, func(ctx context.Context, code string) error {
		return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			c := *call
			c.Code = code
			if err := s.calls.Create(txCtx, &c); err != nil {
				return err
			}
			notify.PublishAfterCommit(txCtx, s.publisher,
				notify.NewEvent(txCtx, notify.CallReceived, c.ID, c.Code, string(c.Status)).
					With("urgency", string(c.Urgency)).
					With("call_number", string(c.CallNumber)).
					With("caller_phone_digest", s.hasher.Digest(c.CallerPhone)))
			created = &c
			return nil
		})
	})
	if err != nil {
		return nil, translate(err, "failed to log emergency call")
	}

	s.metrics.IncrementReceived(string(created.CallNumber), string(created.Urgency))
	s.logger.InfoContext(ctx, "emergency call received",
		"call_id", created.ID,
		"code", created.Code,
		"urgency", created.Urgency,
		"caller_phone_digest", s.hasher.Digest(created.CallerPhone),
		"request_id", requestcontext.RequestID(ctx),
	)
	return created, nil
}

func (s *Service) checkZone(ctx context.Context, zoneID id.FloodZoneID) error {
	if _, err := s.zones.FindByID(ctx, zoneID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "flood zone not found").
				WithDetail("flood_zone_id", zoneID.String())
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up flood zone")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, callID id.EmergencyCallID) (*models.Call, error) {
	call, err := s.calls.FindByID(ctx, callID)
	if err != nil {
		return nil, translate(err, "failed to load emergency call")
	}
	return call, nil
}

// List returns calls newest first.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Call, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown call status filter")
	}
	if filter.Urgency != "" && !filter.Urgency.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown urgency filter")
	}
	calls, err := s.calls.List(ctx, filter)
	if err != nil {
		return nil, translate(err, "failed to list emergency calls")
	}
	return calls, nil
}

func (s *Service) Triage(ctx context.Context, callID id.EmergencyCallID, urgency models.Urgency, notes *string) (*models.Call, error) {
	return s.apply(ctx, callID, "triage", notify.CallTriaged, func(c *models.Call, now time.Time) (models.Transition, error) {
		return c.Triage(urgency, notes, now)
	})
}

func (s *Service) Resolve(ctx context.Context, callID id.EmergencyCallID, notes *string) (*models.Call, error) {
	return s.apply(ctx, callID, "resolve", notify.CallResolved, func(c *models.Call, now time.Time) (models.Transition, error) {
		return c.Resolve(notes, now)
	})
}

// MarkDuplicate closes the call in favour of original, which must exist.
func (s *Service) MarkDuplicate(ctx context.Context, callID, original id.EmergencyCallID) (*models.Call, error) {
	if original != callID {
		if _, err := s.calls.FindByID(ctx, original); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "original emergency call not found").
					WithDetail("duplicate_of_id", original.String())
			}
			return nil, translate(err, "failed to load original emergency call")
		}
	}
	return s.apply(ctx, callID, "mark_duplicate", notify.CallDuplicate, func(c *models.Call, now time.Time) (models.Transition, error) {
		return c.MarkDuplicate(original, now)
	})
}

func (s *Service) MarkFalseAlarm(ctx context.Context, callID id.EmergencyCallID, notes *string) (*models.Call, error) {
	return s.apply(ctx, callID, "mark_false_alarm", notify.CallFalseAlarm, func(c *models.Call, now time.Time) (models.Transition, error) {
		return c.MarkFalseAlarm(notes, now)
	})
}

func (s *Service) apply(ctx context.Context, callID id.EmergencyCallID, action string, evType notify.EventType, build func(*models.Call, time.Time) (models.Transition, error)) (_ *models.Call, err error) {
	ctx, span := s.tracer.Start(ctx, "emergency."+action, tracing.String("call_id", callID.String()))
	defer func() { tracing.End(span, err) }()

	var updated *models.Call
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.calls.FindByID(txCtx, callID)
		if err != nil {
			return err
		}
		t, err := build(current, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		updated, err = s.update(txCtx, callID, t, action)
		if err != nil {
			return err
		}
		s.publishTransition(txCtx, evType, current.Status, updated)
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to "+action+" emergency call")
	}
	s.metrics.IncrementTransition(string(updated.Status))
	return updated, nil
}

func (s *Service) update(ctx context.Context, callID id.EmergencyCallID, t models.Transition, action string) (*models.Call, error) {
	updated, err := s.calls.ApplyTransition(ctx, callID, t)
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil, dErrors.New(dErrors.CodePreconditionFailed, "emergency call status changed concurrently").
			WithDetail("action", action)
	}
	return updated, err
}

func (s *Service) publishTransition(ctx context.Context, evType notify.EventType, previous models.Status, call *models.Call) {
	ev := notify.NewEvent(ctx, evType, call.ID, call.Code, string(call.Status)).
		With("previous_status", string(previous)).
		With("urgency", string(call.Urgency))
	if call.RescueOperationID != nil {
		ev = ev.With("rescue_operation_id", call.RescueOperationID.String())
	}
	if call.DuplicateOfID != nil {
		ev = ev.With("duplicate_of_id", call.DuplicateOfID.String())
	}
	notify.PublishAfterCommit(ctx, s.publisher, ev)
}

// DispatchRequest hands a call to an organization. With CreateRescue a
// search-and-rescue operation is opened for the call's flood zone.
type DispatchRequest struct {
	OrgID                  id.OrganizationID
	CreateRescue           bool
	EstimatedPersonsAtRisk *int
}

type DispatchResult struct {
	Call   *models.Call
	Rescue *rescueModels.Operation
}

// Dispatch moves a received or triaged call to dispatched. When a rescue is
// spawned, the rescue insert and the call update commit in one transaction
// inside the rescue code retry loop, so a failed call update leaves no
// rescue operation behind.
func (s *Service) Dispatch(ctx context.Context, callID id.EmergencyCallID, req DispatchRequest) (_ *DispatchResult, err error) {
	ctx, span := s.tracer.Start(ctx, "emergency.Dispatch",
		tracing.String("call_id", callID.String()),
		tracing.String("org_id", req.OrgID.String()))
	defer func() { tracing.End(span, err) }()

	current, err := s.calls.FindByID(ctx, callID)
	if err != nil {
		return nil, translate(err, "failed to load emergency call")
	}
	spawn := req.CreateRescue && current.FloodZoneID != nil
	if req.CreateRescue && !spawn {
		s.logger.WarnContext(ctx, "dispatching call without rescue operation: call has no flood zone",
			"call_id", callID,
			"code", current.Code,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	var result DispatchResult
	dispatch := func(ctx context.Context, code string) error {
		return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			call, err := s.calls.FindByID(txCtx, callID)
			if err != nil {
				return err
			}
			t, err := call.Dispatch(req.OrgID, requestcontext.Now(txCtx))
			if err != nil {
				return err
			}
			result.Rescue = nil
			if spawn {
				op, err := s.rescues.CreateWithCode(txCtx, s.rescueRequest(call, req), code)
				if err != nil {
					return err
				}
				t.RescueOperationID = &op.ID
				result.Rescue = op
			}
			updated, err := s.update(txCtx, callID, t, "dispatch")
			if err != nil {
				return err
			}
			s.publishTransition(txCtx, notify.CallDispatched, call.Status, updated)
			result.Call = updated
			return nil
		})
	}

	if spawn {
		_, err = s.codes.Generate(ctx, codegen.KindRescueOperation, dispatch)
	} else {
		err = dispatch(ctx, "")
	}
	if err != nil {
		return nil, translate(err, "failed to dispatch emergency call")
	}

	s.metrics.IncrementTransition(string(result.Call.Status))
	attrs := []any{
		"call_id", callID,
		"code", result.Call.Code,
		"org_id", req.OrgID,
		"request_id", requestcontext.RequestID(ctx),
	}
	if result.Rescue != nil {
		s.metrics.IncrementRescueSpawned()
		attrs = append(attrs, "rescue_operation_id", result.Rescue.ID, "rescue_code", result.Rescue.Code)
	}
	s.logger.InfoContext(ctx, "emergency call dispatched", attrs...)
	return &result, nil
}

func (s *Service) rescueRequest(call *models.Call, req DispatchRequest) rescueService.CreateRequest {
	target := s.fallback
	if call.CallerLocation != nil {
		target = *call.CallerLocation
	}
	estimated := 1
	if req.EstimatedPersonsAtRisk != nil {
		estimated = *req.EstimatedPersonsAtRisk
	}
	callID := call.ID
	return rescueService.CreateRequest{
		FloodZoneID:            *call.FloodZoneID,
		TargetLocation:         &target,
		AssignedOrgID:          req.OrgID,
		OperationType:          rescueModels.TypeSearchAndRescue,
		Priority:               call.Urgency.RescuePriority(),
		EstimatedPersonsAtRisk: estimated,
		EmergencyCallID:        &callID,
		Notes:                  call.Description,
	}
}

func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "emergency call not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodePreconditionFailed, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
