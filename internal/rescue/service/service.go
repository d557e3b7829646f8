// Package service runs the rescue operation state machine.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"reliefops/internal/codegen"
	"reliefops/internal/geodata"
	"reliefops/internal/notify"
	rescueMetrics "reliefops/internal/rescue/metrics"
	"reliefops/internal/rescue/models"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/platform/tracing"
	"reliefops/pkg/platform/tx"
	"reliefops/pkg/requestcontext"
)

// Store persists operations. Every write is conditional on the statuses in
// from and reports sentinel.ErrInvalidState when the row has moved on.
type Store interface {
	Create(ctx context.Context, op *models.Operation) error
	FindByID(ctx context.Context, opID id.RescueOperationID) (*models.Operation, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Operation, error)
	ApplyTransition(ctx context.Context, opID id.RescueOperationID, t models.Transition) (*models.Operation, error)
	ReplaceTeam(ctx context.Context, opID id.RescueOperationID, from []models.Status, members []models.TeamMember, now time.Time) (*models.Operation, error)
	Team(ctx context.Context, opID id.RescueOperationID) ([]models.TeamMember, error)
	SoftDelete(ctx context.Context, opID id.RescueOperationID, from []models.Status, now time.Time) error
}

type CodeGenerator interface {
	Generate(ctx context.Context, kind codegen.Kind, create func(ctx context.Context, code string) error) (string, error)
}

type Service struct {
	ops       Store
	zones     geodata.Directory
	codes     CodeGenerator
	tx        tx.Runner
	publisher notify.Publisher
	metrics   *rescueMetrics.Metrics
	logger    *slog.Logger
	tracer    tracing.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *rescueMetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func New(ops Store, zones geodata.Directory, codes CodeGenerator, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		ops:       ops,
		zones:     zones,
		codes:     codes,
		tx:        runner,
		publisher: notify.NopPublisher{},
		logger:    slog.Default(),
		tracer:    tracing.New("reliefops/rescue"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries the fields of a new operation. The requesting user
// comes from the context.
type CreateRequest struct {
	FloodZoneID            id.FloodZoneID
	TargetLocation         *orb.Point
	AssignedOrgID          id.OrganizationID
	OperationType          models.OperationType
	Priority               models.Priority
	EstimatedPersonsAtRisk int
	EmergencyCallID        *id.EmergencyCallID
	Notes                  string
}

// Create opens a pending operation under a fresh code.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *models.Operation, err error) {
	ctx, span := s.tracer.Start(ctx, "rescue.Create",
		tracing.String("flood_zone_id", req.FloodZoneID.String()))
	defer func() { tracing.End(span, err) }()

	var op *models.Operation
	_, err = s.codes.Generate(ctx, codegen.KindRescueOperation, func(ctx context.Context, code string) error {
		return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			created, err := s.CreateWithCode(txCtx, req, code)
			if err != nil {
				return err
			}
			op = created
			return nil
		})
	})
	if err != nil {
		return nil, translate(err, "failed to create rescue operation")
	}
	return op, nil
}

// CreateWithCode inserts an operation under code without opening a
// transaction of its own. Callers that must commit the operation together
// with other writes run it inside their transaction and code retry loop; a
// code collision is returned as sentinel.ErrConflict for that loop to see.
func (s *Service) CreateWithCode(ctx context.Context, req CreateRequest, code string) (*models.Operation, error) {
	now := requestcontext.Now(ctx)
	op, err := models.NewOperation(id.RescueOperationID(uuid.New()), models.NewOperationParams{
		FloodZoneID:            req.FloodZoneID,
		TargetLocation:         req.TargetLocation,
		AssignedOrgID:          req.AssignedOrgID,
		OperationType:          req.OperationType,
		Priority:               req.Priority,
		EstimatedPersonsAtRisk: req.EstimatedPersonsAtRisk,
		EmergencyCallID:        req.EmergencyCallID,
		RequestedBy:            requestcontext.UserID(ctx),
		Notes:                  req.Notes,
	}, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.zones.FindByID(ctx, req.FloodZoneID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "flood zone not found").
				WithDetail("flood_zone_id", req.FloodZoneID.String())
		}
		return nil, err
	}

	op.Code = code
	if err := s.ops.Create(ctx, op); err != nil {
		return nil, err
	}

	ev := notify.NewEvent(ctx, notify.RescueCreated, op.ID, op.Code, string(op.Status)).
		With("priority", string(op.Priority)).
		With("flood_zone_id", op.FloodZoneID.String())
	if op.EmergencyCallID != nil {
		ev = ev.With("emergency_call_id", op.EmergencyCallID.String())
	}
	notify.PublishAfterCommit(ctx, s.publisher, ev)
	s.metrics.IncrementCreated(string(op.Priority))

	s.logger.InfoContext(ctx, "rescue operation created",
		"operation_id", op.ID,
		"code", op.Code,
		"priority", op.Priority,
		"request_id", requestcontext.RequestID(ctx),
	)
	return op, nil
}

func (s *Service) Get(ctx context.Context, opID id.RescueOperationID) (*models.Operation, error) {
	op, err := s.ops.FindByID(ctx, opID)
	if err != nil {
		return nil, translate(err, "failed to load rescue operation")
	}
	return op, nil
}

func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Operation, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown rescue status filter")
	}
	ops, err := s.ops.List(ctx, filter)
	if err != nil {
		return nil, translate(err, "failed to list rescue operations")
	}
	return ops, nil
}

// Dispatch moves a pending operation to dispatched. A second dispatch fails
// and leaves dispatched_at as it was.
func (s *Service) Dispatch(ctx context.Context, opID id.RescueOperationID) (*models.Operation, error) {
	return s.apply(ctx, opID, "dispatch", notify.RescueDispatched, func(op *models.Operation, now time.Time) (models.Transition, error) {
		return op.Dispatch(now)
	})
}

// UpdateStatus moves the operation forward in the main sequence or out to
// aborted/failed. personsRescued, when given, may only grow.
func (s *Service) UpdateStatus(ctx context.Context, opID id.RescueOperationID, status models.Status, personsRescued *int, notes *string) (*models.Operation, error) {
	return s.apply(ctx, opID, "update_status", notify.RescueStatusChanged, func(op *models.Operation, now time.Time) (models.Transition, error) {
		return op.TransitionTo(status, personsRescued, notes, now)
	})
}

// Complete closes the operation with its final rescued count.
func (s *Service) Complete(ctx context.Context, opID id.RescueOperationID, personsRescued int, notes *string) (*models.Operation, error) {
	return s.apply(ctx, opID, "complete", notify.RescueStatusChanged, func(op *models.Operation, now time.Time) (models.Transition, error) {
		return op.Complete(personsRescued, notes, now)
	})
}

func (s *Service) apply(ctx context.Context, opID id.RescueOperationID, action string, evType notify.EventType, build func(*models.Operation, time.Time) (models.Transition, error)) (_ *models.Operation, err error) {
	ctx, span := s.tracer.Start(ctx, "rescue."+action, tracing.String("operation_id", opID.String()))
	defer func() { tracing.End(span, err) }()

	var (
		updated  *models.Operation
		previous models.Status
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.ops.FindByID(txCtx, opID)
		if err != nil {
			return err
		}
		t, err := build(current, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		updated, err = s.ops.ApplyTransition(txCtx, opID, t)
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodePreconditionFailed, "rescue operation status changed concurrently").
				WithDetail("action", action)
		}
		if err != nil {
			return err
		}
		previous = current.Status
		notify.PublishAfterCommit(txCtx, s.publisher,
			notify.NewEvent(txCtx, evType, updated.ID, updated.Code, string(updated.Status)).
				With("previous_status", string(previous)))
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodePreconditionFailed) || dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncrementRejected(action)
		}
		return nil, translate(err, "failed to "+action+" rescue operation")
	}

	s.metrics.IncrementTransition(string(updated.Status))
	s.logger.InfoContext(ctx, "rescue operation status changed",
		"operation_id", updated.ID,
		"code", updated.Code,
		"from", previous,
		"to", updated.Status,
		"persons_rescued", updated.PersonsRescued,
		"request_id", requestcontext.RequestID(ctx),
	)
	return updated, nil
}

// AssignTeam replaces the whole team. userIDs are de-duplicated in order;
// the leader is leaderID when given, else the first user.
func (s *Service) AssignTeam(ctx context.Context, opID id.RescueOperationID, userIDs []id.UserID, leaderID *id.UserID) (_ *models.Team, err error) {
	ctx, span := s.tracer.Start(ctx, "rescue.AssignTeam", tracing.String("operation_id", opID.String()))
	defer func() { tracing.End(span, err) }()

	var team *models.Team
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.ops.FindByID(txCtx, opID)
		if err != nil {
			return err
		}
		if err := current.CanAssignTeam(); err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		team, err = models.BuildTeam(opID, userIDs, leaderID, now)
		if err != nil {
			return err
		}
		updated, err := s.ops.ReplaceTeam(txCtx, opID, []models.Status{current.Status}, team.Members, now)
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodePreconditionFailed, "rescue operation status changed concurrently").
				WithDetail("action", "assign team")
		}
		if err != nil {
			return err
		}

		ev := notify.NewEvent(txCtx, notify.RescueTeamAssigned, updated.ID, updated.Code, string(updated.Status)).
			With("team_size", strconv.Itoa(updated.TeamSize))
		if leader, ok := team.Leader(); ok {
			ev = ev.With("leader_user_id", leader.UserID.String())
		}
		notify.PublishAfterCommit(txCtx, s.publisher, ev)
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to assign rescue team")
	}
	s.metrics.ObserveTeamSize(len(team.Members))
	return team, nil
}

// Team returns the current membership, leader included.
func (s *Service) Team(ctx context.Context, opID id.RescueOperationID) (*models.Team, error) {
	members, err := s.ops.Team(ctx, opID)
	if err != nil {
		return nil, translate(err, "failed to load rescue team")
	}
	if members == nil {
		members = []models.TeamMember{}
	}
	return &models.Team{OperationID: opID, Members: members}, nil
}

// Delete withdraws an operation that never got going or already ended badly.
func (s *Service) Delete(ctx context.Context, opID id.RescueOperationID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.ops.FindByID(txCtx, opID)
		if err != nil {
			return err
		}
		if err := current.CanDelete(); err != nil {
			return err
		}
		if err := s.ops.SoftDelete(txCtx, opID, models.DeletableStatuses, requestcontext.Now(txCtx)); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodePreconditionFailed, "rescue operation status changed concurrently").
					WithDetail("action", "delete")
			}
			return err
		}
		notify.PublishAfterCommit(txCtx, s.publisher,
			notify.NewEvent(txCtx, notify.RescueDeleted, current.ID, current.Code, string(current.Status)))
		return nil
	})
	if err != nil {
		return translate(err, "failed to delete rescue operation")
	}
	return nil
}

func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "rescue operation not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodePreconditionFailed, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
