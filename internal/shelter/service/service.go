// Package service implements the shelter ledger: capacity accounting and
// the exclusive assignment of displaced persons to shelters.
package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"reliefops/internal/codegen"
	"reliefops/internal/notify"
	shelterMetrics "reliefops/internal/shelter/metrics"
	"reliefops/internal/shelter/models"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/platform/tracing"
	"reliefops/pkg/platform/tx"
	"reliefops/pkg/requestcontext"
)

// Store persists shelters. Occupancy changes must be single atomic
// expressions evaluated by the store.
type Store interface {
	Create(ctx context.Context, shelter *models.Shelter) error
	FindByID(ctx context.Context, shelterID id.ShelterID) (*models.Shelter, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Shelter, error)
	// IncrementOccupancy and DecrementOccupancy also return the status the
	// row held before the change.
	IncrementOccupancy(ctx context.Context, shelterID id.ShelterID, now time.Time) (*models.Shelter, models.Status, error)
	DecrementOccupancy(ctx context.Context, shelterID id.ShelterID, now time.Time) (*models.Shelter, models.Status, error)
	UpdateStatus(ctx context.Context, shelterID id.ShelterID, from []models.Status, to models.Status, now time.Time) (*models.Shelter, error)
	SoftDelete(ctx context.Context, shelterID id.ShelterID, now time.Time) error
}

// Occupants records which shelter a person is in. The person store
// implements it; the ledger only needs this one write.
type Occupants interface {
	PlaceInShelter(ctx context.Context, personID id.PersonID, shelterID id.ShelterID, now time.Time) error
}

type CodeGenerator interface {
	Generate(ctx context.Context, kind codegen.Kind, create func(ctx context.Context, code string) error) (string, error)
}

// Service is the shelter ledger.
type Service struct {
	shelters  Store
	occupants Occupants
	codes     CodeGenerator
	tx        tx.Runner
	publisher notify.Publisher
	metrics   *shelterMetrics.Metrics
	logger    *slog.Logger
	tracer    tracing.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *shelterMetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func New(shelters Store, occupants Occupants, codes CodeGenerator, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		shelters:  shelters,
		occupants: occupants,
		codes:     codes,
		tx:        runner,
		publisher: notify.NopPublisher{},
		logger:    slog.Default(),
		tracer:    tracing.New("reliefops/shelter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries the fields of a new shelter.
type CreateRequest struct {
	Name        string
	FloodZoneID *id.FloodZoneID
	Location    orb.Point
	Capacity    int
}

// Create registers a shelter in the preparing state under a fresh code.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *models.Shelter, err error) {
	ctx, span := s.tracer.Start(ctx, "shelter.Create")
	defer func() { tracing.End(span, err) }()

	now := requestcontext.Now(ctx)
	shelter, err := models.NewShelter(id.ShelterID(uuid.New()), req.Name, req.FloodZoneID, req.Location, req.Capacity, now)
	if err != nil {
		return nil, err
	}

	_, err = s.codes.Generate(ctx, codegen.KindShelter, func(ctx context.Context, code string) error {
		return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			shelter.Code = code
			if err := s.shelters.Create(txCtx, shelter); err != nil {
				return err
			}
			notify.PublishAfterCommit(txCtx, s.publisher,
				notify.NewEvent(txCtx, notify.ShelterCreated, shelter.ID, shelter.Code, string(shelter.Status)))
			return nil
		})
	})
	if err != nil {
		return nil, translate(err, "failed to create shelter")
	}

	s.logger.InfoContext(ctx, "shelter created",
		"shelter_id", shelter.ID,
		"code", shelter.Code,
		"capacity", shelter.Capacity,
		"request_id", requestcontext.RequestID(ctx),
	)
	return shelter, nil
}

func (s *Service) Get(ctx context.Context, shelterID id.ShelterID) (*models.Shelter, error) {
	shelter, err := s.shelters.FindByID(ctx, shelterID)
	if err != nil {
		return nil, translate(err, "failed to load shelter")
	}
	return shelter, nil
}

func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Shelter, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown shelter status filter")
	}
	shelters, err := s.shelters.List(ctx, filter)
	if err != nil {
		return nil, translate(err, "failed to list shelters")
	}
	return shelters, nil
}

// IncrementOccupancy adds one occupant. It joins the caller's transaction
// when there is one.
func (s *Service) IncrementOccupancy(ctx context.Context, shelterID id.ShelterID) (*models.Shelter, error) {
	var updated *models.Shelter
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		before, after, err := s.adjust(txCtx, shelterID, +1)
		if err != nil {
			return err
		}
		s.publishCapacityChange(txCtx, before, after)
		updated = after
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to increment occupancy")
	}
	return updated, nil
}

// DecrementOccupancy removes one occupant, never going below zero.
func (s *Service) DecrementOccupancy(ctx context.Context, shelterID id.ShelterID) (*models.Shelter, error) {
	var updated *models.Shelter
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		before, after, err := s.adjust(txCtx, shelterID, -1)
		if err != nil {
			return err
		}
		s.publishCapacityChange(txCtx, before, after)
		updated = after
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to decrement occupancy")
	}
	return updated, nil
}

// adjust applies one atomic occupancy change and reports the status the
// store replaced.
func (s *Service) adjust(ctx context.Context, shelterID id.ShelterID, delta int) (models.Status, *models.Shelter, error) {
	now := requestcontext.Now(ctx)
	var (
		after  *models.Shelter
		before models.Status
		err    error
	)
	if delta > 0 {
		after, before, err = s.shelters.IncrementOccupancy(ctx, shelterID, now)
		s.metrics.IncrementOccupancy("increment")
	} else {
		after, before, err = s.shelters.DecrementOccupancy(ctx, shelterID, now)
		s.metrics.IncrementOccupancy("decrement")
	}
	if err != nil {
		return "", nil, err
	}
	return before, after, nil
}

func (s *Service) publishCapacityChange(ctx context.Context, before models.Status, after *models.Shelter) {
	if before == after.Status {
		return
	}
	s.metrics.IncrementStatusChange(string(after.Status))
	notify.PublishAfterCommit(ctx, s.publisher,
		notify.NewEvent(ctx, notify.ShelterStatusChanged, after.ID, after.Code, string(after.Status)).
			With("previous_status", string(before)))
}

// MoveOccupant assigns personID to shelter `to`, vacating `from` when given.
// The destination is validated before anything is written; the origin
// decrement, destination increment and person update commit together.
// Moving a person into the shelter they already occupy changes nothing.
func (s *Service) MoveOccupant(ctx context.Context, personID id.PersonID, from *id.ShelterID, to id.ShelterID) (_ *models.MoveResult, err error) {
	ctx, span := s.tracer.Start(ctx, "shelter.MoveOccupant",
		tracing.String("person_id", personID.String()),
		tracing.String("to_shelter_id", to.String()))
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	var result models.MoveResult
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		dest, err := s.shelters.FindByID(txCtx, to)
		if err != nil {
			return err
		}
		if from != nil && *from == to {
			result = models.MoveResult{Destination: dest}
			return nil
		}
		if !dest.IsAcceptingPeople() {
			return dErrors.IllegalTransition("shelter", string(dest.Status), "admit occupant")
		}

		now := requestcontext.Now(txCtx)
		// Both rows are locked in shelter id order so opposite moves
		// between the same pair cannot deadlock.
		vacate := func() error {
			before, origin, err := s.adjust(txCtx, *from, -1)
			if err != nil {
				return err
			}
			s.publishCapacityChange(txCtx, before, origin)
			result.Origin = origin
			return nil
		}
		admit := func() error {
			before, dest, err := s.adjust(txCtx, to, +1)
			if err != nil {
				return err
			}
			s.publishCapacityChange(txCtx, before, dest)
			result.Destination = dest
			return nil
		}
		steps := []func() error{admit}
		if from != nil {
			steps = []func() error{vacate, admit}
			if lockOrderBefore(to, *from) {
				steps = []func() error{admit, vacate}
			}
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		dest = result.Destination

		if err := s.occupants.PlaceInShelter(txCtx, personID, to, now); err != nil {
			return err
		}
		result.Moved = true

		ev := notify.NewEvent(txCtx, notify.OccupantMoved, personID, dest.Code, string(dest.Status)).
			With("to_shelter_id", to.String())
		if from != nil {
			ev = ev.With("from_shelter_id", from.String())
		}
		notify.PublishAfterCommit(txCtx, s.publisher, ev)
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to move occupant")
	}

	if result.Moved {
		s.metrics.ObserveMove(start)
		s.logger.InfoContext(ctx, "occupant moved",
			"person_id", personID,
			"to_shelter_id", to,
			"to_occupancy", result.Destination.CurrentOccupancy,
			"to_status", result.Destination.Status,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return &result, nil
}

// Open starts admitting people: preparing -> open, or reopening a closed
// shelter. The resulting status reflects current occupancy.
func (s *Service) Open(ctx context.Context, shelterID id.ShelterID) (*models.Shelter, error) {
	return s.transition(ctx, shelterID, "open", []models.Status{models.StatusPreparing, models.StatusClosed},
		models.StatusOpen, (*models.Shelter).CanOpen)
}

// Close stops admissions. People already housed stay counted.
func (s *Service) Close(ctx context.Context, shelterID id.ShelterID) (*models.Shelter, error) {
	return s.transition(ctx, shelterID, "close", models.OperatingStatuses,
		models.StatusClosed, (*models.Shelter).CanClose)
}

func (s *Service) transition(ctx context.Context, shelterID id.ShelterID, action string, from []models.Status, to models.Status, check func(*models.Shelter) error) (_ *models.Shelter, err error) {
	ctx, span := s.tracer.Start(ctx, "shelter."+action)
	defer func() { tracing.End(span, err) }()

	var updated *models.Shelter
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.shelters.FindByID(txCtx, shelterID)
		if err != nil {
			return err
		}
		if err := check(current); err != nil {
			return err
		}
		updated, err = s.shelters.UpdateStatus(txCtx, shelterID, []models.Status{current.Status}, to, requestcontext.Now(txCtx))
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodePreconditionFailed, "shelter status changed concurrently").
				WithDetail("action", action)
		}
		if err != nil {
			return err
		}
		notify.PublishAfterCommit(txCtx, s.publisher,
			notify.NewEvent(txCtx, notify.ShelterStatusChanged, updated.ID, updated.Code, string(updated.Status)).
				With("previous_status", string(current.Status)))
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to "+action+" shelter")
	}
	s.metrics.IncrementStatusChange(string(updated.Status))
	return updated, nil
}

// SoftDelete hides an empty shelter from the ledger.
func (s *Service) SoftDelete(ctx context.Context, shelterID id.ShelterID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.shelters.FindByID(txCtx, shelterID)
		if err != nil {
			return err
		}
		if err := current.CanDelete(); err != nil {
			return err
		}
		if err := s.shelters.SoftDelete(txCtx, shelterID, requestcontext.Now(txCtx)); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodePreconditionFailed, "shelter still houses people")
			}
			return err
		}
		notify.PublishAfterCommit(txCtx, s.publisher,
			notify.NewEvent(txCtx, notify.ShelterDeleted, current.ID, current.Code, string(current.Status)))
		return nil
	})
	if err != nil {
		return translate(err, "failed to delete shelter")
	}
	return nil
}

// translate maps store sentinels onto domain errors. Domain errors pass
// through unchanged.
func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "shelter not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodePreconditionFailed, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// lockOrderBefore reports whether a sorts before b in row lock order.
func lockOrderBefore(a, b id.ShelterID) bool {
	ua, ub := uuid.UUID(a), uuid.UUID(b)
	return bytes.Compare(ua[:], ub[:]) < 0
}
