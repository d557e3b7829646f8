// Package service registers displaced persons and keeps their shelter
// assignment and family membership in step with the shelter ledger.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reliefops/internal/codegen"
	"reliefops/internal/notify"
	"reliefops/internal/person/models"
	shelterModels "reliefops/internal/shelter/models"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/platform/tracing"
	"reliefops/pkg/platform/tx"
	"reliefops/pkg/requestcontext"
)

type PersonStore interface {
	Create(ctx context.Context, p *models.Person) error
	FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error)
	FindByIDForUpdate(ctx context.Context, personID id.PersonID) (*models.Person, error)
	ClearShelter(ctx context.Context, personID id.PersonID, from id.ShelterID, status models.Status, now time.Time) error
	SetFamilyGroup(ctx context.Context, personID id.PersonID, groupID id.FamilyGroupID, now time.Time) error
}

type FamilyGroupStore interface {
	Create(ctx context.Context, g *models.FamilyGroup) error
	FindByID(ctx context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error)
	IncrementSize(ctx context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error)
	DecrementSize(ctx context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error)
}

// Ledger is the shelter ledger as seen from person assignment. Every call
// joins the transaction carried by ctx.
type Ledger interface {
	Get(ctx context.Context, shelterID id.ShelterID) (*shelterModels.Shelter, error)
	IncrementOccupancy(ctx context.Context, shelterID id.ShelterID) (*shelterModels.Shelter, error)
	DecrementOccupancy(ctx context.Context, shelterID id.ShelterID) (*shelterModels.Shelter, error)
	MoveOccupant(ctx context.Context, personID id.PersonID, from *id.ShelterID, to id.ShelterID) (*shelterModels.MoveResult, error)
}

type CodeGenerator interface {
	Generate(ctx context.Context, kind codegen.Kind, create func(ctx context.Context, code string) error) (string, error)
}

type Service struct {
	persons   PersonStore
	groups    FamilyGroupStore
	ledger    Ledger
	codes     CodeGenerator
	tx        tx.Runner
	publisher notify.Publisher
	logger    *slog.Logger
	tracer    tracing.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func New(persons PersonStore, groups FamilyGroupStore, ledger Ledger, codes CodeGenerator, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		persons:   persons,
		groups:    groups,
		ledger:    ledger,
		codes:     codes,
		tx:        runner,
		publisher: notify.NopPublisher{},
		logger:    slog.Default(),
		tracer:    tracing.New("reliefops/person"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest carries registration input. ShelterID is optional.
type RegisterRequest struct {
	FullName    string
	DateOfBirth *time.Time
	Gender      models.Gender
	Phone       string
	Needs       []string
	ShelterID   *id.ShelterID
}

// Register creates a person. With a shelter, the person starts sheltered and
// the shelter's occupancy rises in the same transaction; a missing or closed
// shelter prevents the registration.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (_ *models.Person, err error) {
	ctx, span := s.tracer.Start(ctx, "person.Register")
	defer func() { tracing.End(span, err) }()

	now := requestcontext.Now(ctx)
	person, err := models.NewPerson(id.PersonID(uuid.New()), models.NewPersonParams{
		FullName:     req.FullName,
		DateOfBirth:  req.DateOfBirth,
		Gender:       req.Gender,
		Phone:        req.Phone,
		Needs:        req.Needs,
		RegisteredBy: requestcontext.UserID(ctx),
	}, now)
	if err != nil {
		return nil, err
	}

	_, err = s.codes.Generate(ctx, codegen.KindDisplacedPerson, func(ctx context.Context, code string) error {
		return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			p := *person
			p.Code = code
			if req.ShelterID != nil {
				shelter, err := s.ledger.Get(txCtx, *req.ShelterID)
				if err != nil {
					return err
				}
				if !shelter.IsAcceptingPeople() {
					return dErrors.IllegalTransition("shelter", string(shelter.Status), "admit occupant")
				}
				p.CurrentShelterID = req.ShelterID
				p.Status = models.StatusSheltered
			}
			if err := s.persons.Create(txCtx, &p); err != nil {
				return err
			}
			if req.ShelterID != nil {
				if _, err := s.ledger.IncrementOccupancy(txCtx, *req.ShelterID); err != nil {
					return err
				}
			}
			ev := notify.NewEvent(txCtx, notify.PersonRegistered, p.ID, p.Code, string(p.Status))
			if req.ShelterID != nil {
				ev = ev.With("shelter_id", req.ShelterID.String())
			}
			notify.PublishAfterCommit(txCtx, s.publisher, ev)
			person = &p
			return nil
		})
	})
	if err != nil {
		return nil, translate(err, "failed to register person")
	}

	s.logger.InfoContext(ctx, "person registered",
		"person_id", person.ID,
		"code", person.Code,
		"status", person.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	return person, nil
}

func (s *Service) Get(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	p, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		return nil, translate(err, "failed to load person")
	}
	return p, nil
}

// AssignShelter moves the person into shelterID, vacating their current
// shelter. The person row is locked first so concurrent assignments of the
// same person serialize on it.
func (s *Service) AssignShelter(ctx context.Context, personID id.PersonID, shelterID id.ShelterID) (_ *models.Person, err error) {
	ctx, span := s.tracer.Start(ctx, "person.AssignShelter",
		tracing.String("person_id", personID.String()),
		tracing.String("shelter_id", shelterID.String()))
	defer func() { tracing.End(span, err) }()

	var updated *models.Person
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.persons.FindByIDForUpdate(txCtx, personID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.MoveOccupant(txCtx, personID, p.CurrentShelterID, shelterID); err != nil {
			return err
		}
		updated, err = s.persons.FindByID(txCtx, personID)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to assign shelter")
	}
	return updated, nil
}

// Discharge releases the person's shelter slot and records where they went.
func (s *Service) Discharge(ctx context.Context, personID id.PersonID, status models.Status) (_ *models.Person, err error) {
	ctx, span := s.tracer.Start(ctx, "person.Discharge")
	defer func() { tracing.End(span, err) }()

	var updated *models.Person
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.persons.FindByIDForUpdate(txCtx, personID)
		if err != nil {
			return err
		}
		if err := p.CanDischarge(status); err != nil {
			return err
		}
		from := *p.CurrentShelterID
		if _, err := s.ledger.DecrementOccupancy(txCtx, from); err != nil {
			return err
		}
		if err := s.persons.ClearShelter(txCtx, personID, from, status, requestcontext.Now(txCtx)); err != nil {
			return err
		}
		updated, err = s.persons.FindByID(txCtx, personID)
		if err != nil {
			return err
		}
		notify.PublishAfterCommit(txCtx, s.publisher,
			notify.NewEvent(txCtx, notify.PersonDischarged, p.ID, p.Code, string(status)).
				With("shelter_id", from.String()))
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to discharge person")
	}
	return updated, nil
}

// CreateFamilyGroup creates a group. A head person, when given, must exist
// and becomes the first member.
func (s *Service) CreateFamilyGroup(ctx context.Context, name string, head *id.PersonID) (*models.FamilyGroup, error) {
	group, err := models.NewFamilyGroup(id.FamilyGroupID(uuid.New()), name, head, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	_, err = s.codes.Generate(ctx, codegen.KindFamilyGroup, func(ctx context.Context, code string) error {
		return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			g := *group
			g.Code = code
			if head != nil {
				if _, err := s.persons.FindByIDForUpdate(txCtx, *head); err != nil {
					return err
				}
			}
			if err := s.groups.Create(txCtx, &g); err != nil {
				return err
			}
			notify.PublishAfterCommit(txCtx, s.publisher,
				notify.NewEvent(txCtx, notify.FamilyGroupCreated, g.ID, g.Code, ""))
			if head != nil {
				updated, err := s.addMember(txCtx, &g, *head)
				if err != nil {
					return err
				}
				g = *updated
			}
			group = &g
			return nil
		})
	})
	if err != nil {
		return nil, translate(err, "failed to create family group")
	}
	return group, nil
}

func (s *Service) GetFamilyGroup(ctx context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error) {
	g, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, translate(groupNotFound(err), "failed to load family group")
	}
	return g, nil
}

// AddFamilyMember adds personID to the group. Both must exist before any
// counter moves. A member of another group is moved out of it.
func (s *Service) AddFamilyMember(ctx context.Context, groupID id.FamilyGroupID, personID id.PersonID) (*models.FamilyGroup, error) {
	var updated *models.FamilyGroup
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		g, err := s.groups.FindByID(txCtx, groupID)
		if err != nil {
			return groupNotFound(err)
		}
		updated, err = s.addMember(txCtx, g, personID)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to add family member")
	}
	return updated, nil
}

func (s *Service) addMember(ctx context.Context, g *models.FamilyGroup, personID id.PersonID) (*models.FamilyGroup, error) {
	p, err := s.persons.FindByIDForUpdate(ctx, personID)
	if err != nil {
		return nil, err
	}
	if p.FamilyGroupID != nil && *p.FamilyGroupID == g.ID {
		return nil, dErrors.New(dErrors.CodeConflict, "person is already a member of this family group")
	}
	if p.FamilyGroupID != nil {
		if _, err := s.groups.DecrementSize(ctx, *p.FamilyGroupID); err != nil {
			return nil, groupNotFound(err)
		}
	}
	updated, err := s.groups.IncrementSize(ctx, g.ID)
	if err != nil {
		return nil, groupNotFound(err)
	}
	if err := s.persons.SetFamilyGroup(ctx, personID, g.ID, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	notify.PublishAfterCommit(ctx, s.publisher,
		notify.NewEvent(ctx, notify.FamilyMemberAdded, g.ID, g.Code, "").
			With("person_id", personID.String()))
	return updated, nil
}

func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "person not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodePreconditionFailed, "person was reassigned concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// groupNotFound names the family group in a store miss so translate does
// not report it as a missing person.
func groupNotFound(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "family group not found")
	}
	return err
}
