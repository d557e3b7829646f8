package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"reliefops/internal/codegen"
	"reliefops/internal/geodata"
	geostore "reliefops/internal/geodata/store"
	"reliefops/internal/notify"
	"reliefops/internal/notify/notifytest"
	rescueMetrics "reliefops/internal/rescue/metrics"
	"reliefops/internal/rescue/models"
	"reliefops/internal/rescue/service"
	"reliefops/internal/rescue/store"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/tx"
	"reliefops/pkg/requestcontext"
	"reliefops/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctx    context.Context
	zone   id.FloodZoneID
	store  *store.InMemoryStore
	runner *tx.MemoryRunner
	events *notifytest.Recorder
	svc    *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = testutil.ActorContext(id.UserID(uuid.New()), time.Date(2026, 7, 3, 14, 0, 0, 0, time.UTC))
	s.zone = id.FloodZoneID(uuid.New())
	zones := geostore.NewInMemoryDirectory(&geodata.FloodZone{ID: s.zone, Name: "Lower Danube", RiskLevel: "high"})
	s.store = store.NewInMemoryStore()
	s.runner = tx.NewMemoryRunner(s.store)
	s.events = &notifytest.Recorder{}
	s.svc = service.New(s.store, zones, codegen.New(codegen.NewMemorySequence()), s.runner,
		service.WithPublisher(s.events),
		service.WithMetrics(rescueMetrics.New(prometheus.NewRegistry())),
	)
}

func (s *ServiceSuite) request() service.CreateRequest {
	target := orb.Point{28.05, 45.43}
	return service.CreateRequest{
		FloodZoneID:            s.zone,
		TargetLocation:         &target,
		AssignedOrgID:          id.OrganizationID(uuid.New()),
		OperationType:          models.TypeSearchAndRescue,
		EstimatedPersonsAtRisk: 6,
	}
}

func (s *ServiceSuite) create() *models.Operation {
	op, err := s.svc.Create(s.ctx, s.request())
	s.Require().NoError(err)
	return op
}

func (s *ServiceSuite) TestCreate() {
	s.Run("pending with default priority and generated code", func() {
		op := s.create()
		s.Equal("RSC-2026-00001", op.Code)
		s.Equal(models.StatusPending, op.Status)
		s.Equal(models.PriorityHigh, op.Priority)
		s.Equal(requestcontext.UserID(s.ctx), op.RequestedByUserID)
		s.Contains(s.events.Types(), notify.RescueCreated)
	})

	s.Run("unknown flood zone is not found", func() {
		req := s.request()
		req.FloodZoneID = id.FloodZoneID(uuid.New())
		_, err := s.svc.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing target is a validation error", func() {
		req := s.request()
		req.TargetLocation = nil
		_, err := s.svc.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestCreateSkipsTakenCode() {
	target := orb.Point{28.0, 45.4}
	taken, err := models.NewOperation(id.RescueOperationID(uuid.New()), models.NewOperationParams{
		FloodZoneID:    s.zone,
		TargetLocation: &target,
		AssignedOrgID:  id.OrganizationID(uuid.New()),
		OperationType:  models.TypeAssessment,
		RequestedBy:    requestcontext.UserID(s.ctx),
	}, requestcontext.Now(s.ctx))
	s.Require().NoError(err)
	taken.Code = "RSC-2026-00001"
	s.Require().NoError(s.store.Create(s.ctx, taken))

	op := s.create()
	s.Equal("RSC-2026-00002", op.Code)
}

func (s *ServiceSuite) TestDispatch() {
	op := s.create()

	dispatched, err := s.svc.Dispatch(s.ctx, op.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDispatched, dispatched.Status)
	s.Require().NotNil(dispatched.DispatchedAt)
	first := *dispatched.DispatchedAt

	later := requestcontext.WithTime(s.ctx, first.Add(time.Hour))
	_, err = s.svc.Dispatch(later, op.ID)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))

	reloaded, err := s.svc.Get(s.ctx, op.ID)
	s.Require().NoError(err)
	s.Equal(first, *reloaded.DispatchedAt)
}

func (s *ServiceSuite) TestUpdateStatus() {
	s.Run("skipping ahead stamps arrival", func() {
		op := s.create()
		rescued := 2
		updated, err := s.svc.UpdateStatus(s.ctx, op.ID, models.StatusOnSite, &rescued, nil)
		s.Require().NoError(err)
		s.Equal(models.StatusOnSite, updated.Status)
		s.NotNil(updated.ArrivedAt)
		s.Equal(2, updated.PersonsRescued)
	})

	s.Run("backward transition is refused with details", func() {
		op := s.create()
		_, err := s.svc.UpdateStatus(s.ctx, op.ID, models.StatusOnSite, nil, nil)
		s.Require().NoError(err)

		_, err = s.svc.UpdateStatus(s.ctx, op.ID, models.StatusEnRoute, nil, nil)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal("on_site", de.Details["current_status"])
	})

	s.Run("rescued count cannot decrease", func() {
		op := s.create()
		five, three := 5, 3
		_, err := s.svc.UpdateStatus(s.ctx, op.ID, models.StatusInProgress, &five, nil)
		s.Require().NoError(err)

		_, err = s.svc.Complete(s.ctx, op.ID, three, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("abort stamps completion and is terminal", func() {
		op := s.create()
		aborted, err := s.svc.UpdateStatus(s.ctx, op.ID, models.StatusAborted, nil, nil)
		s.Require().NoError(err)
		s.NotNil(aborted.CompletedAt)

		_, err = s.svc.UpdateStatus(s.ctx, op.ID, models.StatusFailed, nil, nil)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})
}

func (s *ServiceSuite) TestComplete() {
	op := s.create()
	notes := "all residents evacuated"
	done, err := s.svc.Complete(s.ctx, op.ID, 6, &notes)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, done.Status)
	s.Equal(6, done.PersonsRescued)
	s.Equal(notes, done.Notes)

	_, err = s.svc.Complete(s.ctx, op.ID, 6, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	aborted := s.create()
	_, err = s.svc.UpdateStatus(s.ctx, aborted.ID, models.StatusAborted, nil, nil)
	s.Require().NoError(err)
	_, err = s.svc.Complete(s.ctx, aborted.ID, 0, nil)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
}

func (s *ServiceSuite) TestAssignTeam() {
	op := s.create()
	a, b, c := id.UserID(uuid.New()), id.UserID(uuid.New()), id.UserID(uuid.New())

	s.Run("dedupes and defaults leader to first", func() {
		team, err := s.svc.AssignTeam(s.ctx, op.ID, []id.UserID{a, b, a}, nil)
		s.Require().NoError(err)
		s.Len(team.Members, 2)
		leader, ok := team.Leader()
		s.Require().True(ok)
		s.Equal(a, leader.UserID)

		reloaded, err := s.svc.Get(s.ctx, op.ID)
		s.Require().NoError(err)
		s.Equal(2, reloaded.TeamSize)
	})

	s.Run("replaces membership", func() {
		_, err := s.svc.AssignTeam(s.ctx, op.ID, []id.UserID{c}, &c)
		s.Require().NoError(err)

		team, err := s.svc.Team(s.ctx, op.ID)
		s.Require().NoError(err)
		s.Require().Len(team.Members, 1)
		s.Equal(c, team.Members[0].UserID)
		s.Equal(models.RoleLeader, team.Members[0].Role)
	})

	s.Run("leader outside the list is rejected", func() {
		_, err := s.svc.AssignTeam(s.ctx, op.ID, []id.UserID{a}, &b)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("terminal operations keep their team", func() {
		_, err := s.svc.Complete(s.ctx, op.ID, 1, nil)
		s.Require().NoError(err)
		_, err = s.svc.AssignTeam(s.ctx, op.ID, []id.UserID{a}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})
}

func (s *ServiceSuite) TestDelete() {
	s.Run("completed operation cannot be deleted", func() {
		op := s.create()
		_, err := s.svc.Complete(s.ctx, op.ID, 0, nil)
		s.Require().NoError(err)

		err = s.svc.Delete(s.ctx, op.ID)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("pending operation disappears", func() {
		op := s.create()
		s.Require().NoError(s.svc.Delete(s.ctx, op.ID))

		_, err := s.svc.Get(s.ctx, op.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Contains(s.events.Types(), notify.RescueDeleted)
	})
}

func (s *ServiceSuite) TestCreateWithCodeJoinsCallerTransaction() {
	err := s.runner.RunInTx(s.ctx, func(txCtx context.Context) error {
		if _, err := s.svc.CreateWithCode(txCtx, s.request(), "RSC-2026-00900"); err != nil {
			return err
		}
		return dErrors.New(dErrors.CodeInternal, "later write failed")
	})
	s.Require().Error(err)

	ops, err := s.svc.List(s.ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Empty(ops)
	s.Empty(s.events.Events())
}
