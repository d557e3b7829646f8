package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"

	"reliefops/internal/codegen"
	"reliefops/internal/notify"
	"reliefops/internal/notify/notifytest"
	"reliefops/internal/person/models"
	"reliefops/internal/person/service"
	personStore "reliefops/internal/person/store"
	shelterModels "reliefops/internal/shelter/models"
	shelterService "reliefops/internal/shelter/service"
	shelterStore "reliefops/internal/shelter/store"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/tx"
	"reliefops/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	persons  *personStore.InMemoryPersonStore
	groups   *personStore.InMemoryFamilyGroupStore
	shelters *shelterService.Service
	events   *notifytest.Recorder
	svc      *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = testutil.ActorContext(id.UserID(uuid.New()), time.Date(2026, 9, 4, 14, 0, 0, 0, time.UTC))
	s.persons = personStore.NewInMemoryPersonStore()
	s.groups = personStore.NewInMemoryFamilyGroupStore()
	ledgerStore := shelterStore.NewInMemoryStore()
	runner := tx.NewMemoryRunner(s.persons, s.groups, ledgerStore)
	codes := codegen.New(codegen.NewMemorySequence())
	s.events = &notifytest.Recorder{}

	s.shelters = shelterService.New(ledgerStore, s.persons, codes, runner)
	s.svc = service.New(s.persons, s.groups, s.shelters, codes, runner, service.WithPublisher(s.events))
}

func (s *ServiceSuite) shelter(capacity, occupancy int) *shelterModels.Shelter {
	sh, err := s.shelters.Create(s.ctx, shelterService.CreateRequest{
		Name: "Sports Hall", Location: orb.Point{105.8, 21.0}, Capacity: capacity,
	})
	s.Require().NoError(err)
	_, err = s.shelters.Open(s.ctx, sh.ID)
	s.Require().NoError(err)
	for range occupancy {
		_, err := s.shelters.IncrementOccupancy(s.ctx, sh.ID)
		s.Require().NoError(err)
	}
	sh, err = s.shelters.Get(s.ctx, sh.ID)
	s.Require().NoError(err)
	return sh
}

func (s *ServiceSuite) register(shelterID *id.ShelterID) *models.Person {
	p, err := s.svc.Register(s.ctx, service.RegisterRequest{FullName: "Nguyen Van A", ShelterID: shelterID})
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) occupancy(shelterID id.ShelterID) int {
	sh, err := s.shelters.Get(s.ctx, shelterID)
	s.Require().NoError(err)
	return sh.CurrentOccupancy
}

func (s *ServiceSuite) TestRegister() {
	s.Run("without shelter stays registered", func() {
		p := s.register(nil)
		s.Equal(models.StatusRegistered, p.Status)
		s.Nil(p.CurrentShelterID)
		s.Equal("DPR-2026-00001", p.Code)
	})

	s.Run("with shelter claims a slot in the same transaction", func() {
		sh := s.shelter(10, 0)
		p := s.register(&sh.ID)
		s.Equal(models.StatusSheltered, p.Status)
		s.Equal(sh.ID, *p.CurrentShelterID)
		s.Equal(1, s.occupancy(sh.ID))
	})

	s.Run("missing shelter prevents registration", func() {
		missing := id.ShelterID(uuid.New())
		_, err := s.svc.Register(s.ctx, service.RegisterRequest{FullName: "Tran B", ShelterID: &missing})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("closed shelter prevents registration", func() {
		sh := s.shelter(10, 0)
		_, err := s.shelters.Close(s.ctx, sh.ID)
		s.Require().NoError(err)

		_, err = s.svc.Register(s.ctx, service.RegisterRequest{FullName: "Le C", ShelterID: &sh.ID})
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
		s.Equal(0, s.occupancy(sh.ID))
	})

	s.Run("requires an acting user", func() {
		_, err := s.svc.Register(context.Background(), service.RegisterRequest{FullName: "Anon"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestAssignShelter() {
	s.Run("moving between shelters shifts exactly one slot", func() {
		a := s.shelter(10, 3)
		b := s.shelter(10, 5)
		p := s.register(&a.ID)

		updated, err := s.svc.AssignShelter(s.ctx, p.ID, b.ID)
		s.Require().NoError(err)
		s.Equal(b.ID, *updated.CurrentShelterID)
		s.Equal(models.StatusSheltered, updated.Status)
		s.Equal(3, s.occupancy(a.ID))
		s.Equal(6, s.occupancy(b.ID))
	})

	s.Run("missing destination changes nothing", func() {
		a := s.shelter(10, 0)
		p := s.register(&a.ID)

		_, err := s.svc.AssignShelter(s.ctx, p.ID, id.ShelterID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(1, s.occupancy(a.ID))
		after, err := s.svc.Get(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(a.ID, *after.CurrentShelterID)
	})

	s.Run("unknown person is not found", func() {
		sh := s.shelter(10, 0)
		_, err := s.svc.AssignShelter(s.ctx, id.PersonID(uuid.New()), sh.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(0, s.occupancy(sh.ID))
	})

	s.Run("reassigning to the current shelter is a no-op", func() {
		sh := s.shelter(10, 0)
		p := s.register(&sh.ID)

		_, err := s.svc.AssignShelter(s.ctx, p.ID, sh.ID)
		s.Require().NoError(err)
		s.Equal(1, s.occupancy(sh.ID))
	})
}

// Shelter S has capacity 50 and occupancy 49. P1 (unsheltered) and P2 (in T)
// are assigned to S at the same time.
func (s *ServiceSuite) TestConcurrentAssignmentOverCapacity() {
	target := s.shelter(50, 49)
	other := s.shelter(20, 4)
	p1 := s.register(nil)
	p2 := s.register(&other.ID)

	var wg sync.WaitGroup
	for _, personID := range []id.PersonID{p1.ID, p2.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.AssignShelter(s.ctx, personID, target.ID)
			s.NoError(err)
		}()
	}
	wg.Wait()

	sh, err := s.shelters.Get(s.ctx, target.ID)
	s.Require().NoError(err)
	s.Equal(51, sh.CurrentOccupancy)
	s.Equal(shelterModels.StatusOvercrowded, sh.Status)
	s.Equal(4, s.occupancy(other.ID))

	got1, err := s.svc.Get(s.ctx, p1.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSheltered, got1.Status)
	got2, err := s.svc.Get(s.ctx, p2.ID)
	s.Require().NoError(err)
	s.Equal(target.ID, *got2.CurrentShelterID)
}

func (s *ServiceSuite) TestDischarge() {
	s.Run("frees the slot and records the destination", func() {
		sh := s.shelter(10, 0)
		p := s.register(&sh.ID)

		updated, err := s.svc.Discharge(s.ctx, p.ID, models.StatusReturnedHome)
		s.Require().NoError(err)
		s.Nil(updated.CurrentShelterID)
		s.Equal(models.StatusReturnedHome, updated.Status)
		s.Equal(0, s.occupancy(sh.ID))
		s.Contains(s.events.Types(), notify.PersonDischarged)
	})

	s.Run("unsheltered person cannot be discharged", func() {
		p := s.register(nil)
		_, err := s.svc.Discharge(s.ctx, p.ID, models.StatusRelocated)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("only relocation targets are accepted", func() {
		sh := s.shelter(10, 0)
		p := s.register(&sh.ID)
		_, err := s.svc.Discharge(s.ctx, p.ID, models.StatusMissing)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(1, s.occupancy(sh.ID))
	})
}

func (s *ServiceSuite) TestFamilyGroups() {
	s.Run("head becomes the first member", func() {
		head := s.register(nil)
		g, err := s.svc.CreateFamilyGroup(s.ctx, "Pham family", &head.ID)
		s.Require().NoError(err)
		s.Equal(1, g.FamilySize)
		s.Equal("FAM-2026-00001", g.Code)

		p, err := s.svc.Get(s.ctx, head.ID)
		s.Require().NoError(err)
		s.Equal(g.ID, *p.FamilyGroupID)
	})

	s.Run("missing head rolls back the group", func() {
		missing := id.PersonID(uuid.New())
		_, err := s.svc.CreateFamilyGroup(s.ctx, "Ghost family", &missing)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("adding a member increments size", func() {
		g, err := s.svc.CreateFamilyGroup(s.ctx, "Hoang family", nil)
		s.Require().NoError(err)
		s.Equal(0, g.FamilySize)

		p := s.register(nil)
		g, err = s.svc.AddFamilyMember(s.ctx, g.ID, p.ID)
		s.Require().NoError(err)
		s.Equal(1, g.FamilySize)

		_, err = s.svc.AddFamilyMember(s.ctx, g.ID, p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("moving to another group decrements the old one", func() {
		first, err := s.svc.CreateFamilyGroup(s.ctx, "Vo family", nil)
		s.Require().NoError(err)
		second, err := s.svc.CreateFamilyGroup(s.ctx, "Dang family", nil)
		s.Require().NoError(err)
		p := s.register(nil)

		_, err = s.svc.AddFamilyMember(s.ctx, first.ID, p.ID)
		s.Require().NoError(err)
		second, err = s.svc.AddFamilyMember(s.ctx, second.ID, p.ID)
		s.Require().NoError(err)
		s.Equal(1, second.FamilySize)

		first, err = s.svc.GetFamilyGroup(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Equal(0, first.FamilySize)
	})

	s.Run("unknown group or person fails before counting", func() {
		g, err := s.svc.CreateFamilyGroup(s.ctx, "Bui family", nil)
		s.Require().NoError(err)

		_, err = s.svc.AddFamilyMember(s.ctx, g.ID, id.PersonID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		p := s.register(nil)
		_, err = s.svc.AddFamilyMember(s.ctx, id.FamilyGroupID(uuid.New()), p.ID)
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodeNotFound, de.Code)
		s.Equal("family group not found", de.Message)

		g, err = s.svc.GetFamilyGroup(s.ctx, g.ID)
		s.Require().NoError(err)
		s.Equal(0, g.FamilySize)
	})
}
