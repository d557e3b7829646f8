package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"reliefops/internal/codegen"
	"reliefops/internal/notify"
	"reliefops/internal/notify/notifytest"
	shelterMetrics "reliefops/internal/shelter/metrics"
	"reliefops/internal/shelter/models"
	"reliefops/internal/shelter/service"
	"reliefops/internal/shelter/store"
	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
	"reliefops/pkg/platform/tx"
	"reliefops/pkg/testutil"
)

// fakeOccupants records placements and can be told to fail.
type fakeOccupants struct {
	mu     sync.Mutex
	placed map[id.PersonID]id.ShelterID
	err    error
}

func (f *fakeOccupants) PlaceInShelter(_ context.Context, personID id.PersonID, shelterID id.ShelterID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.placed[personID] = shelterID
	return nil
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *store.InMemoryStore
	occupants *fakeOccupants
	events    *notifytest.Recorder
	svc       *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = testutil.ActorContext(id.UserID(uuid.New()), time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC))
	s.store = store.NewInMemoryStore()
	s.occupants = &fakeOccupants{placed: map[id.PersonID]id.ShelterID{}}
	s.events = &notifytest.Recorder{}
	s.svc = service.New(s.store, s.occupants, codegen.New(codegen.NewMemorySequence()), tx.NewMemoryRunner(s.store),
		service.WithPublisher(s.events),
		service.WithMetrics(shelterMetrics.New(prometheus.NewRegistry())),
	)
}

func (s *ServiceSuite) newShelter(capacity int) *models.Shelter {
	sh, err := s.svc.Create(s.ctx, service.CreateRequest{
		Name:     "Gymnasium",
		Location: orb.Point{21.2, 45.7},
		Capacity: capacity,
	})
	s.Require().NoError(err)
	return sh
}

func (s *ServiceSuite) openShelter(capacity, occupancy int) *models.Shelter {
	sh := s.newShelter(capacity)
	_, err := s.svc.Open(s.ctx, sh.ID)
	s.Require().NoError(err)
	for range occupancy {
		_, err := s.svc.IncrementOccupancy(s.ctx, sh.ID)
		s.Require().NoError(err)
	}
	s.events.Reset()
	sh, err = s.svc.Get(s.ctx, sh.ID)
	s.Require().NoError(err)
	return sh
}

func (s *ServiceSuite) TestCreate() {
	s.Run("assigns a year-stamped code and starts preparing", func() {
		sh := s.newShelter(10)
		s.Equal("SHL-2026-00001", sh.Code)
		s.Equal(models.StatusPreparing, sh.Status)
		s.Equal(0, sh.CurrentOccupancy)
		s.Contains(s.events.Types(), notify.ShelterCreated)
	})

	s.Run("rejects non-positive capacity", func() {
		_, err := s.svc.Create(s.ctx, service.CreateRequest{Name: "Hall", Capacity: 0})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestOccupancy() {
	s.Run("increment past capacity records overcrowding", func() {
		sh := s.openShelter(2, 1)

		updated, err := s.svc.IncrementOccupancy(s.ctx, sh.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusFull, updated.Status)

		updated, err = s.svc.IncrementOccupancy(s.ctx, sh.ID)
		s.Require().NoError(err)
		s.Equal(3, updated.CurrentOccupancy)
		s.Equal(models.StatusOvercrowded, updated.Status)
		s.Equal([]notify.EventType{notify.ShelterStatusChanged, notify.ShelterStatusChanged}, s.events.Types())
	})

	s.Run("decrement floors at zero", func() {
		sh := s.openShelter(5, 0)

		updated, err := s.svc.DecrementOccupancy(s.ctx, sh.ID)
		s.Require().NoError(err)
		s.Equal(0, updated.CurrentOccupancy)
		s.Equal(models.StatusOpen, updated.Status)
	})

	s.Run("decrement at zero announces no status change", func() {
		sh := s.openShelter(1, 0)

		_, err := s.svc.DecrementOccupancy(s.ctx, sh.ID)
		s.Require().NoError(err)
		s.Empty(s.events.Events())
	})

	s.Run("vacating a full shelter reports the replaced status", func() {
		sh := s.openShelter(1, 1)

		updated, err := s.svc.DecrementOccupancy(s.ctx, sh.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusOpen, updated.Status)

		events := s.events.Events()
		s.Require().Len(events, 1)
		s.Equal(notify.ShelterStatusChanged, events[0].Type)
		s.Equal(string(models.StatusFull), events[0].Attributes["previous_status"])
	})

	s.Run("preparing status is left alone", func() {
		sh := s.newShelter(1)

		updated, err := s.svc.IncrementOccupancy(s.ctx, sh.ID)
		s.Require().NoError(err)
		updated, err = s.svc.IncrementOccupancy(s.ctx, sh.ID)
		s.Require().NoError(err)
		s.Equal(2, updated.CurrentOccupancy)
		s.Equal(models.StatusPreparing, updated.Status)
	})

	s.Run("unknown shelter is not found", func() {
		_, err := s.svc.IncrementOccupancy(s.ctx, id.ShelterID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestMoveOccupant() {
	s.Run("moves between shelters in one step", func() {
		origin := s.openShelter(10, 4)
		dest := s.openShelter(10, 2)
		personID := id.PersonID(uuid.New())

		res, err := s.svc.MoveOccupant(s.ctx, personID, &origin.ID, dest.ID)
		s.Require().NoError(err)
		s.True(res.Moved)
		s.Equal(3, res.Origin.CurrentOccupancy)
		s.Equal(3, res.Destination.CurrentOccupancy)
		s.Equal(dest.ID, s.occupants.placed[personID])
		s.Contains(s.events.Types(), notify.OccupantMoved)
	})

	s.Run("missing destination leaves origin untouched", func() {
		origin := s.openShelter(10, 4)

		_, err := s.svc.MoveOccupant(s.ctx, id.PersonID(uuid.New()), &origin.ID, id.ShelterID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		after, err := s.svc.Get(s.ctx, origin.ID)
		s.Require().NoError(err)
		s.Equal(4, after.CurrentOccupancy)
	})

	s.Run("closed destination is refused", func() {
		dest := s.openShelter(10, 0)
		_, err := s.svc.Close(s.ctx, dest.ID)
		s.Require().NoError(err)

		_, err = s.svc.MoveOccupant(s.ctx, id.PersonID(uuid.New()), nil, dest.ID)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("same shelter is a no-op", func() {
		sh := s.openShelter(10, 3)

		res, err := s.svc.MoveOccupant(s.ctx, id.PersonID(uuid.New()), &sh.ID, sh.ID)
		s.Require().NoError(err)
		s.False(res.Moved)
		s.Equal(3, res.Destination.CurrentOccupancy)
		s.Empty(s.events.Events())
	})

	s.Run("failed person update rolls back both counters", func() {
		origin := s.openShelter(10, 4)
		dest := s.openShelter(10, 2)
		s.occupants.err = errors.New("person row gone")
		defer func() { s.occupants.err = nil }()

		_, err := s.svc.MoveOccupant(s.ctx, id.PersonID(uuid.New()), &origin.ID, dest.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		o, _ := s.svc.Get(s.ctx, origin.ID)
		d, _ := s.svc.Get(s.ctx, dest.ID)
		s.Equal(4, o.CurrentOccupancy)
		s.Equal(2, d.CurrentOccupancy)
		s.Empty(s.events.Events())
	})
}

func (s *ServiceSuite) TestLifecycle() {
	s.Run("reopening derives status from occupancy", func() {
		sh := s.openShelter(2, 2)
		_, err := s.svc.Close(s.ctx, sh.ID)
		s.Require().NoError(err)

		reopened, err := s.svc.Open(s.ctx, sh.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusFull, reopened.Status)
	})

	s.Run("opening an open shelter is illegal", func() {
		sh := s.openShelter(2, 0)

		_, err := s.svc.Open(s.ctx, sh.ID)
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodePreconditionFailed, de.Code)
		s.Equal("open", de.Details["current_status"])
	})

	s.Run("closing a preparing shelter is illegal", func() {
		sh := s.newShelter(2)

		_, err := s.svc.Close(s.ctx, sh.ID)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("delete requires an empty shelter", func() {
		sh := s.openShelter(5, 1)

		err := s.svc.SoftDelete(s.ctx, sh.ID)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))

		_, err = s.svc.DecrementOccupancy(s.ctx, sh.ID)
		s.Require().NoError(err)
		s.Require().NoError(s.svc.SoftDelete(s.ctx, sh.ID))

		_, err = s.svc.Get(s.ctx, sh.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestConcurrentIncrementsAreNotLost() {
	sh := s.openShelter(50, 0)

	var wg sync.WaitGroup
	for range 60 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.IncrementOccupancy(s.ctx, sh.ID)
			s.NoError(err)
		}()
	}
	wg.Wait()

	after, err := s.svc.Get(s.ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal(60, after.CurrentOccupancy)
	s.Equal(models.StatusOvercrowded, after.Status)
}

// orderedStore records the order in which occupancy rows are touched.
type orderedStore struct {
	*store.InMemoryStore
	mu      sync.Mutex
	touched []id.ShelterID
}

func (o *orderedStore) record(shelterID id.ShelterID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.touched = append(o.touched, shelterID)
}

func (o *orderedStore) IncrementOccupancy(ctx context.Context, shelterID id.ShelterID, now time.Time) (*models.Shelter, models.Status, error) {
	o.record(shelterID)
	return o.InMemoryStore.IncrementOccupancy(ctx, shelterID, now)
}

func (o *orderedStore) DecrementOccupancy(ctx context.Context, shelterID id.ShelterID, now time.Time) (*models.Shelter, models.Status, error) {
	o.record(shelterID)
	return o.InMemoryStore.DecrementOccupancy(ctx, shelterID, now)
}

func TestMoveOccupant_OppositeMovesTouchRowsInSameOrder(t *testing.T) {
	ctx := testutil.ActorContext(id.UserID(uuid.New()), time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC))
	mem := store.NewInMemoryStore()
	st := &orderedStore{InMemoryStore: mem}
	svc := service.New(st, &fakeOccupants{placed: map[id.PersonID]id.ShelterID{}},
		codegen.New(codegen.NewMemorySequence()), tx.NewMemoryRunner(mem))

	open := func() id.ShelterID {
		sh, err := svc.Create(ctx, service.CreateRequest{Name: "School", Location: orb.Point{21.2, 45.7}, Capacity: 10})
		require.NoError(t, err)
		_, err = svc.Open(ctx, sh.ID)
		require.NoError(t, err)
		_, err = svc.IncrementOccupancy(ctx, sh.ID)
		require.NoError(t, err)
		return sh.ID
	}
	a, b := open(), open()

	st.touched = nil
	_, err := svc.MoveOccupant(ctx, id.PersonID(uuid.New()), &a, b)
	require.NoError(t, err)
	forward := append([]id.ShelterID(nil), st.touched...)

	st.touched = nil
	_, err = svc.MoveOccupant(ctx, id.PersonID(uuid.New()), &b, a)
	require.NoError(t, err)

	assert.Len(t, forward, 2)
	assert.Equal(t, forward, st.touched)
}
