//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/suite"

	"reliefops/internal/platform/postgres"
	"reliefops/internal/shelter/models"
	"reliefops/internal/shelter/store"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(postgres.Bootstrap(context.Background(), s.pg.DB))
	s.store = store.NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "displaced_persons", "shelters"))
}

func (s *PostgresStoreSuite) create(code string, capacity int, status models.Status) *models.Shelter {
	sh, err := models.NewShelter(id.ShelterID(uuid.New()), "Hall", nil, orb.Point{23.3, 42.7}, capacity, time.Now().UTC())
	s.Require().NoError(err)
	sh.Code = code
	sh.Status = status
	s.Require().NoError(s.store.Create(context.Background(), sh))
	return sh
}

func (s *PostgresStoreSuite) TestCreateConflict() {
	s.create("SHL-2026-00001", 5, models.StatusOpen)

	sh, err := models.NewShelter(id.ShelterID(uuid.New()), "Other", nil, orb.Point{0, 0}, 5, time.Now().UTC())
	s.Require().NoError(err)
	sh.Code = "SHL-2026-00001"
	s.ErrorIs(s.store.Create(context.Background(), sh), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestConcurrentIncrements() {
	ctx := context.Background()
	sh := s.create("SHL-2026-00002", 50, models.StatusOpen)

	var wg sync.WaitGroup
	for range 51 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.store.IncrementOccupancy(ctx, sh.ID, time.Now().UTC())
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.store.FindByID(ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal(51, got.CurrentOccupancy)
	s.Equal(models.StatusOvercrowded, got.Status)
	s.Equal(orb.Point{23.3, 42.7}, got.Location)
}

func (s *PostgresStoreSuite) TestDecrementFloor() {
	ctx := context.Background()
	sh := s.create("SHL-2026-00003", 2, models.StatusOpen)

	got, previous, err := s.store.DecrementOccupancy(ctx, sh.ID, time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(0, got.CurrentOccupancy)
	s.Equal(models.StatusOpen, previous)
}

func (s *PostgresStoreSuite) TestAdjustReportsReplacedStatus() {
	ctx := context.Background()
	sh := s.create("SHL-2026-00006", 1, models.StatusOpen)

	got, previous, err := s.store.IncrementOccupancy(ctx, sh.ID, time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(models.StatusFull, got.Status)
	s.Equal(models.StatusOpen, previous)

	got, previous, err = s.store.DecrementOccupancy(ctx, sh.ID, time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(models.StatusOpen, got.Status)
	s.Equal(models.StatusFull, previous)

	_, _, err = s.store.DecrementOccupancy(ctx, id.ShelterID(uuid.New()), time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateStatus() {
	ctx := context.Background()
	sh := s.create("SHL-2026-00004", 1, models.StatusClosed)
	_, _, err := s.store.IncrementOccupancy(ctx, sh.ID, time.Now().UTC())
	s.Require().NoError(err)

	_, err = s.store.UpdateStatus(ctx, sh.ID, []models.Status{models.StatusPreparing}, models.StatusOpen, time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.store.UpdateStatus(ctx, sh.ID, []models.Status{models.StatusClosed}, models.StatusOpen, time.Now().UTC())
	s.Require().NoError(err)
	s.Equal(models.StatusFull, got.Status)

	_, err = s.store.UpdateStatus(ctx, id.ShelterID(uuid.New()), []models.Status{models.StatusOpen}, models.StatusClosed, time.Now().UTC())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSoftDelete() {
	ctx := context.Background()
	sh := s.create("SHL-2026-00005", 2, models.StatusOpen)
	_, _, err := s.store.IncrementOccupancy(ctx, sh.ID, time.Now().UTC())
	s.Require().NoError(err)

	s.ErrorIs(s.store.SoftDelete(ctx, sh.ID, time.Now().UTC()), sentinel.ErrInvalidState)

	_, _, err = s.store.DecrementOccupancy(ctx, sh.ID, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.SoftDelete(ctx, sh.ID, time.Now().UTC()))

	_, err = s.store.FindByID(ctx, sh.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
