package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "reliefops/pkg/domain"
	dErrors "reliefops/pkg/domain-errors"
)

func TestCapacityStatus(t *testing.T) {
	tests := []struct {
		occupancy, capacity int
		want                Status
	}{
		{0, 50, StatusOpen},
		{49, 50, StatusOpen},
		{50, 50, StatusFull},
		{51, 50, StatusOvercrowded},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CapacityStatus(tt.occupancy, tt.capacity), "%d/%d", tt.occupancy, tt.capacity)
	}
}

func TestNewShelter(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	loc := orb.Point{26.1, 44.4}

	s, err := NewShelter(id.ShelterID(uuid.New()), "  Sports Hall  ", nil, loc, 50, now)
	require.NoError(t, err)
	assert.Equal(t, "Sports Hall", s.Name)
	assert.Equal(t, StatusPreparing, s.Status)
	assert.Zero(t, s.CurrentOccupancy)

	_, err = NewShelter(id.ShelterID(uuid.New()), "Hall", nil, loc, 0, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewShelter(id.ShelterID(uuid.New()), "", nil, loc, 10, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewShelter(id.ShelterID(uuid.New()), "Hall", nil, orb.Point{200, 0}, 10, now)
	assert.Error(t, err)
}

func TestLifecycleGuards(t *testing.T) {
	s := &Shelter{Status: StatusPreparing}
	assert.NoError(t, s.CanOpen())
	assert.True(t, dErrors.HasCode(s.CanClose(), dErrors.CodePreconditionFailed))
	assert.True(t, s.IsAcceptingPeople())

	s.Status = StatusOvercrowded
	assert.NoError(t, s.CanClose())
	assert.Error(t, s.CanOpen())

	s.Status = StatusClosed
	assert.False(t, s.IsAcceptingPeople())
	assert.NoError(t, s.CanOpen(), "closed shelters can reopen")

	s.CurrentOccupancy = 3
	err := s.CanDelete()
	require.Error(t, err)
	de, ok := dErrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "3", de.Details["current_occupancy"])
}
