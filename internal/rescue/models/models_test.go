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

func TestCanTransitionTo(t *testing.T) {
	all := []Status{StatusPending, StatusDispatched, StatusEnRoute, StatusOnSite, StatusInProgress,
		StatusCompleted, StatusAborted, StatusFailed}

	legal := map[Status][]Status{
		StatusPending:    {StatusDispatched, StatusEnRoute, StatusOnSite, StatusInProgress, StatusCompleted, StatusAborted, StatusFailed},
		StatusDispatched: {StatusEnRoute, StatusOnSite, StatusInProgress, StatusCompleted, StatusAborted, StatusFailed},
		StatusEnRoute:    {StatusOnSite, StatusInProgress, StatusCompleted, StatusAborted, StatusFailed},
		StatusOnSite:     {StatusInProgress, StatusCompleted, StatusAborted, StatusFailed},
		StatusInProgress: {StatusCompleted, StatusAborted, StatusFailed},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range legal[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, StatusOnSite.CanTransitionTo(StatusEnRoute), "no step back to an earlier stage")
	assert.False(t, StatusInProgress.CanTransitionTo(StatusPending))
}

func newOp(t *testing.T) *Operation {
	t.Helper()
	op, err := NewOperation(id.RescueOperationID(uuid.New()), NewOperationParams{
		FloodZoneID:    id.FloodZoneID(uuid.New()),
		TargetLocation: &orb.Point{106.7, 10.8},
		AssignedOrgID:  id.OrganizationID(uuid.New()),
		OperationType:  TypeEvacuation,
		RequestedBy:    id.UserID(uuid.New()),
	}, time.Now())
	require.NoError(t, err)
	return op
}

func TestNewOperation(t *testing.T) {
	op := newOp(t)
	assert.Equal(t, StatusPending, op.Status)
	assert.Equal(t, PriorityHigh, op.Priority)

	_, err := NewOperation(id.RescueOperationID(uuid.New()), NewOperationParams{
		FloodZoneID:   id.FloodZoneID(uuid.New()),
		AssignedOrgID: id.OrganizationID(uuid.New()),
		OperationType: TypeEvacuation,
		RequestedBy:   id.UserID(uuid.New()),
	}, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "target location is required")
}

func TestTransitions(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	t.Run("dispatch stamps dispatched_at", func(t *testing.T) {
		op := newOp(t)
		tr, err := op.Dispatch(now)
		require.NoError(t, err)
		assert.Equal(t, []Status{StatusPending}, tr.From)
		assert.Equal(t, &now, tr.DispatchedAt)
	})

	t.Run("second dispatch is illegal", func(t *testing.T) {
		op := newOp(t)
		op.Status = StatusDispatched
		_, err := op.Dispatch(now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	t.Run("on_site stamps arrived_at, terminal targets stamp completed_at", func(t *testing.T) {
		op := newOp(t)
		tr, err := op.TransitionTo(StatusOnSite, nil, nil, now)
		require.NoError(t, err)
		assert.NotNil(t, tr.ArrivedAt)
		assert.Nil(t, tr.CompletedAt)

		tr, err = op.TransitionTo(StatusAborted, nil, nil, now)
		require.NoError(t, err)
		assert.NotNil(t, tr.CompletedAt)
	})

	t.Run("persons rescued is monotonic", func(t *testing.T) {
		op := newOp(t)
		op.Status = StatusInProgress
		op.PersonsRescued = 5

		fewer := 3
		_, err := op.TransitionTo(StatusCompleted, &fewer, nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		negative := -1
		_, err = op.Complete(negative, nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = op.Complete(7, nil, now)
		assert.NoError(t, err)
	})

	t.Run("complete twice conflicts", func(t *testing.T) {
		op := newOp(t)
		op.Status = StatusCompleted
		_, err := op.Complete(1, nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		op.Status = StatusAborted
		_, err = op.Complete(1, nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	t.Run("delete only from pending or failed exits", func(t *testing.T) {
		op := newOp(t)
		for _, st := range []Status{StatusPending, StatusAborted, StatusFailed} {
			op.Status = st
			assert.NoError(t, op.CanDelete())
		}
		op.Status = StatusCompleted
		assert.True(t, dErrors.HasCode(op.CanDelete(), dErrors.CodePreconditionFailed))
	})
}

func TestBuildTeam(t *testing.T) {
	opID := id.RescueOperationID(uuid.New())
	a, b, c := id.UserID(uuid.New()), id.UserID(uuid.New()), id.UserID(uuid.New())
	now := time.Now()

	t.Run("dedupes and defaults leader to first", func(t *testing.T) {
		team, err := BuildTeam(opID, []id.UserID{a, b, a, c}, nil, now)
		require.NoError(t, err)
		require.Len(t, team.Members, 3)
		leader, ok := team.Leader()
		require.True(t, ok)
		assert.Equal(t, a, leader.UserID)
		assert.Equal(t, RoleMember, team.Members[1].Role)
	})

	t.Run("explicit leader", func(t *testing.T) {
		team, err := BuildTeam(opID, []id.UserID{a, b}, &b, now)
		require.NoError(t, err)
		leader, _ := team.Leader()
		assert.Equal(t, b, leader.UserID)
	})

	t.Run("leader outside the team is rejected", func(t *testing.T) {
		_, err := BuildTeam(opID, []id.UserID{a}, &c, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("empty team has no leader", func(t *testing.T) {
		team, err := BuildTeam(opID, nil, nil, now)
		require.NoError(t, err)
		_, ok := team.Leader()
		assert.False(t, ok)
	})
}
