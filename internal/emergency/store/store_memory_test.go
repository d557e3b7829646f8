package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefops/internal/emergency/models"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
)

func newTestCall(t *testing.T, code string, receivedAt time.Time) *models.Call {
	t.Helper()
	call, err := models.NewCall(id.EmergencyCallID(uuid.New()), models.NewCallParams{
		CallerPhone: "+40 721 000 111",
		CallNumber:  models.CallNumberGeneral,
		Description: "water rising in the basement",
		ReceivedBy:  id.UserID(uuid.New()),
	}, receivedAt)
	require.NoError(t, err)
	call.Code = code
	return call
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("duplicate code conflicts", func(t *testing.T) {
		s := NewInMemoryStore()
		require.NoError(t, s.Create(ctx, newTestCall(t, "ECL-2026-00001", now)))
		assert.ErrorIs(t, s.Create(ctx, newTestCall(t, "ECL-2026-00001", now)), sentinel.ErrConflict)
	})

	t.Run("unknown call", func(t *testing.T) {
		_, err := NewInMemoryStore().FindByID(ctx, id.EmergencyCallID(uuid.New()))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("transition is conditional on status", func(t *testing.T) {
		s := NewInMemoryStore()
		call := newTestCall(t, "ECL-2026-00002", now)
		require.NoError(t, s.Create(ctx, call))

		tr, err := call.Triage(models.UrgencyHigh, nil, now.Add(time.Minute))
		require.NoError(t, err)
		updated, err := s.ApplyTransition(ctx, call.ID, tr)
		require.NoError(t, err)
		assert.Equal(t, models.StatusTriaged, updated.Status)
		assert.Equal(t, models.UrgencyHigh, updated.Urgency)
		require.NotNil(t, updated.TriagedAt)

		_, err = s.ApplyTransition(ctx, call.ID, tr)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("rescue link is set once", func(t *testing.T) {
		s := NewInMemoryStore()
		call := newTestCall(t, "ECL-2026-00003", now)
		require.NoError(t, s.Create(ctx, call))

		first := id.RescueOperationID(uuid.New())
		tr, err := call.Dispatch(id.OrganizationID(uuid.New()), now)
		require.NoError(t, err)
		tr.RescueOperationID = &first
		updated, err := s.ApplyTransition(ctx, call.ID, tr)
		require.NoError(t, err)

		second := id.RescueOperationID(uuid.New())
		resolve, err := updated.Resolve(nil, now)
		require.NoError(t, err)
		resolve.RescueOperationID = &second
		resolved, err := s.ApplyTransition(ctx, call.ID, resolve)
		require.NoError(t, err)
		require.NotNil(t, resolved.RescueOperationID)
		assert.Equal(t, first, *resolved.RescueOperationID)
	})

	t.Run("list newest first with filters", func(t *testing.T) {
		s := NewInMemoryStore()
		older := newTestCall(t, "ECL-2026-00004", now)
		newer := newTestCall(t, "ECL-2026-00005", now.Add(time.Hour))
		require.NoError(t, s.Create(ctx, older))
		require.NoError(t, s.Create(ctx, newer))

		calls, err := s.List(ctx, models.ListFilter{})
		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.Equal(t, newer.ID, calls[0].ID)

		calls, err = s.List(ctx, models.ListFilter{Status: models.StatusTriaged})
		require.NoError(t, err)
		assert.Empty(t, calls)
	})

	t.Run("rollback restores snapshot", func(t *testing.T) {
		s := NewInMemoryStore()
		restore := s.Snapshot()
		require.NoError(t, s.Create(ctx, newTestCall(t, "ECL-2026-00006", now)))
		restore()

		calls, err := s.List(ctx, models.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, calls)
	})
}
