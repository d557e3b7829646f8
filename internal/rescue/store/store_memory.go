package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"reliefops/internal/rescue/models"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
)

// InMemoryStore keeps operations and their teams under one lock.
type InMemoryStore struct {
	mu    sync.RWMutex
	ops   map[id.RescueOperationID]*models.Operation
	codes map[string]id.RescueOperationID
	teams map[id.RescueOperationID][]models.TeamMember
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		ops:   make(map[id.RescueOperationID]*models.Operation),
		codes: make(map[string]id.RescueOperationID),
		teams: make(map[id.RescueOperationID][]models.TeamMember),
	}
}

// Snapshot implements tx.Snapshotter.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	ops := make(map[id.RescueOperationID]*models.Operation, len(s.ops))
	for k, v := range s.ops {
		ops[k] = clone(v)
	}
	codes := maps.Clone(s.codes)
	teams := make(map[id.RescueOperationID][]models.TeamMember, len(s.teams))
	for k, v := range s.teams {
		teams[k] = slices.Clone(v)
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		s.ops, s.codes, s.teams = ops, codes, teams
		s.mu.Unlock()
	}
}

func (s *InMemoryStore) Create(_ context.Context, op *models.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[op.Code]; taken {
		return fmt.Errorf("rescue operation code %s: %w", op.Code, sentinel.ErrConflict)
	}
	s.ops[op.ID] = clone(op)
	s.codes[op.Code] = op.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, opID id.RescueOperationID) (*models.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, err := s.live(opID)
	if err != nil {
		return nil, err
	}
	return clone(op), nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter) ([]*models.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Operation, 0, len(s.ops))
	for _, op := range s.ops {
		if op.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && op.Status != filter.Status {
			continue
		}
		if filter.FloodZoneID != nil && op.FloodZoneID != *filter.FloodZoneID {
			continue
		}
		out = append(out, clone(op))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code > out[j].Code })
	return out, nil
}

// ApplyTransition applies t only while the operation is in one of t.From.
// Timestamps already set are overwritten, as in the Postgres store.
func (s *InMemoryStore) ApplyTransition(_ context.Context, opID id.RescueOperationID, t models.Transition) (*models.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, err := s.live(opID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(t.From, op.Status) {
		return nil, fmt.Errorf("rescue operation %s is %s: %w", opID, op.Status, sentinel.ErrInvalidState)
	}
	op.Status = t.To
	if t.PersonsRescued != nil {
		op.PersonsRescued = *t.PersonsRescued
	}
	if t.Notes != nil {
		op.Notes = *t.Notes
	}
	if t.DispatchedAt != nil {
		op.DispatchedAt = t.DispatchedAt
	}
	if t.ArrivedAt != nil {
		op.ArrivedAt = t.ArrivedAt
	}
	if t.CompletedAt != nil {
		op.CompletedAt = t.CompletedAt
	}
	op.UpdatedAt = t.UpdatedAt
	return clone(op), nil
}

// ReplaceTeam swaps the whole membership while the operation is in one of
// from, and sets team_size to the new member count.
func (s *InMemoryStore) ReplaceTeam(_ context.Context, opID id.RescueOperationID, from []models.Status, members []models.TeamMember, now time.Time) (*models.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, err := s.live(opID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, op.Status) {
		return nil, fmt.Errorf("rescue operation %s is %s: %w", opID, op.Status, sentinel.ErrInvalidState)
	}
	s.teams[opID] = slices.Clone(members)
	op.TeamSize = len(members)
	op.UpdatedAt = now
	return clone(op), nil
}

func (s *InMemoryStore) Team(_ context.Context, opID id.RescueOperationID) ([]models.TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.live(opID); err != nil {
		return nil, err
	}
	return slices.Clone(s.teams[opID]), nil
}

func (s *InMemoryStore) SoftDelete(_ context.Context, opID id.RescueOperationID, from []models.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, err := s.live(opID)
	if err != nil {
		return err
	}
	if !slices.Contains(from, op.Status) {
		return fmt.Errorf("rescue operation %s is %s: %w", opID, op.Status, sentinel.ErrInvalidState)
	}
	op.DeletedAt = &now
	op.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) live(opID id.RescueOperationID) (*models.Operation, error) {
	op, ok := s.ops[opID]
	if !ok || op.DeletedAt != nil {
		return nil, fmt.Errorf("rescue operation %s: %w", opID, sentinel.ErrNotFound)
	}
	return op, nil
}

func clone(op *models.Operation) *models.Operation {
	cp := *op
	cp.EmergencyCallID = clonePtr(op.EmergencyCallID)
	cp.DispatchedAt = clonePtr(op.DispatchedAt)
	cp.ArrivedAt = clonePtr(op.ArrivedAt)
	cp.CompletedAt = clonePtr(op.CompletedAt)
	cp.DeletedAt = clonePtr(op.DeletedAt)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
