package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"reliefops/internal/emergency/models"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	calls map[id.EmergencyCallID]*models.Call
	codes map[string]id.EmergencyCallID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		calls: make(map[id.EmergencyCallID]*models.Call),
		codes: make(map[string]id.EmergencyCallID),
	}
}

// Snapshot implements tx.Snapshotter.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	calls := make(map[id.EmergencyCallID]*models.Call, len(s.calls))
	for k, v := range s.calls {
		calls[k] = clone(v)
	}
	codes := maps.Clone(s.codes)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		s.calls, s.codes = calls, codes
		s.mu.Unlock()
	}
}

func (s *InMemoryStore) Create(_ context.Context, call *models.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[call.Code]; taken {
		return fmt.Errorf("emergency call code %s: %w", call.Code, sentinel.ErrConflict)
	}
	s.calls[call.ID] = clone(call)
	s.codes[call.Code] = call.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, callID id.EmergencyCallID) (*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	call, ok := s.calls[callID]
	if !ok {
		return nil, fmt.Errorf("emergency call %s: %w", callID, sentinel.ErrNotFound)
	}
	return clone(call), nil
}

// List returns matching calls, newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter) ([]*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Call, 0, len(s.calls))
	for _, call := range s.calls {
		if filter.Status != "" && call.Status != filter.Status {
			continue
		}
		if filter.Urgency != "" && call.Urgency != filter.Urgency {
			continue
		}
		out = append(out, clone(call))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.After(out[j].ReceivedAt)
		}
		return out[i].Code > out[j].Code
	})
	return out, nil
}

// ApplyTransition applies t only while the call is in one of t.From.
func (s *InMemoryStore) ApplyTransition(_ context.Context, callID id.EmergencyCallID, t models.Transition) (*models.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call, ok := s.calls[callID]
	if !ok {
		return nil, fmt.Errorf("emergency call %s: %w", callID, sentinel.ErrNotFound)
	}
	if !slices.Contains(t.From, call.Status) {
		return nil, fmt.Errorf("emergency call %s is %s: %w", callID, call.Status, sentinel.ErrInvalidState)
	}
	call.Status = t.To
	if t.Urgency != nil {
		call.Urgency = *t.Urgency
	}
	if t.Notes != nil {
		call.Notes = *t.Notes
	}
	if t.DispatchedToOrgID != nil {
		call.DispatchedToOrgID = clonePtr(t.DispatchedToOrgID)
	}
	if t.RescueOperationID != nil && call.RescueOperationID == nil {
		call.RescueOperationID = clonePtr(t.RescueOperationID)
	}
	if t.DuplicateOfID != nil {
		call.DuplicateOfID = clonePtr(t.DuplicateOfID)
	}
	if t.TriagedAt != nil {
		call.TriagedAt = clonePtr(t.TriagedAt)
	}
	if t.DispatchedAt != nil {
		call.DispatchedAt = clonePtr(t.DispatchedAt)
	}
	if t.ResolvedAt != nil {
		call.ResolvedAt = clonePtr(t.ResolvedAt)
	}
	call.UpdatedAt = t.UpdatedAt
	return clone(call), nil
}

func clone(c *models.Call) *models.Call {
	cp := *c
	cp.CallerLocation = clonePtr(c.CallerLocation)
	cp.FloodZoneID = clonePtr(c.FloodZoneID)
	cp.DispatchedToOrgID = clonePtr(c.DispatchedToOrgID)
	cp.RescueOperationID = clonePtr(c.RescueOperationID)
	cp.DuplicateOfID = clonePtr(c.DuplicateOfID)
	cp.TriagedAt = clonePtr(c.TriagedAt)
	cp.DispatchedAt = clonePtr(c.DispatchedAt)
	cp.ResolvedAt = clonePtr(c.ResolvedAt)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
