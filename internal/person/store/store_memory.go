package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"reliefops/internal/person/models"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
)

// InMemoryPersonStore keeps persons in a map guarded by one lock.
type InMemoryPersonStore struct {
	mu      sync.RWMutex
	persons map[id.PersonID]*models.Person
	codes   map[string]id.PersonID
}

func NewInMemoryPersonStore() *InMemoryPersonStore {
	return &InMemoryPersonStore{
		persons: make(map[id.PersonID]*models.Person),
		codes:   make(map[string]id.PersonID),
	}
}

// Snapshot implements tx.Snapshotter.
func (s *InMemoryPersonStore) Snapshot() func() {
	s.mu.RLock()
	saved := make(map[id.PersonID]*models.Person, len(s.persons))
	for k, v := range s.persons {
		saved[k] = clonePerson(v)
	}
	codes := maps.Clone(s.codes)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		s.persons = saved
		s.codes = codes
		s.mu.Unlock()
	}
}

func (s *InMemoryPersonStore) Create(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[p.Code]; taken {
		return fmt.Errorf("person code %s: %w", p.Code, sentinel.ErrConflict)
	}
	s.persons[p.ID] = clonePerson(p)
	s.codes[p.Code] = p.ID
	return nil
}

func (s *InMemoryPersonStore) FindByID(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[personID]
	if !ok {
		return nil, fmt.Errorf("person %s: %w", personID, sentinel.ErrNotFound)
	}
	return clonePerson(p), nil
}

// FindByIDForUpdate is FindByID; the memory runner already serializes
// transactions.
func (s *InMemoryPersonStore) FindByIDForUpdate(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	return s.FindByID(ctx, personID)
}

func (s *InMemoryPersonStore) PlaceInShelter(_ context.Context, personID id.PersonID, shelterID id.ShelterID, now time.Time) error {
	return s.mutate(personID, func(p *models.Person) error {
		p.CurrentShelterID = &shelterID
		p.Status = models.StatusSheltered
		p.UpdatedAt = now
		return nil
	})
}

func (s *InMemoryPersonStore) ClearShelter(_ context.Context, personID id.PersonID, from id.ShelterID, status models.Status, now time.Time) error {
	return s.mutate(personID, func(p *models.Person) error {
		if p.CurrentShelterID == nil || *p.CurrentShelterID != from {
			return fmt.Errorf("person %s moved: %w", personID, sentinel.ErrInvalidState)
		}
		p.CurrentShelterID = nil
		p.Status = status
		p.UpdatedAt = now
		return nil
	})
}

func (s *InMemoryPersonStore) SetFamilyGroup(_ context.Context, personID id.PersonID, groupID id.FamilyGroupID, now time.Time) error {
	return s.mutate(personID, func(p *models.Person) error {
		p.FamilyGroupID = &groupID
		p.UpdatedAt = now
		return nil
	})
}

func (s *InMemoryPersonStore) mutate(personID id.PersonID, fn func(*models.Person) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[personID]
	if !ok {
		return fmt.Errorf("person %s: %w", personID, sentinel.ErrNotFound)
	}
	next := clonePerson(p)
	if err := fn(next); err != nil {
		return err
	}
	s.persons[personID] = next
	return nil
}

func clonePerson(p *models.Person) *models.Person {
	cp := *p
	cp.Needs = slices.Clone(p.Needs)
	if p.DateOfBirth != nil {
		d := *p.DateOfBirth
		cp.DateOfBirth = &d
	}
	if p.CurrentShelterID != nil {
		v := *p.CurrentShelterID
		cp.CurrentShelterID = &v
	}
	if p.FamilyGroupID != nil {
		v := *p.FamilyGroupID
		cp.FamilyGroupID = &v
	}
	return &cp
}

// InMemoryFamilyGroupStore keeps family groups in a map.
type InMemoryFamilyGroupStore struct {
	mu     sync.RWMutex
	groups map[id.FamilyGroupID]*models.FamilyGroup
	codes  map[string]id.FamilyGroupID
}

func NewInMemoryFamilyGroupStore() *InMemoryFamilyGroupStore {
	return &InMemoryFamilyGroupStore{
		groups: make(map[id.FamilyGroupID]*models.FamilyGroup),
		codes:  make(map[string]id.FamilyGroupID),
	}
}

// Snapshot implements tx.Snapshotter.
func (s *InMemoryFamilyGroupStore) Snapshot() func() {
	s.mu.RLock()
	saved := make(map[id.FamilyGroupID]*models.FamilyGroup, len(s.groups))
	for k, v := range s.groups {
		saved[k] = cloneGroup(v)
	}
	codes := maps.Clone(s.codes)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		s.groups = saved
		s.codes = codes
		s.mu.Unlock()
	}
}

func (s *InMemoryFamilyGroupStore) Create(_ context.Context, g *models.FamilyGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[g.Code]; taken {
		return fmt.Errorf("family group code %s: %w", g.Code, sentinel.ErrConflict)
	}
	s.groups[g.ID] = cloneGroup(g)
	s.codes[g.Code] = g.ID
	return nil
}

func (s *InMemoryFamilyGroupStore) FindByID(_ context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("family group %s: %w", groupID, sentinel.ErrNotFound)
	}
	return cloneGroup(g), nil
}

func (s *InMemoryFamilyGroupStore) IncrementSize(_ context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error) {
	return s.adjust(groupID, +1)
}

func (s *InMemoryFamilyGroupStore) DecrementSize(_ context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error) {
	return s.adjust(groupID, -1)
}

func (s *InMemoryFamilyGroupStore) adjust(groupID id.FamilyGroupID, delta int) (*models.FamilyGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("family group %s: %w", groupID, sentinel.ErrNotFound)
	}
	g.FamilySize = max(g.FamilySize+delta, 0)
	return cloneGroup(g), nil
}

func cloneGroup(g *models.FamilyGroup) *models.FamilyGroup {
	cp := *g
	if g.HeadPersonID != nil {
		v := *g.HeadPersonID
		cp.HeadPersonID = &v
	}
	return &cp
}
