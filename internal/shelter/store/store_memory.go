package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"reliefops/internal/shelter/models"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
)

// InMemoryStore mirrors the Postgres store's atomic update semantics. Every
// mutation happens under one lock, so increments never interleave.
type InMemoryStore struct {
	mu       sync.RWMutex
	shelters map[id.ShelterID]*models.Shelter
	codes    map[string]id.ShelterID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		shelters: make(map[id.ShelterID]*models.Shelter),
		codes:    make(map[string]id.ShelterID),
	}
}

// Snapshot implements tx.Snapshotter.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	saved := make(map[id.ShelterID]*models.Shelter, len(s.shelters))
	for k, v := range s.shelters {
		saved[k] = clone(v)
	}
	codes := maps.Clone(s.codes)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		s.shelters = saved
		s.codes = codes
		s.mu.Unlock()
	}
}

func (s *InMemoryStore) Create(_ context.Context, shelter *models.Shelter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[shelter.Code]; taken {
		return fmt.Errorf("shelter code %s: %w", shelter.Code, sentinel.ErrConflict)
	}
	s.shelters[shelter.ID] = clone(shelter)
	s.codes[shelter.Code] = shelter.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, shelterID id.ShelterID) (*models.Shelter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, err := s.live(shelterID)
	if err != nil {
		return nil, err
	}
	return clone(sh), nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter) ([]*models.Shelter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Shelter, 0, len(s.shelters))
	for _, sh := range s.shelters {
		if sh.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && sh.Status != filter.Status {
			continue
		}
		if filter.FloodZoneID != nil && (sh.FloodZoneID == nil || *sh.FloodZoneID != *filter.FloodZoneID) {
			continue
		}
		out = append(out, clone(sh))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *InMemoryStore) IncrementOccupancy(_ context.Context, shelterID id.ShelterID, now time.Time) (*models.Shelter, models.Status, error) {
	return s.adjust(shelterID, +1, now)
}

func (s *InMemoryStore) DecrementOccupancy(_ context.Context, shelterID id.ShelterID, now time.Time) (*models.Shelter, models.Status, error) {
	return s.adjust(shelterID, -1, now)
}

func (s *InMemoryStore) adjust(shelterID id.ShelterID, delta int, now time.Time) (*models.Shelter, models.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.live(shelterID)
	if err != nil {
		return nil, "", err
	}
	previous := sh.Status
	sh.CurrentOccupancy = max(sh.CurrentOccupancy+delta, 0)
	if sh.Status.IsOperating() {
		sh.Status = models.CapacityStatus(sh.CurrentOccupancy, sh.Capacity)
	}
	sh.UpdatedAt = now
	return clone(sh), previous, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, shelterID id.ShelterID, from []models.Status, to models.Status, now time.Time) (*models.Shelter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.live(shelterID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, sh.Status) {
		return nil, fmt.Errorf("shelter %s is %s: %w", shelterID, sh.Status, sentinel.ErrInvalidState)
	}
	if to == models.StatusOpen {
		to = models.CapacityStatus(sh.CurrentOccupancy, sh.Capacity)
	}
	sh.Status = to
	sh.UpdatedAt = now
	return clone(sh), nil
}

func (s *InMemoryStore) SoftDelete(_ context.Context, shelterID id.ShelterID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, err := s.live(shelterID)
	if err != nil {
		return err
	}
	if sh.CurrentOccupancy > 0 {
		return fmt.Errorf("shelter %s occupied: %w", shelterID, sentinel.ErrInvalidState)
	}
	sh.DeletedAt = &now
	sh.UpdatedAt = now
	return nil
}

// live returns the stored pointer; callers hold the lock.
func (s *InMemoryStore) live(shelterID id.ShelterID) (*models.Shelter, error) {
	sh, ok := s.shelters[shelterID]
	if !ok || sh.DeletedAt != nil {
		return nil, fmt.Errorf("shelter %s: %w", shelterID, sentinel.ErrNotFound)
	}
	return sh, nil
}

func clone(sh *models.Shelter) *models.Shelter {
	cp := *sh
	if sh.FloodZoneID != nil {
		z := *sh.FloodZoneID
		cp.FloodZoneID = &z
	}
	if sh.DeletedAt != nil {
		d := *sh.DeletedAt
		cp.DeletedAt = &d
	}
	return &cp
}
