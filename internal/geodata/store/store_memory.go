package store

import (
	"context"
	"fmt"
	"sync"

	"reliefops/internal/geodata"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
)

// InMemoryDirectory serves flood zones loaded at startup or by tests.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	zones map[id.FloodZoneID]*geodata.FloodZone
}

func NewInMemoryDirectory(zones ...*geodata.FloodZone) *InMemoryDirectory {
	d := &InMemoryDirectory{zones: make(map[id.FloodZoneID]*geodata.FloodZone)}
	for _, z := range zones {
		d.zones[z.ID] = z
	}
	return d
}

// Upsert adds or replaces a zone.
func (d *InMemoryDirectory) Upsert(_ context.Context, zone *geodata.FloodZone) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *zone
	d.zones[zone.ID] = &cp
	return nil
}

func (d *InMemoryDirectory) FindByID(_ context.Context, zoneID id.FloodZoneID) (*geodata.FloodZone, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	z, ok := d.zones[zoneID]
	if !ok {
		return nil, fmt.Errorf("flood zone %s: %w", zoneID, sentinel.ErrNotFound)
	}
	cp := *z
	return &cp, nil
}
