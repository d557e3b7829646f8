package geodata

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb/geojson"

	id "reliefops/pkg/domain"
)

// Seeder accepts zones from a GIS export.
type Seeder interface {
	Upsert(ctx context.Context, zone *FloodZone) error
}

// ParseFeatureCollection reads a GeoJSON FeatureCollection whose features
// carry id, name and risk_level properties.
func ParseFeatureCollection(r io.Reader, now time.Time) ([]*FloodZone, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read flood zones: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decode flood zones: %w", err)
	}

	zones := make([]*FloodZone, 0, len(fc.Features))
	for i, f := range fc.Features {
		zoneID, err := id.ParseFloodZoneID(f.Properties.MustString("id", ""))
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		name := f.Properties.MustString("name", "")
		if name == "" {
			return nil, fmt.Errorf("feature %d: name is required", i)
		}
		zones = append(zones, &FloodZone{
			ID:        zoneID,
			Name:      name,
			RiskLevel: f.Properties.MustString("risk_level", "unknown"),
			Boundary:  f.Geometry,
			CreatedAt: now,
		})
	}
	return zones, nil
}

// Seed parses r and upserts every zone into dst.
func Seed(ctx context.Context, dst Seeder, r io.Reader, now time.Time) (int, error) {
	zones, err := ParseFeatureCollection(r, now)
	if err != nil {
		return 0, err
	}
	for _, z := range zones {
		if err := dst.Upsert(ctx, z); err != nil {
			return 0, fmt.Errorf("seed flood zone %s: %w", z.ID, err)
		}
	}
	return len(zones), nil
}
