// Package geodata is the read-only flood-zone directory maintained by the
// GIS team. Rescue operations and emergency calls only need to know a zone
// exists; boundaries are carried through untouched.
package geodata

import (
	"context"
	"time"

	"github.com/paulmach/orb"

	id "reliefops/pkg/domain"
)

// FloodZone is a named area at risk of flooding.
type FloodZone struct {
	ID        id.FloodZoneID `json:"id"`
	Name      string         `json:"name"`
	RiskLevel string         `json:"risk_level"`
	Boundary  orb.Geometry   `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

// Directory looks up flood zones. Implementations return sentinel.ErrNotFound
// for unknown ids.
type Directory interface {
	FindByID(ctx context.Context, zoneID id.FloodZoneID) (*FloodZone, error)
}
