package geodata

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	dErrors "reliefops/pkg/domain-errors"
)

// PointFromGeoJSON validates a GeoJSON geometry as a WGS84 point.
func PointFromGeoJSON(g *geojson.Geometry, field string) (orb.Point, error) {
	if g == nil || g.Coordinates == nil {
		return orb.Point{}, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	p, ok := g.Coordinates.(orb.Point)
	if !ok {
		return orb.Point{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("%s must be a GeoJSON Point, got %s", field, g.Coordinates.GeoJSONType()))
	}
	if err := ValidatePoint(p, field); err != nil {
		return orb.Point{}, err
	}
	return p, nil
}

// ValidatePoint checks longitude and latitude ranges.
func ValidatePoint(p orb.Point, field string) error {
	if p.Lon() < -180 || p.Lon() > 180 || p.Lat() < -90 || p.Lat() > 90 {
		return dErrors.New(dErrors.CodeValidation, field+" coordinates are out of range")
	}
	return nil
}

// ToGeoJSON wraps p for JSON responses. A nil p yields nil.
func ToGeoJSON(p *orb.Point) *geojson.Geometry {
	if p == nil {
		return nil
	}
	return geojson.NewGeometry(*p)
}
