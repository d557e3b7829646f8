package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"reliefops/internal/geodata"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/platform/tx"
)

// PostgresDirectory reads the flood_zones table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) FindByID(ctx context.Context, zoneID id.FloodZoneID) (*geodata.FloodZone, error) {
	const query = `SELECT id, name, risk_level, boundary, created_at FROM flood_zones WHERE id = $1`
	var (
		zone     geodata.FloodZone
		rawID    uuid.UUID
		boundary []byte
	)
	err := tx.Conn(ctx, d.db).QueryRowContext(ctx, query, uuid.UUID(zoneID)).
		Scan(&rawID, &zone.Name, &zone.RiskLevel, &boundary, &zone.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("flood zone %s: %w", zoneID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find flood zone: %w", err)
	}
	zone.ID = id.FloodZoneID(rawID)
	if len(boundary) > 0 {
		g, err := geojson.UnmarshalGeometry(boundary)
		if err != nil {
			return nil, fmt.Errorf("decode flood zone boundary: %w", err)
		}
		zone.Boundary = g.Geometry()
	}
	return &zone, nil
}

// Upsert loads a zone from the GIS export.
func (d *PostgresDirectory) Upsert(ctx context.Context, zone *geodata.FloodZone) error {
	var boundary []byte
	if zone.Boundary != nil {
		raw, err := geojson.NewGeometry(zone.Boundary).MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode flood zone boundary: %w", err)
		}
		boundary = raw
	}
	const query = `
		INSERT INTO flood_zones (id, name, risk_level, boundary, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, risk_level = EXCLUDED.risk_level, boundary = EXCLUDED.boundary
	`
	_, err := tx.Conn(ctx, d.db).ExecContext(ctx, query,
		uuid.UUID(zone.ID), zone.Name, zone.RiskLevel, boundary, zone.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert flood zone: %w", err)
	}
	return nil
}
