package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/paulmach/orb"

	"reliefops/internal/platform/postgres"
	"reliefops/internal/shelter/models"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/platform/tx"
)

const shelterColumns = `id, code, name, flood_zone_id, lon, lat, capacity, current_occupancy, status, created_at, updated_at, deleted_at`

// operatingStatusSQL recomputes the capacity status from the new occupancy
// expression within the same UPDATE, so concurrent changes each see the
// row as left by the previous one.
func operatingStatusSQL(newOccupancy string) string {
	return fmt.Sprintf(`CASE WHEN status IN ('open', 'full', 'overcrowded') THEN
			CASE WHEN %[1]s < capacity THEN 'open' WHEN %[1]s = capacity THEN 'full' ELSE 'overcrowded' END
		ELSE status END`, newOccupancy)
}

// PostgresStore persists shelters.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sh *models.Shelter) error {
	const query = `INSERT INTO shelters (` + shelterColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(sh.ID), sh.Code, sh.Name, nullableZone(sh.FloodZoneID), sh.Location.Lon(), sh.Location.Lat(),
		sh.Capacity, sh.CurrentOccupancy, string(sh.Status), sh.CreatedAt, sh.UpdatedAt, sh.DeletedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "shelters_code_key") {
			return fmt.Errorf("shelter code %s: %w", sh.Code, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert shelter: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, shelterID id.ShelterID) (*models.Shelter, error) {
	const query = `SELECT ` + shelterColumns + ` FROM shelters WHERE id = $1 AND deleted_at IS NULL`
	sh, err := scanShelter(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(shelterID)))
	if err != nil {
		return nil, notFound(err, shelterID, "find shelter")
	}
	return sh, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Shelter, error) {
	var (
		where = []string{"deleted_at IS NULL"}
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.FloodZoneID != nil {
		args = append(args, uuid.UUID(*filter.FloodZoneID))
		where = append(where, fmt.Sprintf("flood_zone_id = $%d", len(args)))
	}
	query := `SELECT ` + shelterColumns + ` FROM shelters WHERE ` + strings.Join(where, " AND ") + ` ORDER BY code`

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shelters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Shelter
	for rows.Next() {
		sh, err := scanShelter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shelter: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *PostgresStore) IncrementOccupancy(ctx context.Context, shelterID id.ShelterID, now time.Time) (*models.Shelter, models.Status, error) {
	return s.adjustOccupancy(ctx, shelterID, "current_occupancy + 1", now, "increment occupancy")
}

func (s *PostgresStore) DecrementOccupancy(ctx context.Context, shelterID id.ShelterID, now time.Time) (*models.Shelter, models.Status, error) {
	return s.adjustOccupancy(ctx, shelterID, "GREATEST(current_occupancy - 1, 0)", now, "decrement occupancy")
}

// adjustOccupancy locks the row through the prev subquery so the status it
// returns is the one this UPDATE replaced.
func (s *PostgresStore) adjustOccupancy(ctx context.Context, shelterID id.ShelterID, newOccupancy string, now time.Time, op string) (*models.Shelter, models.Status, error) {
	query := `UPDATE shelters SET
			current_occupancy = ` + newOccupancy + `,
			status = ` + operatingStatusSQL(newOccupancy) + `,
			updated_at = $2
		FROM (SELECT id AS prev_id, status AS prev_status FROM shelters
			WHERE id = $1 AND deleted_at IS NULL FOR UPDATE) AS prev
		WHERE id = prev.prev_id
		RETURNING ` + shelterColumns + `, prev.prev_status`

	var previous string
	sh, err := scanShelter(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(shelterID), now), &previous)
	if err != nil {
		return nil, "", notFound(err, shelterID, op)
	}
	return sh, models.Status(previous), nil
}

// UpdateStatus moves the shelter to `to` only while its status is one of
// from. Opening derives open/full/overcrowded from the current occupancy.
func (s *PostgresStore) UpdateStatus(ctx context.Context, shelterID id.ShelterID, from []models.Status, to models.Status, now time.Time) (*models.Shelter, error) {
	args := []any{uuid.UUID(shelterID), pq.Array(statusStrings(from)), now}
	statusExpr := `CASE WHEN current_occupancy < capacity THEN 'open' WHEN current_occupancy = capacity THEN 'full' ELSE 'overcrowded' END`
	if to != models.StatusOpen {
		args = append(args, string(to))
		statusExpr = "$4"
	}
	query := `UPDATE shelters SET status = ` + statusExpr + `, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL AND status = ANY($2)
		RETURNING ` + shelterColumns

	sh, err := scanShelter(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, args...))
	if err == nil {
		return sh, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update shelter status: %w", err)
	}
	if _, findErr := s.FindByID(ctx, shelterID); findErr != nil {
		return nil, findErr
	}
	return nil, fmt.Errorf("shelter %s status changed concurrently: %w", shelterID, sentinel.ErrInvalidState)
}

func (s *PostgresStore) SoftDelete(ctx context.Context, shelterID id.ShelterID, now time.Time) error {
	const query = `UPDATE shelters SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL AND current_occupancy = 0`
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(shelterID), now)
	if err != nil {
		return fmt.Errorf("delete shelter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete shelter rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, shelterID); err != nil {
		return err
	}
	return fmt.Errorf("shelter %s occupied: %w", shelterID, sentinel.ErrInvalidState)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanShelter reads shelterColumns followed by any extra columns.
func scanShelter(row rowScanner, extra ...any) (*models.Shelter, error) {
	var (
		sh       models.Shelter
		rawID    uuid.UUID
		zone     uuid.NullUUID
		lon, lat float64
		status   string
		deleted  sql.NullTime
	)
	dest := []any{&rawID, &sh.Code, &sh.Name, &zone, &lon, &lat, &sh.Capacity,
		&sh.CurrentOccupancy, &status, &sh.CreatedAt, &sh.UpdatedAt, &deleted}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	sh.ID = id.ShelterID(rawID)
	if zone.Valid {
		z := id.FloodZoneID(zone.UUID)
		sh.FloodZoneID = &z
	}
	sh.Location = orb.Point{lon, lat}
	sh.Status = models.Status(status)
	if deleted.Valid {
		sh.DeletedAt = &deleted.Time
	}
	return &sh, nil
}

func notFound(err error, shelterID id.ShelterID, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("shelter %s: %w", shelterID, sentinel.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullableZone(z *id.FloodZoneID) any {
	if z == nil {
		return nil
	}
	return uuid.UUID(*z)
}

func statusStrings(in []models.Status) []string {
	out := make([]string, len(in))
	for i, st := range in {
		out[i] = string(st)
	}
	return out
}
