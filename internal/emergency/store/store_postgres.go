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

	"reliefops/internal/emergency/models"
	"reliefops/internal/platform/postgres"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/platform/tx"
)

const callColumns = `id, code, caller_phone, caller_name, call_number, caller_lon, caller_lat, flood_zone_id,
	description, urgency, status, received_by_user_id, dispatched_to_org_id, rescue_operation_id,
	duplicate_of_id, notes, received_at, triaged_at, dispatched_at, resolved_at, updated_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, call *models.Call) error {
	const query = `INSERT INTO emergency_calls (` + callColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	var lon, lat sql.NullFloat64
	if call.CallerLocation != nil {
		lon = sql.NullFloat64{Float64: call.CallerLocation.Lon(), Valid: true}
		lat = sql.NullFloat64{Float64: call.CallerLocation.Lat(), Valid: true}
	}
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(call.ID), call.Code, call.CallerPhone, call.CallerName, string(call.CallNumber), lon, lat,
		nullableUUID(call.FloodZoneID), call.Description, string(call.Urgency), string(call.Status),
		uuid.UUID(call.ReceivedByUserID), nullableUUID(call.DispatchedToOrgID), nullableUUID(call.RescueOperationID),
		nullableUUID(call.DuplicateOfID), call.Notes, call.ReceivedAt, call.TriagedAt, call.DispatchedAt,
		call.ResolvedAt, call.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "emergency_calls_code_key") {
			return fmt.Errorf("emergency call code %s: %w", call.Code, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert emergency call: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, callID id.EmergencyCallID) (*models.Call, error) {
	const query = `SELECT ` + callColumns + ` FROM emergency_calls WHERE id = $1`
	call, err := scanCall(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(callID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("emergency call %s: %w", callID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find emergency call: %w", err)
	}
	return call, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Call, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Urgency != "" {
		args = append(args, string(filter.Urgency))
		where = append(where, fmt.Sprintf("urgency = $%d", len(args)))
	}
	query := `SELECT ` + callColumns + ` FROM emergency_calls`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY received_at DESC, code DESC`

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list emergency calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan emergency call: %w", err)
		}
		out = append(out, call)
	}
	return out, rows.Err()
}

// ApplyTransition is a single UPDATE guarded by the expected statuses. The
// rescue operation id is written only while still unset.
func (s *PostgresStore) ApplyTransition(ctx context.Context, callID id.EmergencyCallID, t models.Transition) (*models.Call, error) {
	const query = `UPDATE emergency_calls SET
			status = $3,
			urgency = COALESCE($4, urgency),
			notes = COALESCE($5, notes),
			dispatched_to_org_id = COALESCE($6, dispatched_to_org_id),
			rescue_operation_id = COALESCE(rescue_operation_id, $7),
			duplicate_of_id = COALESCE($8, duplicate_of_id),
			triaged_at = COALESCE($9, triaged_at),
			dispatched_at = COALESCE($10, dispatched_at),
			resolved_at = COALESCE($11, resolved_at),
			updated_at = $12
		WHERE id = $1 AND status = ANY($2)
		RETURNING ` + callColumns
	var urgency *string
	if t.Urgency != nil {
		u := string(*t.Urgency)
		urgency = &u
	}
	call, err := scanCall(tx.Conn(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(callID), pq.Array(statusStrings(t.From)), string(t.To), urgency, t.Notes,
		nullableUUID(t.DispatchedToOrgID), nullableUUID(t.RescueOperationID), nullableUUID(t.DuplicateOfID),
		t.TriagedAt, t.DispatchedAt, t.ResolvedAt, t.UpdatedAt))
	if err == nil {
		return call, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("apply emergency call transition: %w", err)
	}
	if _, findErr := s.FindByID(ctx, callID); findErr != nil {
		return nil, findErr
	}
	return nil, fmt.Errorf("emergency call %s status changed concurrently: %w", callID, sentinel.ErrInvalidState)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*models.Call, error) {
	var (
		call                                models.Call
		rawID, receivedBy                   uuid.UUID
		zone, org, rescue, duplicate        uuid.NullUUID
		lon, lat                            sql.NullFloat64
		callNumber, urgency, status         string
		triagedAt, dispatchedAt, resolvedAt sql.NullTime
	)
	if err := row.Scan(&rawID, &call.Code, &call.CallerPhone, &call.CallerName, &callNumber, &lon, &lat, &zone,
		&call.Description, &urgency, &status, &receivedBy, &org, &rescue, &duplicate, &call.Notes,
		&call.ReceivedAt, &triagedAt, &dispatchedAt, &resolvedAt, &call.UpdatedAt); err != nil {
		return nil, err
	}
	call.ID = id.EmergencyCallID(rawID)
	call.ReceivedByUserID = id.UserID(receivedBy)
	call.CallNumber = models.CallNumber(callNumber)
	call.Urgency = models.Urgency(urgency)
	call.Status = models.Status(status)
	if lon.Valid && lat.Valid {
		call.CallerLocation = &orb.Point{lon.Float64, lat.Float64}
	}
	call.FloodZoneID = nullID[id.FloodZoneID](zone)
	call.DispatchedToOrgID = nullID[id.OrganizationID](org)
	call.RescueOperationID = nullID[id.RescueOperationID](rescue)
	call.DuplicateOfID = nullID[id.EmergencyCallID](duplicate)
	call.TriagedAt = nullTime(triagedAt)
	call.DispatchedAt = nullTime(dispatchedAt)
	call.ResolvedAt = nullTime(resolvedAt)
	return &call, nil
}

func nullID[T ~[16]byte](v uuid.NullUUID) *T {
	if !v.Valid {
		return nil
	}
	out := T(v.UUID)
	return &out
}

// nullableUUID turns an optional typed id into a driver value.
func nullableUUID[T ~[16]byte](v *T) any {
	if v == nil {
		return nil
	}
	return uuid.UUID(*v)
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func statusStrings(in []models.Status) []string {
	out := make([]string, len(in))
	for i, st := range in {
		out[i] = string(st)
	}
	return out
}
