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
	"reliefops/internal/rescue/models"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/platform/tx"
)

const operationColumns = `id, code, flood_zone_id, target_lon, target_lat, assigned_org_id, operation_type,
	priority, status, estimated_persons_at_risk, persons_rescued, emergency_call_id, requested_by_user_id,
	team_size, notes, dispatched_at, arrived_at, completed_at, created_at, updated_at, deleted_at`

// PostgresStore persists rescue operations and their teams. Status changes
// are single conditional UPDATEs guarded by the status read at validation
// time.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, op *models.Operation) error {
	const query = `INSERT INTO rescue_operations (` + operationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(op.ID), op.Code, uuid.UUID(op.FloodZoneID), op.TargetLocation.Lon(), op.TargetLocation.Lat(),
		uuid.UUID(op.AssignedOrgID), string(op.OperationType), string(op.Priority), string(op.Status),
		op.EstimatedPersonsAtRisk, op.PersonsRescued, nullableCall(op.EmergencyCallID), uuid.UUID(op.RequestedByUserID),
		op.TeamSize, op.Notes, op.DispatchedAt, op.ArrivedAt, op.CompletedAt, op.CreatedAt, op.UpdatedAt, op.DeletedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "rescue_operations_code_key") {
			return fmt.Errorf("rescue operation code %s: %w", op.Code, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert rescue operation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, opID id.RescueOperationID) (*models.Operation, error) {
	const query = `SELECT ` + operationColumns + ` FROM rescue_operations WHERE id = $1 AND deleted_at IS NULL`
	op, err := scanOperation(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(opID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rescue operation %s: %w", opID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find rescue operation: %w", err)
	}
	return op, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Operation, error) {
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
	query := `SELECT ` + operationColumns + ` FROM rescue_operations WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY code DESC`

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rescue operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rescue operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ApplyTransition(ctx context.Context, opID id.RescueOperationID, t models.Transition) (*models.Operation, error) {
	const query = `UPDATE rescue_operations SET
			status = $3,
			persons_rescued = COALESCE($4, persons_rescued),
			notes = COALESCE($5, notes),
			dispatched_at = COALESCE($6, dispatched_at),
			arrived_at = COALESCE($7, arrived_at),
			completed_at = COALESCE($8, completed_at),
			updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL AND status = ANY($2)
		RETURNING ` + operationColumns
	op, err := scanOperation(tx.Conn(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(opID), pq.Array(statusStrings(t.From)), string(t.To),
		t.PersonsRescued, t.Notes, t.DispatchedAt, t.ArrivedAt, t.CompletedAt, t.UpdatedAt))
	if err != nil {
		return nil, s.missedUpdate(ctx, err, opID, "apply rescue transition")
	}
	return op, nil
}

// ReplaceTeam rewrites the membership. The guarded UPDATE runs first so the
// operation row stays locked while members are replaced; callers must run it
// inside a transaction.
func (s *PostgresStore) ReplaceTeam(ctx context.Context, opID id.RescueOperationID, from []models.Status, members []models.TeamMember, now time.Time) (*models.Operation, error) {
	conn := tx.Conn(ctx, s.db)

	const update = `UPDATE rescue_operations SET team_size = $3, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL AND status = ANY($2)
		RETURNING ` + operationColumns
	op, err := scanOperation(conn.QueryRowContext(ctx, update,
		uuid.UUID(opID), pq.Array(statusStrings(from)), len(members), now))
	if err != nil {
		return nil, s.missedUpdate(ctx, err, opID, "update team size")
	}

	if _, err := conn.ExecContext(ctx, `DELETE FROM rescue_team_members WHERE operation_id = $1`, uuid.UUID(opID)); err != nil {
		return nil, fmt.Errorf("clear rescue team: %w", err)
	}
	if len(members) == 0 {
		return op, nil
	}

	users := make([]string, len(members))
	roles := make([]string, len(members))
	for i, m := range members {
		users[i] = m.UserID.String()
		roles[i] = string(m.Role)
	}
	const insert = `INSERT INTO rescue_team_members (operation_id, user_id, role, assigned_at)
		SELECT $1, t.user_id, t.role, $4
		FROM unnest($2::uuid[], $3::text[]) AS t(user_id, role)`
	if _, err := conn.ExecContext(ctx, insert, uuid.UUID(opID), pq.Array(users), pq.Array(roles), now); err != nil {
		return nil, fmt.Errorf("insert rescue team: %w", err)
	}
	return op, nil
}

// Team lists members with the leader first.
func (s *PostgresStore) Team(ctx context.Context, opID id.RescueOperationID) ([]models.TeamMember, error) {
	if _, err := s.FindByID(ctx, opID); err != nil {
		return nil, err
	}
	const query = `SELECT user_id, role, assigned_at FROM rescue_team_members
		WHERE operation_id = $1 ORDER BY role = 'leader' DESC, user_id`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, uuid.UUID(opID))
	if err != nil {
		return nil, fmt.Errorf("list rescue team: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.TeamMember
	for rows.Next() {
		var (
			userID uuid.UUID
			role   string
			m      = models.TeamMember{OperationID: opID}
		)
		if err := rows.Scan(&userID, &role, &m.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		m.UserID = id.UserID(userID)
		m.Role = models.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SoftDelete(ctx context.Context, opID id.RescueOperationID, from []models.Status, now time.Time) error {
	const query = `UPDATE rescue_operations SET deleted_at = $3, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL AND status = ANY($2)`
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(opID), pq.Array(statusStrings(from)), now)
	if err != nil {
		return fmt.Errorf("delete rescue operation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rescue operation rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	return s.missedUpdate(ctx, sql.ErrNoRows, opID, "delete rescue operation")
}

// missedUpdate tells a vanished row from one whose status moved on.
func (s *PostgresStore) missedUpdate(ctx context.Context, err error, opID id.RescueOperationID, op string) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, findErr := s.FindByID(ctx, opID); findErr != nil {
		return findErr
	}
	return fmt.Errorf("rescue operation %s status changed concurrently: %w", opID, sentinel.ErrInvalidState)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*models.Operation, error) {
	var (
		op                                              models.Operation
		rawID, zone, org, requestedBy                   uuid.UUID
		call                                            uuid.NullUUID
		lon, lat                                        float64
		opType, priority, status                        string
		dispatchedAt, arrivedAt, completedAt, deletedAt sql.NullTime
	)
	if err := row.Scan(&rawID, &op.Code, &zone, &lon, &lat, &org, &opType, &priority, &status,
		&op.EstimatedPersonsAtRisk, &op.PersonsRescued, &call, &requestedBy, &op.TeamSize, &op.Notes,
		&dispatchedAt, &arrivedAt, &completedAt, &op.CreatedAt, &op.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	op.ID = id.RescueOperationID(rawID)
	op.FloodZoneID = id.FloodZoneID(zone)
	op.AssignedOrgID = id.OrganizationID(org)
	op.RequestedByUserID = id.UserID(requestedBy)
	op.TargetLocation = orb.Point{lon, lat}
	op.OperationType = models.OperationType(opType)
	op.Priority = models.Priority(priority)
	op.Status = models.Status(status)
	if call.Valid {
		v := id.EmergencyCallID(call.UUID)
		op.EmergencyCallID = &v
	}
	op.DispatchedAt = nullTime(dispatchedAt)
	op.ArrivedAt = nullTime(arrivedAt)
	op.CompletedAt = nullTime(completedAt)
	op.DeletedAt = nullTime(deletedAt)
	return &op, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func nullableCall(v *id.EmergencyCallID) any {
	if v == nil {
		return nil
	}
	return uuid.UUID(*v)
}

func statusStrings(in []models.Status) []string {
	out := make([]string, len(in))
	for i, st := range in {
		out[i] = string(st)
	}
	return out
}
