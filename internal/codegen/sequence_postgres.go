package codegen

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSequence keeps one counter row per kind in code_sequences. It always
// uses the pool, never a caller's transaction, so a rolled back create does
// not hand the same hint out again.
type PostgresSequence struct {
	db *sql.DB
}

func NewPostgresSequence(db *sql.DB) *PostgresSequence {
	return &PostgresSequence{db: db}
}

func (s *PostgresSequence) Next(ctx context.Context, kind Kind) (int64, error) {
	const query = `
		INSERT INTO code_sequences (kind, value) VALUES ($1, 1)
		ON CONFLICT (kind) DO UPDATE SET value = code_sequences.value + 1
		RETURNING value
	`
	var value int64
	if err := s.db.QueryRowContext(ctx, query, string(kind)).Scan(&value); err != nil {
		return 0, fmt.Errorf("advance %s sequence: %w", kind, err)
	}
	return value, nil
}

var codeTables = map[Kind]string{
	KindShelter:         "shelters",
	KindRescueOperation: "rescue_operations",
	KindEmergencyCall:   "emergency_calls",
	KindDisplacedPerson: "displaced_persons",
	KindFamilyGroup:     "family_groups",
}

// PostgresHighWater reads the largest sequence suffix stored for each kind.
// Soft-deleted rows count, since they still hold their code.
type PostgresHighWater struct {
	db *sql.DB
}

func NewPostgresHighWater(db *sql.DB) *PostgresHighWater {
	return &PostgresHighWater{db: db}
}

func (h *PostgresHighWater) LastIssued(ctx context.Context, kind Kind) (int64, error) {
	table, ok := codeTables[kind]
	if !ok {
		return 0, fmt.Errorf("no code table for kind %q", kind)
	}
	query := `
		SELECT COALESCE(MAX(CAST(split_part(code, '-', 3) AS BIGINT)), 0)
		FROM ` + table + `
		WHERE code ~ '^[A-Z]+-[0-9]{4}-[0-9]+$'
	`
	var last int64
	if err := h.db.QueryRowContext(ctx, query).Scan(&last); err != nil {
		return 0, fmt.Errorf("read %s high-water mark: %w", kind, err)
	}
	return last, nil
}
