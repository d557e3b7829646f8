package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"reliefops/internal/person/models"
	"reliefops/internal/platform/postgres"
	id "reliefops/pkg/domain"
	"reliefops/pkg/platform/sentinel"
	"reliefops/pkg/platform/tx"
)

const personColumns = `id, code, full_name, date_of_birth, gender, phone, needs, status,
	current_shelter_id, family_group_id, registered_by_user_id, registered_at, updated_at`

// PostgresPersonStore persists displaced persons.
type PostgresPersonStore struct {
	db *sql.DB
}

func NewPostgresPersonStore(db *sql.DB) *PostgresPersonStore {
	return &PostgresPersonStore{db: db}
}

func (s *PostgresPersonStore) Create(ctx context.Context, p *models.Person) error {
	const query = `INSERT INTO displaced_persons (` + personColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID), p.Code, p.FullName, p.DateOfBirth, string(p.Gender), p.Phone, pq.Array(p.Needs),
		string(p.Status), nullableShelter(p.CurrentShelterID), nullableGroup(p.FamilyGroupID),
		uuid.UUID(p.RegisteredByUserID), p.RegisteredAt, p.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "displaced_persons_code_key") {
			return fmt.Errorf("person code %s: %w", p.Code, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func (s *PostgresPersonStore) FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	const query = `SELECT ` + personColumns + ` FROM displaced_persons WHERE id = $1`
	return s.find(ctx, query, personID)
}

// FindByIDForUpdate locks the person row until the surrounding transaction
// ends, so two assignments of the same person cannot both read the same
// origin shelter.
func (s *PostgresPersonStore) FindByIDForUpdate(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	const query = `SELECT ` + personColumns + ` FROM displaced_persons WHERE id = $1 FOR UPDATE`
	return s.find(ctx, query, personID)
}

func (s *PostgresPersonStore) find(ctx context.Context, query string, personID id.PersonID) (*models.Person, error) {
	p, err := scanPerson(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(personID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("person %s: %w", personID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find person: %w", err)
	}
	return p, nil
}

func (s *PostgresPersonStore) PlaceInShelter(ctx context.Context, personID id.PersonID, shelterID id.ShelterID, now time.Time) error {
	const query = `UPDATE displaced_persons SET current_shelter_id = $2, status = $3, updated_at = $4 WHERE id = $1`
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(personID), uuid.UUID(shelterID), string(models.StatusSheltered), now)
	if err != nil {
		return fmt.Errorf("place person in shelter: %w", err)
	}
	return expectOne(res, personID, sentinel.ErrNotFound)
}

// ClearShelter vacates the person's slot only while they are still in from.
func (s *PostgresPersonStore) ClearShelter(ctx context.Context, personID id.PersonID, from id.ShelterID, status models.Status, now time.Time) error {
	const query = `UPDATE displaced_persons SET current_shelter_id = NULL, status = $3, updated_at = $4
		WHERE id = $1 AND current_shelter_id = $2`
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(personID), uuid.UUID(from), string(status), now)
	if err != nil {
		return fmt.Errorf("clear person shelter: %w", err)
	}
	return expectOne(res, personID, sentinel.ErrInvalidState)
}

func (s *PostgresPersonStore) SetFamilyGroup(ctx context.Context, personID id.PersonID, groupID id.FamilyGroupID, now time.Time) error {
	const query = `UPDATE displaced_persons SET family_group_id = $2, updated_at = $3 WHERE id = $1`
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query, uuid.UUID(personID), uuid.UUID(groupID), now)
	if err != nil {
		return fmt.Errorf("set family group: %w", err)
	}
	return expectOne(res, personID, sentinel.ErrNotFound)
}

func expectOne(res sql.Result, personID id.PersonID, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("person %s: %w", personID, missing)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var (
		p                   models.Person
		rawID, registeredBy uuid.UUID
		dob                 sql.NullTime
		gender, status      string
		needs               pq.StringArray
		shelter, group      uuid.NullUUID
	)
	if err := row.Scan(&rawID, &p.Code, &p.FullName, &dob, &gender, &p.Phone, &needs, &status,
		&shelter, &group, &registeredBy, &p.RegisteredAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = id.PersonID(rawID)
	p.RegisteredByUserID = id.UserID(registeredBy)
	p.Gender = models.Gender(gender)
	p.Status = models.Status(status)
	p.Needs = []string(needs)
	if p.Needs == nil {
		p.Needs = []string{}
	}
	if dob.Valid {
		p.DateOfBirth = &dob.Time
	}
	if shelter.Valid {
		v := id.ShelterID(shelter.UUID)
		p.CurrentShelterID = &v
	}
	if group.Valid {
		v := id.FamilyGroupID(group.UUID)
		p.FamilyGroupID = &v
	}
	return &p, nil
}

func nullableShelter(v *id.ShelterID) any {
	if v == nil {
		return nil
	}
	return uuid.UUID(*v)
}

func nullableGroup(v *id.FamilyGroupID) any {
	if v == nil {
		return nil
	}
	return uuid.UUID(*v)
}

func nullablePerson(v *id.PersonID) any {
	if v == nil {
		return nil
	}
	return uuid.UUID(*v)
}

// PostgresFamilyGroupStore persists family groups.
type PostgresFamilyGroupStore struct {
	db *sql.DB
}

func NewPostgresFamilyGroupStore(db *sql.DB) *PostgresFamilyGroupStore {
	return &PostgresFamilyGroupStore{db: db}
}

const groupColumns = `id, code, name, head_person_id, family_size, created_at`

func (s *PostgresFamilyGroupStore) Create(ctx context.Context, g *models.FamilyGroup) error {
	const query = `INSERT INTO family_groups (` + groupColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(g.ID), g.Code, g.Name, nullablePerson(g.HeadPersonID), g.FamilySize, g.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "family_groups_code_key") {
			return fmt.Errorf("family group code %s: %w", g.Code, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert family group: %w", err)
	}
	return nil
}

func (s *PostgresFamilyGroupStore) FindByID(ctx context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error) {
	const query = `SELECT ` + groupColumns + ` FROM family_groups WHERE id = $1`
	return s.scanOne(ctx, query, groupID, "find family group")
}

func (s *PostgresFamilyGroupStore) IncrementSize(ctx context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error) {
	const query = `UPDATE family_groups SET family_size = family_size + 1 WHERE id = $1 RETURNING ` + groupColumns
	return s.scanOne(ctx, query, groupID, "increment family size")
}

func (s *PostgresFamilyGroupStore) DecrementSize(ctx context.Context, groupID id.FamilyGroupID) (*models.FamilyGroup, error) {
	const query = `UPDATE family_groups SET family_size = GREATEST(family_size - 1, 0) WHERE id = $1 RETURNING ` + groupColumns
	return s.scanOne(ctx, query, groupID, "decrement family size")
}

func (s *PostgresFamilyGroupStore) scanOne(ctx context.Context, query string, groupID id.FamilyGroupID, op string) (*models.FamilyGroup, error) {
	var (
		g     models.FamilyGroup
		rawID uuid.UUID
		head  uuid.NullUUID
	)
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(groupID)).
		Scan(&rawID, &g.Code, &g.Name, &head, &g.FamilySize, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("family group %s: %w", groupID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	g.ID = id.FamilyGroupID(rawID)
	if head.Valid {
		v := id.PersonID(head.UUID)
		g.HeadPersonID = &v
	}
	return &g, nil
}
