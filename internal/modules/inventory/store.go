// README: Bed inventory store backed by PostgreSQL.
package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifeline/internal/types"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const selectColumns = `id, facility_id, bed_number, kind, status, created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, b *Bed) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO beds (id, facility_id, bed_number, kind, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(b.ID), string(b.FacilityID), b.Number, string(b.Kind), string(b.Status), b.CreatedAt, b.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrDuplicateNumber
		case foreignKeyViolation:
			return ErrFacilityNotFound
		}
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Bed, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM beds WHERE id = $1`, string(id))
	b, err := scanBed(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// SetStatus updates the bed's status and returns the updated row.
func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status, now time.Time) (*Bed, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE beds SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+selectColumns,
		string(id), string(status), now,
	)
	b, err := scanBed(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// ListAvailable returns AVAILABLE beds of kind at facilityID, ordered by bed
// number then id.
func (s *Store) ListAvailable(ctx context.Context, facilityID types.ID, kind Kind) ([]Bed, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM beds
		WHERE facility_id = $1 AND kind = $2 AND status = 'AVAILABLE'
		ORDER BY bed_number, id`,
		string(facilityID), string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) CountAvailable(ctx context.Context, facilityID types.ID, kind Kind) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM beds
		WHERE facility_id = $1 AND kind = $2 AND status = 'AVAILABLE'`,
		string(facilityID), string(kind),
	).Scan(&n)
	return n, err
}

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	var id, facilityID, kind, status string
	if err := row.Scan(&id, &facilityID, &b.Number, &kind, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ID = types.ID(id)
	b.FacilityID = types.ID(facilityID)
	b.Kind = Kind(kind)
	b.Status = Status(status)
	return &b, nil
}
