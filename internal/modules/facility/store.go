// README: Facility directory store backed by PostgreSQL.
package facility

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifeline/internal/types"
)

const selectColumns = `id, name, lat, lng, address, phone, state, district, created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, f *Facility) error {
	var lat, lng *float64
	if f.Position != nil {
		lat, lng = &f.Position.Lat, &f.Position.Lng
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO facilities (id, name, lat, lng, address, phone, state, district, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(f.ID), f.Name, lat, lng, f.Address, f.Phone, f.State, f.District, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Facility, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM facilities WHERE id = $1`, string(id))
	f, err := scanFacility(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// Update overwrites every mutable column of f.
func (s *Store) Update(ctx context.Context, f *Facility) error {
	var lat, lng *float64
	if f.Position != nil {
		lat, lng = &f.Position.Lat, &f.Position.Lng
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE facilities
		SET name = $2, lat = $3, lng = $4, address = $5, phone = $6, state = $7, district = $8, updated_at = $9
		WHERE id = $1`,
		string(f.ID), f.Name, lat, lng, f.Address, f.Phone, f.State, f.District, f.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM facilities`).Scan(&n)
	return n, err
}

// ListFacilities returns the whole directory in a stable order (creation
// time, then id).
func (s *Store) ListFacilities(ctx context.Context) ([]Facility, error) {
	rows, err := s.db.Query(ctx, `SELECT `+selectColumns+` FROM facilities ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	var id string
	var lat, lng *float64
	if err := row.Scan(&id, &f.Name, &lat, &lng, &f.Address, &f.Phone, &f.State, &f.District, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.ID = types.ID(id)
	if lat != nil && lng != nil {
		f.Position = &types.Point{Lat: *lat, Lng: *lng}
	}
	return &f, nil
}
