// README: Reservation store backed by PostgreSQL; exclusivity comes from a partial unique index.
package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifeline/internal/types"
)

const uniqueViolation = "23505"

const selectColumns = `id, bed_id, facility_id, requester_id, status, created_at, expires_at`

type Store struct {
	db   *pgxpool.Pool
	hold time.Duration
}

func NewStore(db *pgxpool.Pool, hold time.Duration) *Store {
	return &Store{db: db, hold: hold}
}

// Create inserts a RESERVED hold expiring hold after now. A second live
// hold on the same bed trips uq_bed_reservations_active_bed and is reported
// as ErrConflict.
func (s *Store) Create(ctx context.Context, bedID, facilityID, requesterID types.ID, now time.Time) (*Reservation, error) {
	r := &Reservation{
		ID:          types.ID(uuid.NewString()),
		BedID:       bedID,
		FacilityID:  facilityID,
		RequesterID: requesterID,
		Status:      StatusReserved,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.hold),
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO bed_reservations (id, bed_id, facility_id, requester_id, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(r.ID), string(r.BedID), string(r.FacilityID), string(r.RequesterID),
		string(r.Status), r.CreatedAt, r.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// FindActiveByBed returns the RESERVED hold on bedID, or nil if there is none.
func (s *Store) FindActiveByBed(ctx context.Context, bedID types.ID) (*Reservation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM bed_reservations
		WHERE bed_id = $1 AND status = 'RESERVED'`, string(bedID),
	)
	return scanOptional(row)
}

// FindActiveByRequester returns the newest RESERVED hold owned by requesterID, or nil.
func (s *Store) FindActiveByRequester(ctx context.Context, requesterID types.ID) (*Reservation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM bed_reservations
		WHERE requester_id = $1 AND status = 'RESERVED'
		ORDER BY created_at DESC
		LIMIT 1`, string(requesterID),
	)
	return scanOptional(row)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Reservation, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM bed_reservations WHERE id = $1`, string(id))
	r, err := scanOptional(row)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// FindExpired lists RESERVED holds whose expiry is before now.
func (s *Store) FindExpired(ctx context.Context, now time.Time) ([]*Reservation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM bed_reservations
		WHERE status = 'RESERVED' AND expires_at < $1
		ORDER BY expires_at`, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Reservation
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkExpired moves the given holds to EXPIRED and returns the ids this call
// transitioned. Rows already expired by a concurrent sweep, or not yet due at
// now, are left alone and not returned.
func (s *Store) MarkExpired(ctx context.Context, ids []types.ID, now time.Time) ([]types.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		UPDATE bed_reservations
		SET status = 'EXPIRED'
		WHERE id = ANY($1) AND status = 'RESERVED' AND expires_at < $2
		RETURNING id`,
		raw, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, types.ID(id))
	}
	return out, rows.Err()
}

func scanOptional(row pgx.Row) (*Reservation, error) {
	r, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func scan(row pgx.Row) (*Reservation, error) {
	var r Reservation
	var id, bedID, facilityID, requesterID, status string
	if err := row.Scan(&id, &bedID, &facilityID, &requesterID, &status, &r.CreatedAt, &r.ExpiresAt); err != nil {
		return nil, err
	}
	r.ID = types.ID(id)
	r.BedID = types.ID(bedID)
	r.FacilityID = types.ID(facilityID)
	r.RequesterID = types.ID(requesterID)
	r.Status = Status(status)
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
