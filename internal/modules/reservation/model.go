// README: Bed reservation (hold) model and lifecycle statuses.
package reservation

import (
	"errors"
	"time"

	"lifeline/internal/types"
)

type Status string

const (
	StatusReserved Status = "RESERVED"
	StatusExpired  Status = "EXPIRED"
)

var (
	// ErrConflict means the bed already has a RESERVED hold.
	ErrConflict = errors.New("bed already reserved")
	ErrNotFound = errors.New("reservation not found")
)

// Reservation holds a bed for a requester until ExpiresAt. The only
// transition is RESERVED -> EXPIRED; rows are never deleted.
type Reservation struct {
	ID          types.ID
	BedID       types.ID
	FacilityID  types.ID
	RequesterID types.ID
	Status      Status
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Stale reports whether a RESERVED hold has outlived its expiry at now.
func (r *Reservation) Stale(now time.Time) bool {
	return r.Status == StatusReserved && now.After(r.ExpiresAt)
}
