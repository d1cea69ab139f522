// README: Facility (hospital) directory model.
package facility

import (
	"errors"
	"time"

	"lifeline/internal/types"
)

const (
	MinRadiusKm = 0.1
	MaxRadiusKm = 500.0
)

var (
	ErrNotFound      = errors.New("hospital not found")
	ErrBadRequest    = errors.New("bad request")
	ErrInvalidRadius = errors.New("radius must be between 0.1 and 500 kilometers")
)

type Facility struct {
	ID   types.ID
	Name string
	// Position is nil when the facility's coordinates are unknown.
	Position  *types.Point
	Address   string
	Phone     string
	State     string
	District  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Nearby struct {
	Facility   Facility
	DistanceKm float64
}

// Change is the payload of facility.created and facility.updated events.
type Change struct {
	FacilityID types.ID     `json:"hospital_id"`
	Name       string       `json:"name"`
	Position   *types.Point `json:"position,omitempty"`
	State      string       `json:"state,omitempty"`
	District   string       `json:"district,omitempty"`
}
