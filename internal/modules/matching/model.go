// README: Match request/result types and the injectable clock.
package matching

import (
	"time"

	"lifeline/internal/types"
)

// Request asks for the nearest facility with a free bed of Kind.
type Request struct {
	RequesterID types.ID `validate:"required"`
	Position    types.Point
	Kind        string `validate:"required"`
}

type Result struct {
	FacilityID   types.ID
	FacilityName string
	// FacilityPosition is nil when DistanceKm is the sentinel.
	FacilityPosition *types.Point
	DistanceKm       float64
	// AvailableBeds counts truly available beds before this reservation.
	AvailableBeds int
	BedID         types.ID
	ReservationID types.ID
	ExpiresAt     time.Time
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ReservationCreated is the payload of a reservation.created event.
type ReservationCreated struct {
	ReservationID types.ID  `json:"reservation_id"`
	BedID         types.ID  `json:"bed_id"`
	FacilityID    types.ID  `json:"hospital_id"`
	RequesterID   types.ID  `json:"ambulance_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ReservationExpired is the payload of a reservation.expired event.
type ReservationExpired struct {
	ReservationID types.ID `json:"reservation_id"`
	BedID         types.ID `json:"bed_id"`
	FacilityID    types.ID `json:"hospital_id"`
}
