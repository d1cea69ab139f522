// README: Availability filter: inventory-AVAILABLE beds minus beds under an active hold.
package matching

import (
	"context"
	"fmt"
	"time"

	"lifeline/internal/modules/facility"
	"lifeline/internal/modules/inventory"
	"lifeline/internal/modules/reservation"
	"lifeline/internal/types"
)

type FacilityLister interface {
	ListFacilities(ctx context.Context) ([]facility.Facility, error)
}

type BedLister interface {
	ListAvailable(ctx context.Context, facilityID types.ID, kind inventory.Kind) ([]inventory.Bed, error)
}

type ReservationStore interface {
	Create(ctx context.Context, bedID, facilityID, requesterID types.ID, now time.Time) (*reservation.Reservation, error)
	FindActiveByBed(ctx context.Context, bedID types.ID) (*reservation.Reservation, error)
	FindActiveByRequester(ctx context.Context, requesterID types.ID) (*reservation.Reservation, error)
	FindExpired(ctx context.Context, now time.Time) ([]*reservation.Reservation, error)
	MarkExpired(ctx context.Context, ids []types.ID, now time.Time) ([]types.ID, error)
}

// AvailabilityFilter yields the beds of kind at a facility that can be
// reserved right now.
type AvailabilityFilter interface {
	TrulyAvailable(ctx context.Context, facilityID types.ID, kind inventory.Kind) ([]inventory.Bed, error)
}

type Availability struct {
	beds         BedLister
	reservations ReservationStore
}

func NewAvailability(beds BedLister, reservations ReservationStore) *Availability {
	return &Availability{beds: beds, reservations: reservations}
}

// TrulyAvailable keeps the inventory's order.
func (a *Availability) TrulyAvailable(ctx context.Context, facilityID types.ID, kind inventory.Kind) ([]inventory.Bed, error) {
	beds, err := a.beds.ListAvailable(ctx, facilityID, kind)
	if err != nil {
		return nil, fmt.Errorf("list beds: %w", err)
	}
	out := make([]inventory.Bed, 0, len(beds))
	for _, b := range beds {
		hold, err := a.reservations.FindActiveByBed(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("check hold on bed %s: %w", b.ID, err)
		}
		if hold == nil {
			out = append(out, b)
		}
	}
	return out, nil
}
