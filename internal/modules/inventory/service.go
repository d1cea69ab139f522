// README: Bed inventory service; owns bed status and announces changes as events.
package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lifeline/internal/events"
	"lifeline/internal/types"
)

type BedStore interface {
	Create(ctx context.Context, b *Bed) error
	Get(ctx context.Context, id types.ID) (*Bed, error)
	SetStatus(ctx context.Context, id types.ID, status Status, now time.Time) (*Bed, error)
	ListAvailable(ctx context.Context, facilityID types.ID, kind Kind) ([]Bed, error)
	CountAvailable(ctx context.Context, facilityID types.ID, kind Kind) (int, error)
}

type Service struct {
	store  BedStore
	events events.Publisher
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(store BedStore, publisher events.Publisher, log zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		store:  store,
		events: publisher,
		log:    log.With().Str("module", "inventory").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateCommand struct {
	FacilityID types.ID
	Number     string
	Kind       string
}

// StatusChange is the payload of a bed.status_changed event.
type StatusChange struct {
	BedID      types.ID `json:"bed_id"`
	FacilityID types.ID `json:"hospital_id"`
	Number     string   `json:"bed_number"`
	Kind       Kind     `json:"bed_type"`
	Status     Status   `json:"bed_status"`
}

// Availability is the payload of a facility.availability event.
type Availability struct {
	FacilityID           types.ID `json:"hospital_id"`
	AvailableICUBeds     int      `json:"available_icu_beds"`
	AvailableVentilators int      `json:"available_ventilators"`
}

// Create registers a new AVAILABLE bed.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Bed, error) {
	number := strings.TrimSpace(cmd.Number)
	if cmd.FacilityID == "" || number == "" {
		return nil, ErrBadRequest
	}
	kind, err := ParseKind(cmd.Kind)
	if err != nil {
		return nil, err
	}
	now := s.now()
	b := &Bed{
		ID:         types.ID(uuid.NewString()),
		FacilityID: cmd.FacilityID,
		Number:     number,
		Kind:       kind,
		Status:     StatusAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	s.log.Info().Str("bed_id", string(b.ID)).Str("hospital_id", string(b.FacilityID)).Str("kind", string(kind)).Msg("bed created")
	return b, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Bed, error) {
	return s.store.Get(ctx, id)
}

// SetStatus changes a bed's inventory status, then publishes the change and
// the facility's refreshed ICU/ventilator counts.
func (s *Service) SetStatus(ctx context.Context, id types.ID, status string) (*Bed, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	now := s.now()
	b, err := s.store.SetStatus(ctx, id, st, now)
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.events, s.log, events.Event{
		Type: events.BedStatusChanged,
		Key:  string(b.ID),
		At:   now,
		Data: StatusChange{BedID: b.ID, FacilityID: b.FacilityID, Number: b.Number, Kind: b.Kind, Status: b.Status},
	})
	s.announceAvailability(ctx, b.FacilityID, now)
	return b, nil
}

func (s *Service) announceAvailability(ctx context.Context, facilityID types.ID, now time.Time) {
	icu, err := s.store.CountAvailable(ctx, facilityID, KindICU)
	if err != nil {
		s.log.Warn().Err(err).Str("hospital_id", string(facilityID)).Msg("count icu beds")
		return
	}
	vent, err := s.store.CountAvailable(ctx, facilityID, KindVentilator)
	if err != nil {
		s.log.Warn().Err(err).Str("hospital_id", string(facilityID)).Msg("count ventilators")
		return
	}
	events.Emit(ctx, s.events, s.log, events.Event{
		Type: events.FacilityAvailability,
		Key:  string(facilityID),
		At:   now,
		Data: Availability{FacilityID: facilityID, AvailableICUBeds: icu, AvailableVentilators: vent},
	})
}

// ListAvailable returns beds whose inventory status is AVAILABLE. Holds are
// not considered here.
func (s *Service) ListAvailable(ctx context.Context, facilityID types.ID, kind string) ([]Bed, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if facilityID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListAvailable(ctx, facilityID, k)
}

func (s *Service) CountAvailable(ctx context.Context, facilityID types.ID, kind string) (int, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return 0, err
	}
	if facilityID == "" {
		return 0, ErrBadRequest
	}
	return s.store.CountAvailable(ctx, facilityID, k)
}
