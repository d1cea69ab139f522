// README: Matching service: expire stale holds, rank facilities by distance, reserve the nearest free bed.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"lifeline/internal/config"
	"lifeline/internal/events"
	"lifeline/internal/modules/facility"
	"lifeline/internal/modules/geo"
	"lifeline/internal/modules/inventory"
	"lifeline/internal/modules/reservation"
	"lifeline/internal/types"
)

const defaultSentinelKm = 9999.0

type Service struct {
	facilities   FacilityLister
	availability AvailabilityFilter
	reservations ReservationStore
	distance     geo.Calculator
	events       events.Publisher
	clock        Clock
	validate     *validator.Validate
	kinds        []inventory.Kind
	cfg          config.MatchingConfig
	log          zerolog.Logger
}

type Option func(*Service)

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.events = p } }

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l.With().Str("module", "matching").Logger() }
}

func WithCalculator(c geo.Calculator) Option { return func(s *Service) { s.distance = c } }

func WithAvailability(a AvailabilityFilter) Option { return func(s *Service) { s.availability = a } }

// NewService builds a matcher over the directory, inventory and reservation
// store. Unknown names in cfg.Kinds are ignored; callers validate them with
// inventory.ParseKinds at startup.
func NewService(facilities FacilityLister, beds BedLister, reservations ReservationStore, cfg config.MatchingConfig, opts ...Option) *Service {
	s := &Service{
		facilities:   facilities,
		availability: NewAvailability(beds, reservations),
		reservations: reservations,
		distance:     geo.Haversine{},
		events:       events.Nop{},
		clock:        SystemClock{},
		validate:     validator.New(),
		cfg:          cfg,
		log:          zerolog.Nop(),
	}
	if s.cfg.MaxAttempts < 1 {
		s.cfg.MaxAttempts = 1
	}
	if s.cfg.SentinelDistanceKm <= 0 {
		s.cfg.SentinelDistanceKm = defaultSentinelKm
	}
	for _, name := range cfg.Kinds {
		if k, err := inventory.ParseKind(name); err == nil {
			s.kinds = append(s.kinds, k)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type candidate struct {
	facility   facility.Facility
	beds       []inventory.Bed
	distanceKm float64
}

// FindNearest reserves the first truly available bed of req.Kind at the
// facility nearest to req.Position.
func (s *Service) FindNearest(ctx context.Context, req Request) (*Result, error) {
	s.expireBestEffort(ctx)

	kind, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		res, err := s.reserveNearest(ctx, req, kind)
		if err == nil {
			s.log.Info().
				Str("ambulance_id", string(req.RequesterID)).
				Str("cell", geo.Cell(req.Position)).
				Str("hospital_id", string(res.FacilityID)).
				Str("bed_id", string(res.BedID)).
				Float64("distance_km", res.DistanceKm).
				Int("attempt", attempt).
				Msg("bed reserved")
			return res, nil
		}
		if !errors.Is(err, reservation.ErrConflict) {
			return nil, err
		}
		s.log.Debug().Str("ambulance_id", string(req.RequesterID)).Int("attempt", attempt).Msg("bed taken concurrently; reselecting")
	}
	return nil, &RetryExhaustedError{Attempts: s.cfg.MaxAttempts, Err: reservation.ErrConflict}
}

func (s *Service) reserveNearest(ctx context.Context, req Request, kind inventory.Kind) (*Result, error) {
	all, err := s.facilities.ListFacilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}

	candidates := make([]candidate, 0, len(all))
	for _, f := range all {
		beds, err := s.availability.TrulyAvailable(ctx, f.ID, kind)
		if err != nil {
			return nil, fmt.Errorf("facility %s: %w", f.ID, err)
		}
		if len(beds) == 0 {
			continue
		}
		d := s.cfg.SentinelDistanceKm
		if f.Position != nil {
			d = s.distance.Distance(req.Position, *f.Position)
		}
		candidates = append(candidates, candidate{facility: f, beds: beds, distanceKm: d})
	}
	if len(candidates) == 0 {
		return nil, &NoAvailabilityError{Kind: kind}
	}
	geo.SortByDistance(candidates, func(c candidate) float64 { return c.distanceKm })

	best := candidates[0]
	bed := best.beds[0]
	r, err := s.reservations.Create(ctx, bed.ID, best.facility.ID, req.RequesterID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("reserve bed %s: %w", bed.ID, err)
	}

	events.Emit(ctx, s.events, s.log, events.Event{
		Type: events.ReservationCreated,
		Key:  string(r.BedID),
		At:   r.CreatedAt,
		Data: ReservationCreated{
			ReservationID: r.ID,
			BedID:         r.BedID,
			FacilityID:    r.FacilityID,
			RequesterID:   r.RequesterID,
			ExpiresAt:     r.ExpiresAt,
		},
	})

	return &Result{
		FacilityID:       best.facility.ID,
		FacilityName:     best.facility.Name,
		FacilityPosition: best.facility.Position,
		DistanceKm:       best.distanceKm,
		AvailableBeds:    len(best.beds),
		BedID:            bed.ID,
		ReservationID:    r.ID,
		ExpiresAt:        r.ExpiresAt,
	}, nil
}

// ExpireStale moves every RESERVED hold past its expiry to EXPIRED and
// returns how many rows this call transitioned.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	stale, err := s.reservations.FindExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find expired: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]types.ID, len(stale))
	for i, r := range stale {
		ids[i] = r.ID
	}
	expired, err := s.reservations.MarkExpired(ctx, ids, now)
	if err != nil {
		return 0, fmt.Errorf("mark expired: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	// Rows a concurrent sweep already expired are not in expired.
	byID := make(map[types.ID]*reservation.Reservation, len(stale))
	for _, r := range stale {
		byID[r.ID] = r
	}
	for _, id := range expired {
		r, ok := byID[id]
		if !ok {
			continue
		}
		events.Emit(ctx, s.events, s.log, events.Event{
			Type: events.ReservationExpired,
			Key:  string(r.BedID),
			At:   now,
			Data: ReservationExpired{ReservationID: r.ID, BedID: r.BedID, FacilityID: r.FacilityID},
		})
	}
	s.log.Info().Int("expired", len(expired)).Msg("expired stale reservations")
	return len(expired), nil
}

func (s *Service) expireBestEffort(ctx context.Context) {
	if _, err := s.ExpireStale(ctx); err != nil {
		s.log.Warn().Err(err).Msg("lazy expiry failed; continuing")
	}
}

// RunExpirySweeper calls ExpireStale every interval until ctx is done, so
// expiry events go out even when no match request arrives.
func (s *Service) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.expireBestEffort(ctx)
		}
	}
}

// ActiveReservation returns the requester's live hold, or reservation.ErrNotFound.
func (s *Service) ActiveReservation(ctx context.Context, requesterID types.ID) (*reservation.Reservation, error) {
	if requesterID == "" {
		return nil, &InvalidRequestError{Field: "ambulance_id", Message: "ambulance id is required"}
	}
	s.expireBestEffort(ctx)

	r, err := s.reservations.FindActiveByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if r == nil || r.Stale(s.clock.Now()) {
		return nil, reservation.ErrNotFound
	}
	return r, nil
}

// AllowedKinds lists the bed kinds FindNearest accepts.
func (s *Service) AllowedKinds() []inventory.Kind {
	return append([]inventory.Kind(nil), s.kinds...)
}

func (s *Service) validateRequest(req Request) (inventory.Kind, error) {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return "", fieldError(verrs[0], req)
		}
		return "", &InvalidRequestError{Message: err.Error()}
	}

	want := inventory.Kind(strings.ToUpper(strings.TrimSpace(req.Kind)))
	for _, k := range s.kinds {
		if k == want {
			return k, nil
		}
	}
	return "", &InvalidRequestError{
		Field:   "kind",
		Message: fmt.Sprintf("Invalid bed type: %s. Allowed values: %s", req.Kind, joinKinds(s.kinds)),
	}
}

func fieldError(fe validator.FieldError, req Request) error {
	switch fe.Field() {
	case "RequesterID":
		return &InvalidRequestError{Field: "ambulance_id", Message: "ambulance id is required"}
	case "Lat":
		return &InvalidRequestError{Field: "latitude", Message: fmt.Sprintf("invalid latitude %v: must be between -90 and 90", req.Position.Lat)}
	case "Lng":
		return &InvalidRequestError{Field: "longitude", Message: fmt.Sprintf("invalid longitude %v: must be between -180 and 180", req.Position.Lng)}
	case "Kind":
		return &InvalidRequestError{Field: "kind", Message: "bed type is required"}
	}
	return &InvalidRequestError{Field: fe.Field(), Message: fe.Error()}
}

func joinKinds(kinds []inventory.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
