// README: Facility directory service: registration, updates, lookup and radius search.
package facility

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lifeline/internal/events"
	"lifeline/internal/modules/geo"
	"lifeline/internal/types"
)

type FacilityStore interface {
	Create(ctx context.Context, f *Facility) error
	Update(ctx context.Context, f *Facility) error
	Get(ctx context.Context, id types.ID) (*Facility, error)
	ListFacilities(ctx context.Context) ([]Facility, error)
	Count(ctx context.Context) (int, error)
}

type Indexer interface {
	Index(ctx context.Context, f Facility) error
	Remove(ctx context.Context, id types.ID) error
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]Hit, error)
}

type Service struct {
	store  FacilityStore
	index  Indexer
	events events.Publisher
	log    zerolog.Logger
	now    func() time.Time
}

// NewService wires the directory. index may be nil, in which case Nearby
// scans the directory linearly. A nil publisher drops events.
func NewService(store FacilityStore, index Indexer, publisher events.Publisher, log zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		store:  store,
		index:  index,
		events: publisher,
		log:    log.With().Str("module", "facility").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateCommand struct {
	Name     string
	Lat      *float64
	Lng      *float64
	Address  string
	Phone    string
	State    string
	District string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Facility, error) {
	name, pos, err := cmd.validate()
	if err != nil {
		return nil, err
	}

	now := s.now()
	f := &Facility{
		ID:        types.ID(uuid.NewString()),
		Name:      name,
		Position:  pos,
		Address:   cmd.Address,
		Phone:     cmd.Phone,
		State:     cmd.State,
		District:  cmd.District,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, f); err != nil {
		return nil, err
	}
	s.syncIndex(ctx, *f)
	s.announce(ctx, events.FacilityCreated, *f)
	s.log.Info().Str("hospital_id", string(f.ID)).Bool("located", pos != nil).Msg("facility created")
	return f, nil
}

// Update replaces the facility's details. Clearing the coordinates drops it
// from the GEO index.
func (s *Service) Update(ctx context.Context, id types.ID, cmd CreateCommand) (*Facility, error) {
	name, pos, err := cmd.validate()
	if err != nil {
		return nil, err
	}
	f, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	f.Name = name
	f.Position = pos
	f.Address = cmd.Address
	f.Phone = cmd.Phone
	f.State = cmd.State
	f.District = cmd.District
	f.UpdatedAt = s.now()
	if err := s.store.Update(ctx, f); err != nil {
		return nil, err
	}
	s.syncIndex(ctx, *f)
	s.announce(ctx, events.FacilityUpdated, *f)
	s.log.Info().Str("hospital_id", string(f.ID)).Bool("located", pos != nil).Msg("facility updated")
	return f, nil
}

func (cmd CreateCommand) validate() (string, *types.Point, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return "", nil, ErrBadRequest
	}
	if (cmd.Lat == nil) != (cmd.Lng == nil) {
		return "", nil, ErrBadRequest
	}
	if cmd.Lat == nil {
		return name, nil, nil
	}
	p := types.Point{Lat: *cmd.Lat, Lng: *cmd.Lng}
	if err := geo.ValidatePoint(p); err != nil {
		return "", nil, err
	}
	return name, &p, nil
}

func (s *Service) syncIndex(ctx context.Context, f Facility) {
	if s.index == nil {
		return
	}
	var err error
	if f.Position != nil {
		err = s.index.Index(ctx, f)
	} else {
		err = s.index.Remove(ctx, f.ID)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("hospital_id", string(f.ID)).Msg("sync geo index")
	}
}

func (s *Service) announce(ctx context.Context, t events.Type, f Facility) {
	events.Emit(ctx, s.events, s.log, events.Event{
		Type: t,
		Key:  string(f.ID),
		At:   f.UpdatedAt,
		Data: Change{FacilityID: f.ID, Name: f.Name, Position: f.Position, State: f.State, District: f.District},
	})
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Facility, error) {
	return s.store.Get(ctx, id)
}

// Count returns the number of registered facilities.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *Service) ListFacilities(ctx context.Context) ([]Facility, error) {
	return s.store.ListFacilities(ctx)
}

// Reindex loads every located facility into the GEO index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	all, err := s.store.ListFacilities(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range all {
		if f.Position == nil {
			continue
		}
		if err := s.index.Index(ctx, f); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Nearby lists located facilities within radiusKm of p, nearest first.
func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]Nearby, error) {
	if math.IsNaN(radiusKm) || radiusKm < MinRadiusKm || radiusKm > MaxRadiusKm {
		return nil, ErrInvalidRadius
	}
	if err := geo.ValidatePoint(p); err != nil {
		return nil, err
	}

	all, err := s.store.ListFacilities(ctx)
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		hits, err := s.index.Nearby(ctx, p, radiusKm)
		if err == nil {
			return resolveHits(all, hits), nil
		}
		s.log.Warn().Err(err).Msg("geo index search failed; scanning directory")
	}
	return scanNearby(all, p, radiusKm), nil
}

func resolveHits(all []Facility, hits []Hit) []Nearby {
	byID := make(map[types.ID]Facility, len(all))
	for _, f := range all {
		byID[f.ID] = f
	}
	out := make([]Nearby, 0, len(hits))
	for _, h := range hits {
		f, ok := byID[h.ID]
		if !ok {
			continue
		}
		out = append(out, Nearby{Facility: f, DistanceKm: h.DistanceKm})
	}
	return out
}

func scanNearby(all []Facility, p types.Point, radiusKm float64) []Nearby {
	out := make([]Nearby, 0)
	for _, f := range all {
		if f.Position == nil {
			continue
		}
		d := geo.DistanceKm(p.Lat, p.Lng, f.Position.Lat, f.Position.Lng)
		if d <= radiusKm {
			out = append(out, Nearby{Facility: f, DistanceKm: d})
		}
	}
	geo.SortByDistance(out, func(n Nearby) float64 { return n.DistanceKm })
	return out
}
