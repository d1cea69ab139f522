package facility

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/events"
	"lifeline/internal/modules/geo"
	"lifeline/internal/testutil"
	"lifeline/internal/types"
)

type memStore struct {
	mu    sync.Mutex
	order []types.ID
	byID  map[types.ID]Facility
	err   error
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[types.ID]Facility)}
}

func (m *memStore) Create(_ context.Context, f *Facility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = append(m.order, f.ID)
	m.byID[f.ID] = *f
	return nil
}

func (m *memStore) Update(_ context.Context, f *Facility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[f.ID]; !ok {
		return ErrNotFound
	}
	m.byID[f.ID] = *f
	return nil
}

func (m *memStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order), nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Facility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (m *memStore) ListFacilities(context.Context) ([]Facility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Facility, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out, nil
}

type failingIndex struct{}

func (failingIndex) Index(context.Context, Facility) error { return errors.New("redis down") }
func (failingIndex) Remove(context.Context, types.ID) error { return errors.New("redis down") }
func (failingIndex) Nearby(context.Context, types.Point, float64) ([]Hit, error) {
	return nil, errors.New("redis down")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func setupMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func ptr(v float64) *float64 { return &v }

// Bengaluru landmarks, roughly 0km, 5km and 30km from origin.
var (
	origin  = types.Point{Lat: 12.9716, Lng: 77.5946}
	near    = CreateCommand{Name: "Near General", Lat: ptr(12.9716), Lng: ptr(77.6406)}
	farther = CreateCommand{Name: "Far Clinic", Lat: ptr(13.2400), Lng: ptr(77.5946)}
	unknown = CreateCommand{Name: "Unlocated Hospital"}
)

func seed(t *testing.T, svc *Service, cmds ...CreateCommand) []*Facility {
	t.Helper()
	out := make([]*Facility, 0, len(cmds))
	for _, cmd := range cmds {
		f, err := svc.Create(context.Background(), cmd)
		require.NoError(t, err)
		out = append(out, f)
	}
	return out
}

func TestGeoIndex_NearbySortedWithinRadius(t *testing.T) {
	ctx := context.Background()
	idx := NewGeoIndex(setupMiniredis(t))

	require.NoError(t, idx.Index(ctx, Facility{ID: "far", Position: &types.Point{Lat: 13.2400, Lng: 77.5946}}))
	require.NoError(t, idx.Index(ctx, Facility{ID: "near", Position: &types.Point{Lat: 12.9716, Lng: 77.6406}}))
	require.NoError(t, idx.Index(ctx, Facility{ID: "unlocated"}))

	hits, err := idx.Nearby(ctx, origin, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, types.ID("near"), hits[0].ID)
	assert.InDelta(t, geo.DistanceKm(origin.Lat, origin.Lng, 12.9716, 77.6406), hits[0].DistanceKm, 0.05)

	hits, err = idx.Nearby(ctx, origin, 50)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, types.ID("near"), hits[0].ID)
	assert.Equal(t, types.ID("far"), hits[1].ID)

	require.NoError(t, idx.Remove(ctx, "near"))
	hits, err = idx.Nearby(ctx, origin, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestService_CreateValidates(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCommand{Name: " "})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Create(ctx, CreateCommand{Name: "Half", Lat: ptr(1)})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Create(ctx, CreateCommand{Name: "Bad", Lat: ptr(91), Lng: ptr(0)})
	assert.ErrorIs(t, err, geo.ErrInvalidLatitude)

	f, err := svc.Create(ctx, unknown)
	require.NoError(t, err)
	assert.Nil(t, f.Position)
}

func TestService_NearbyWithIndex(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, NewGeoIndex(setupMiniredis(t)), nil, zerolog.Nop())
	created := seed(t, svc, farther, unknown, near)

	got, err := svc.Nearby(context.Background(), origin, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, created[2].ID, got[0].Facility.ID)
	assert.Equal(t, created[0].ID, got[1].Facility.ID)
	assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)
}

func TestService_NearbyLinearScan(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil, zerolog.Nop())
	created := seed(t, svc, farther, unknown, near)

	got, err := svc.Nearby(context.Background(), origin, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created[2].ID, got[0].Facility.ID)
	assert.InDelta(t, 4.98, got[0].DistanceKm, 0.1)
}

func TestService_NearbyFallsBackWhenIndexFails(t *testing.T) {
	svc := NewService(newMemStore(), failingIndex{}, nil, zerolog.Nop())
	created := seed(t, svc, near)

	got, err := svc.Nearby(context.Background(), origin, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, created[0].ID, got[0].Facility.ID)
}

func TestService_NearbyRejectsBadInput(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil, zerolog.Nop())
	ctx := context.Background()

	for _, r := range []float64{0, 0.05, 500.1, -3} {
		_, err := svc.Nearby(ctx, origin, r)
		assert.ErrorIs(t, err, ErrInvalidRadius, "radius %v", r)
	}
	_, err := svc.Nearby(ctx, types.Point{Lat: 0, Lng: 200}, 10)
	assert.ErrorIs(t, err, geo.ErrInvalidLongitude)
}

func TestService_Reindex(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	client := setupMiniredis(t)

	// Populate the directory without an index, as if Redis was flushed.
	seed(t, NewService(store, nil, nil, zerolog.Nop()), near, unknown, farther)

	svc := NewService(store, NewGeoIndex(client), nil, zerolog.Nop())
	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := svc.Nearby(ctx, origin, 50)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestService_CreatePublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(newMemStore(), nil, pub, zerolog.Nop())

	f, err := svc.Create(context.Background(), near)
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	e := pub.events[0]
	assert.Equal(t, events.FacilityCreated, e.Type)
	assert.Equal(t, string(f.ID), e.Key)
	change := e.Data.(Change)
	assert.Equal(t, "Near General", change.Name)
	require.NotNil(t, change.Position)
}

func TestService_UpdateMovesAndClearsIndexEntry(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	store := newMemStore()
	svc := NewService(store, NewGeoIndex(setupMiniredis(t)), pub, zerolog.Nop())
	created := seed(t, svc, farther)[0]

	got, err := svc.Nearby(ctx, origin, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Move the hospital next to the origin.
	moved := near
	moved.Name = "Far Clinic (relocated)"
	updated, err := svc.Update(ctx, created.ID, moved)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	got, err = svc.Nearby(ctx, origin, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Far Clinic (relocated)", got[0].Facility.Name)

	// Clearing the coordinates removes it from the index.
	_, err = svc.Update(ctx, created.ID, CreateCommand{Name: "Far Clinic"})
	require.NoError(t, err)
	got, err = svc.Nearby(ctx, origin, 500)
	require.NoError(t, err)
	assert.Empty(t, got)

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Position)

	var kinds []events.Type
	for _, e := range pub.events {
		kinds = append(kinds, e.Type)
	}
	assert.Equal(t, []events.Type{events.FacilityCreated, events.FacilityUpdated, events.FacilityUpdated}, kinds)
}

func TestService_UpdateRejects(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(newMemStore(), nil, pub, zerolog.Nop())
	ctx := context.Background()
	created := seed(t, svc, near)[0]

	_, err := svc.Update(ctx, "missing", near)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, created.ID, CreateCommand{Name: ""})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Update(ctx, created.ID, CreateCommand{Name: "X", Lat: ptr(10), Lng: ptr(181)})
	assert.ErrorIs(t, err, geo.ErrInvalidLongitude)

	assert.Len(t, pub.events, 1)
}

func TestService_Count(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil, zerolog.Nop())
	seed(t, svc, near, farther, unknown)

	n, err := svc.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_UpdateAndCount(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	svc := NewService(NewStore(db), nil, nil, zerolog.Nop())

	f, err := svc.Create(ctx, unknown)
	require.NoError(t, err)

	_, err = svc.Update(ctx, f.ID, CreateCommand{Name: "Now Located", Lat: ptr(12.9), Lng: ptr(77.6), District: "Central"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Now Located", got.Name)
	assert.Equal(t, "Central", got.District)
	require.NotNil(t, got.Position)
	assert.InDelta(t, 12.9, got.Position.Lat, 1e-9)

	_, err = svc.Update(ctx, "missing", near)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_RoundTripsOptionalPosition(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	svc := NewService(NewStore(db), nil, nil, zerolog.Nop())

	located, err := svc.Create(ctx, near)
	require.NoError(t, err)
	unlocated, err := svc.Create(ctx, unknown)
	require.NoError(t, err)

	all, err := svc.ListFacilities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, located.ID, all[0].ID)
	require.NotNil(t, all[0].Position)
	assert.InDelta(t, 77.6406, all[0].Position.Lng, 1e-9)
	assert.Nil(t, all[1].Position)

	got, err := svc.Get(ctx, unlocated.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unlocated Hospital", got.Name)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
