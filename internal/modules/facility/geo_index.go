// README: Facility GEO index backed by Redis, used for radius searches.
package facility

import (
	"context"

	"github.com/redis/go-redis/v9"

	"lifeline/internal/types"
)

const facilityGeoKey = "lifeline:facilities"

type Hit struct {
	ID         types.ID
	DistanceKm float64
}

type GeoIndex struct {
	redis *redis.Client
}

func NewGeoIndex(redis *redis.Client) *GeoIndex {
	return &GeoIndex{redis: redis}
}

// Index adds or moves f. Facilities without coordinates are not indexed.
func (g *GeoIndex) Index(ctx context.Context, f Facility) error {
	if f.Position == nil {
		return nil
	}
	return g.redis.GeoAdd(ctx, facilityGeoKey, &redis.GeoLocation{
		Name:      string(f.ID),
		Longitude: f.Position.Lng,
		Latitude:  f.Position.Lat,
	}).Err()
}

func (g *GeoIndex) Remove(ctx context.Context, id types.ID) error {
	return g.redis.ZRem(ctx, facilityGeoKey, string(id)).Err()
}

// Nearby returns indexed facilities within radiusKm of p, nearest first.
func (g *GeoIndex) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]Hit, error) {
	results, err := g.redis.GeoRadius(ctx, facilityGeoKey, p.Lng, p.Lat, &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{ID: types.ID(r.Name), DistanceKm: r.Dist}
	}
	return hits, nil
}
