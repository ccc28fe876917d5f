package catalog

import (
	"context"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

// Source provides trail candidates for grounding. The store-backed source is
// authoritative; the seed source is the compiled-in fallback. Both return the
// same Trail shape, so downstream code never knows which one answered.
type Source interface {
	Name() string
	Trails(ctx context.Context) ([]models.Trail, error)
}

// TrailLister is the slice of the store the catalog needs.
type TrailLister interface {
	ListTrails(ctx context.Context) ([]models.Trail, error)
}

// StoreSource reads candidates from the durable trail catalog.
type StoreSource struct {
	store TrailLister
}

// NewStoreSource creates the store-backed source.
func NewStoreSource(store TrailLister) *StoreSource {
	return &StoreSource{store: store}
}

func (s *StoreSource) Name() string { return "store" }

func (s *StoreSource) Trails(ctx context.Context) ([]models.Trail, error) {
	return s.store.ListTrails(ctx)
}

// SeedSource serves the compiled-in PNW starter set. It keeps grounding
// working when the database is empty or unreachable.
type SeedSource struct{}

func (SeedSource) Name() string { return "seed" }

func (SeedSource) Trails(ctx context.Context) ([]models.Trail, error) {
	return SeedTrails(), nil
}

// SeedTrails returns a fresh copy of the starter catalog.
func SeedTrails() []models.Trail {
	return []models.Trail{
		{
			Name:           "Mailbox Peak",
			Location:       "North Bend, WA",
			DistanceKm:     15.1,
			ElevationGainM: 1219,
			Difficulty:     5.0,
			Latitude:       47.4665,
			Longitude:      -121.6749,
			Features:       []string{"steep", "mailbox_at_top", "views"},
		},
		{
			Name:           "Rattlesnake Ledge",
			Location:       "North Bend, WA",
			DistanceKm:     6.4,
			ElevationGainM: 353,
			Difficulty:     2.5,
			Latitude:       47.4326,
			Longitude:      -121.7679,
			Features:       []string{"lake_view", "crowded", "easy"},
		},
		{
			Name:           "Mount Rainier (Skyline Trail)",
			Location:       "Paradise, WA",
			DistanceKm:     9.0,
			ElevationGainM: 518,
			Difficulty:     4.0,
			Latitude:       46.7861,
			Longitude:      -121.7350,
			Features:       []string{"glacier", "mountain", "wildflowers"},
		},
		{
			Name:           "Mount Si",
			Location:       "North Bend, WA",
			DistanceKm:     12.0,
			ElevationGainM: 960,
			Difficulty:     4.5,
			Latitude:       47.4881,
			Longitude:      -121.7225,
			Features:       []string{"classic", "forest", "rocky"},
		},
		{
			Name:           "Lake Serene",
			Location:       "Gold Bar, WA",
			DistanceKm:     13.2,
			ElevationGainM: 610,
			Difficulty:     3.5,
			Latitude:       47.7828,
			Longitude:      -121.5644,
			Features:       []string{"alpine_lake", "waterfall", "stairs"},
		},
	}
}
