package station

import (
	"context"
	"sync"

	"github.com/padraicbc/stationsync/race"
)

// Registry hands out the services of one station process, one per race,
// opening each on first use.
type Registry struct {
	repo    Repository
	station race.Station
	opts    []Option

	mu       sync.Mutex
	services map[string]*Service
}

func NewRegistry(repo Repository, st race.Station, opts ...Option) *Registry {
	return &Registry{repo: repo, station: st, opts: opts, services: make(map[string]*Service)}
}

// Station returns the station this process runs as.
func (r *Registry) Station() race.Station { return r.station }

// Get returns the service for raceID, opening it if needed.
func (r *Registry) Get(ctx context.Context, raceID string) (*Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.services[raceID]; ok {
		return s, nil
	}
	s, err := Open(ctx, r.repo, race.Context{RaceID: raceID, Station: r.station}, r.opts...)
	if err != nil {
		return nil, err
	}
	r.services[raceID] = s
	return s, nil
}

// Create sets up a new race and registers its service.
func (r *Registry) Create(ctx context.Context, cfg *race.Config) (*Service, error) {
	if cfg == nil {
		return nil, race.ErrInvalidConfig
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := Setup(ctx, r.repo, race.Context{RaceID: cfg.ID, Station: r.station}, cfg, r.opts...)
	if err != nil {
		return nil, err
	}
	r.services[cfg.ID] = s
	return s, nil
}
