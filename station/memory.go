package station

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/padraicbc/stationsync/race"
)

type memState struct {
	configs map[string]*race.Config
	records map[string]map[race.Station]*race.Ledger
	imports []ImportRecord
}

func newMemState() *memState {
	return &memState{
		configs: make(map[string]*race.Config),
		records: make(map[string]map[race.Station]*race.Ledger),
	}
}

// clone copies the maps; configs and ledgers are immutable and shared.
func (s *memState) clone() *memState {
	out := &memState{
		configs: maps.Clone(s.configs),
		records: make(map[string]map[race.Station]*race.Ledger, len(s.records)),
		imports: slices.Clone(s.imports),
	}
	for id, byStation := range s.records {
		out.records[id] = maps.Clone(byStation)
	}
	return out
}

// MemoryRepository keeps everything in process memory. It backs tests and
// the offline file merge of stationctl.
type MemoryRepository struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: newMemState()}
}

func (m *MemoryRepository) LoadRaceConfig(ctx context.Context, raceID string) (*race.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.state).LoadRaceConfig(ctx, raceID)
}

func (m *MemoryRepository) SaveRaceConfig(ctx context.Context, cfg *race.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.state).SaveRaceConfig(ctx, cfg)
}

func (m *MemoryRepository) LoadLedger(ctx context.Context, raceID string, st race.Station) (*race.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.state).LoadLedger(ctx, raceID, st)
}

func (m *MemoryRepository) SaveLedger(ctx context.Context, raceID string, l *race.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.state).SaveLedger(ctx, raceID, l)
}

func (m *MemoryRepository) PutRecord(ctx context.Context, raceID string, rec race.RunnerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.state).PutRecord(ctx, raceID, rec)
}

func (m *MemoryRepository) ListStations(ctx context.Context, raceID string) ([]race.Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.state).ListStations(ctx, raceID)
}

func (m *MemoryRepository) RecordImport(ctx context.Context, rec ImportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.state).RecordImport(ctx, rec)
}

func (m *MemoryRepository) ListImports(ctx context.Context, raceID string) ([]ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*memTx)(m.state).ListImports(ctx, raceID)
}

// Transact runs fn on a private copy of the state and installs the copy only
// when fn succeeds. Other callers wait for the transaction to finish.
func (m *MemoryRepository) Transact(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(ctx, (*memTx)(work)); err != nil {
		return err
	}
	m.state = work
	return nil
}

// memTx operates on a state without locking.
type memTx memState

func (t *memTx) LoadRaceConfig(ctx context.Context, raceID string) (*race.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg, ok := t.configs[raceID]
	if !ok {
		return nil, race.Errorf(race.CodeNotFound, "race %s not found", raceID)
	}
	return cfg.Clone(), nil
}

func (t *memTx) SaveRaceConfig(ctx context.Context, cfg *race.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.configs[cfg.ID] = cfg.Clone()
	return nil
}

func (t *memTx) LoadLedger(ctx context.Context, raceID string, st race.Station) (*race.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l, ok := t.records[raceID][st]; ok {
		return l, nil
	}
	return race.NewLedger(st), nil
}

func (t *memTx) SaveLedger(ctx context.Context, raceID string, l *race.Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	byStation, ok := t.records[raceID]
	if !ok {
		byStation = make(map[race.Station]*race.Ledger)
		t.records[raceID] = byStation
	}
	st := l.Station()
	if prev, ok := byStation[st]; ok {
		byStation[st] = prev.PutAll(l.Records())
	} else {
		byStation[st] = race.NewLedger(st, l.Records()...)
	}
	return nil
}

func (t *memTx) PutRecord(ctx context.Context, raceID string, rec race.RunnerRecord) error {
	return t.SaveLedger(ctx, raceID, race.NewLedger(rec.Station, rec))
}

func (t *memTx) ListStations(ctx context.Context, raceID string) ([]race.Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(t.records[raceID])), nil
}

func (t *memTx) RecordImport(ctx context.Context, rec ImportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.imports = append(t.imports, rec)
	return nil
}

func (t *memTx) ListImports(ctx context.Context, raceID string) ([]ImportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []ImportRecord
	for _, rec := range t.imports {
		if rec.RaceID == raceID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t *memTx) Transact(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	return fn(ctx, t)
}
