package station

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/reconcile"
	"github.com/padraicbc/stationsync/snapshot"
)

var (
	t0      = time.Date(2026, 5, 17, 8, 0, 0, 0, time.UTC)
	errBoom = errors.New("disk on fire")
)

func sampleConfig() *race.Config {
	return &race.Config{
		ID:          "fell-race-2026",
		Name:        "Fell Race",
		Date:        "2026-05-17",
		StartTime:   "08:00",
		Checkpoints: []race.Checkpoint{{Number: 1, Name: "Summit"}, {Number: 2, Name: "Ford"}},
		Runners:     race.RunnerSet{Ranges: []race.Range{{From: 100, To: 200}}},
	}
}

// ticker returns a clock advancing one second per call.
func ticker() func() time.Time {
	var mu sync.Mutex
	now := t0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func testOpts() []Option {
	return []Option{WithLogger(zap.NewNop()), WithClock(ticker())}
}

func setup(t *testing.T, repo Repository, st race.Station) *Service {
	t.Helper()
	cfg := sampleConfig()
	s, err := Setup(context.Background(), repo, race.Context{RaceID: cfg.ID, Station: st}, cfg, testOpts()...)
	require.NoError(t, err)
	return s
}

func TestSetupAndOpen(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := setup(t, repo, 1)

	assert.Equal(t, 101, s.Ledger(1).Len())
	assert.Equal(t, "Fell Race", s.Config().Name)

	reopened, err := Open(ctx, repo, race.Context{RaceID: "fell-race-2026", Station: 1}, testOpts()...)
	require.NoError(t, err)
	assert.True(t, s.Ledgers().Equal(reopened.Ledgers()))

	_, err = Setup(ctx, repo, race.Context{RaceID: "fell-race-2026", Station: 1}, sampleConfig(), testOpts()...)
	assert.ErrorIs(t, err, race.ErrInvalidConfig, "race exists")

	_, err = Open(ctx, repo, race.Context{RaceID: "nope", Station: 1}, testOpts()...)
	assert.ErrorIs(t, err, race.ErrNotFound)

	_, err = Open(ctx, repo, race.Context{Station: 1}, testOpts()...)
	assert.ErrorIs(t, err, race.ErrNoActiveContext)

	_, err = Open(ctx, repo, race.Context{RaceID: "fell-race-2026", Station: 7}, testOpts()...)
	assert.ErrorIs(t, err, race.ErrInvalidStation)

	other := sampleConfig()
	other.ID = "other"
	_, err = Setup(ctx, repo, race.Context{RaceID: "fell-race-2026", Station: 1}, other, testOpts()...)
	assert.ErrorIs(t, err, race.ErrRaceMismatch)
}

func TestOpenInitializesNewStation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	setup(t, repo, race.BaseStation)

	s, err := Open(ctx, repo, race.Context{RaceID: "fell-race-2026", Station: 2}, testOpts()...)
	require.NoError(t, err)
	assert.Equal(t, 101, s.Ledger(2).Len())
	assert.Equal(t, 101, s.Ledger(race.BaseStation).Len())

	stations, err := repo.ListStations(ctx, "fell-race-2026")
	require.NoError(t, err)
	assert.Equal(t, []race.Station{race.BaseStation, 2}, stations)
}

func TestOperatorActionsPersist(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := setup(t, repo, 1)

	rec, err := s.CallIn(ctx, 101, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, race.CalledIn, rec.Status)
	require.NotNil(t, rec.CallInTime)

	rec, err = s.MarkPassed(ctx, 101, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, race.Passed, rec.Status)
	require.NotNil(t, rec.CallInTime, "call-in kept")

	later := rec.RecordedTime.Add(time.Minute)
	_, err = s.CorrectTime(ctx, 101, later)
	require.NoError(t, err)

	_, err = s.MarkStatus(ctx, 102, race.DNF, "cramp")
	require.NoError(t, err)
	_, err = s.MarkStatus(ctx, 103, race.NonStarter, "")
	require.NoError(t, err)
	_, err = s.Unmark(ctx, 103)
	require.NoError(t, err)

	reopened, err := Open(ctx, repo, s.Context(), testOpts()...)
	require.NoError(t, err)
	assert.True(t, s.Ledgers().Equal(reopened.Ledgers()))
	r101 := reopened.Ledger(1).Record(101)
	assert.True(t, r101.RecordedTime.Equal(later))
	assert.Equal(t, "cramp", reopened.Ledger(1).Record(102).Notes)
	assert.Equal(t, race.NotStarted, reopened.Ledger(1).Record(103).Status)
}

func TestOperatorErrorsLeaveViewUnchanged(t *testing.T) {
	ctx := context.Background()
	s := setup(t, NewMemoryRepository(), 1)
	before := s.Ledgers()

	_, err := s.MarkPassed(ctx, 9999, nil, nil)
	assert.ErrorIs(t, err, race.ErrInvalidRunner)
	_, err = s.MarkStatus(ctx, 101, race.Withdrawn, "")
	assert.ErrorIs(t, err, race.ErrInvalidStatus)
	_, err = s.CorrectTime(ctx, 101, t0)
	assert.ErrorIs(t, err, race.ErrInvalidTransition)
	assert.Same(t, before, s.Ledgers())
}

type failingRepo struct {
	*MemoryRepository
	failPut    bool
	failImport bool
}

func (f *failingRepo) PutRecord(ctx context.Context, raceID string, rec race.RunnerRecord) error {
	if f.failPut {
		return errBoom
	}
	return f.MemoryRepository.PutRecord(ctx, raceID, rec)
}

func (f *failingRepo) Transact(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	return f.MemoryRepository.Transact(ctx, func(ctx context.Context, tx Repository) error {
		return fn(ctx, &failingTx{Repository: tx, failImport: f.failImport})
	})
}

type failingTx struct {
	Repository
	failImport bool
}

func (f *failingTx) RecordImport(ctx context.Context, rec ImportRecord) error {
	if f.failImport {
		return errBoom
	}
	return f.Repository.RecordImport(ctx, rec)
}

func TestPersistFailureLeavesViewUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{MemoryRepository: NewMemoryRepository()}
	s := setup(t, repo, 1)
	before := s.Ledgers()

	repo.failPut = true
	_, err := s.MarkPassed(ctx, 101, nil, nil)
	assert.ErrorIs(t, err, errBoom)
	assert.Same(t, before, s.Ledgers())
}

func TestExportImportBetweenStations(t *testing.T) {
	ctx := context.Background()
	baseRepo := NewMemoryRepository()
	base := setup(t, baseRepo, race.BaseStation)
	cp1 := setup(t, NewMemoryRepository(), 1)

	_, err := cp1.MarkPassed(ctx, 101, nil, nil)
	require.NoError(t, err)
	_, err = cp1.MarkStatus(ctx, 150, race.DNF, "")
	require.NoError(t, err)

	payload, err := cp1.Export(snapshot.CheckpointResults)
	require.NoError(t, err)

	report, err := base.Import(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, []race.Station{1}, report.StationsAdded)
	assert.Equal(t, 101, report.Count(reconcile.Added))
	assert.Empty(t, report.Conflicts())
	assert.Equal(t, race.Passed, base.Ledger(1).Record(101).Status)
	assert.Equal(t, race.DNF, base.Ledger(1).Record(150).Status)

	again, err := base.Import(ctx, payload)
	require.NoError(t, err)
	assert.True(t, again.NoOp())

	imports, err := base.Imports(ctx)
	require.NoError(t, err)
	require.Len(t, imports, 2)
	assert.Equal(t, 101, imports[0].Changed)
	assert.Zero(t, imports[1].Changed)
	require.NotNil(t, imports[0].ExportedBy)
	assert.Equal(t, race.Station(1), *imports[0].ExportedBy)
	assert.NotEmpty(t, imports[0].ID)

	reopened, err := Open(ctx, baseRepo, base.Context(), testOpts()...)
	require.NoError(t, err)
	assert.True(t, base.Ledgers().Equal(reopened.Ledgers()))
}

func TestImportRejections(t *testing.T) {
	ctx := context.Background()
	s := setup(t, NewMemoryRepository(), race.BaseStation)
	before := s.Ledgers()

	_, err := s.Import(ctx, []byte("not a snapshot"))
	assert.ErrorIs(t, err, race.ErrMalformedPayload)

	other := sampleConfig()
	other.ID = "another-race"
	payload, err := snapshot.Encode(other, race.NewLedgerSet())
	require.NoError(t, err)
	_, err = s.Import(ctx, payload)
	assert.ErrorIs(t, err, race.ErrRaceMismatch)

	assert.Same(t, before, s.Ledgers())
}

func TestImportIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{MemoryRepository: NewMemoryRepository()}
	base := setup(t, repo, race.BaseStation)
	cp1 := setup(t, NewMemoryRepository(), 1)
	_, err := cp1.MarkPassed(ctx, 101, nil, nil)
	require.NoError(t, err)
	payload, err := cp1.Export(snapshot.FullRaceData)
	require.NoError(t, err)

	before := base.Ledgers()
	repo.failImport = true
	_, err = base.Import(ctx, payload)
	assert.ErrorIs(t, err, errBoom)
	assert.Same(t, before, base.Ledgers())

	stations, err := repo.ListStations(ctx, "fell-race-2026")
	require.NoError(t, err)
	assert.Equal(t, []race.Station{race.BaseStation}, stations, "nothing written")
	imports, err := repo.ListImports(ctx, "fell-race-2026")
	require.NoError(t, err)
	assert.Empty(t, imports)
}

func TestImportGrowsRaceAndOwnLedger(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := setup(t, repo, 1)

	bigger := sampleConfig()
	bigger.Runners = race.RunnerSet{Ranges: []race.Range{{From: 100, To: 210}}}
	bigger.Checkpoints = append(bigger.Checkpoints, race.Checkpoint{Number: 3, Name: "Col"})
	payload, err := snapshot.Encode(bigger, race.NewLedgerSet(), snapshot.WithType(snapshot.RaceConfig))
	require.NoError(t, err)

	report, err := s.Import(ctx, payload)
	require.NoError(t, err)
	assert.True(t, report.ConfigChanged)
	assert.Equal(t, 111, s.Ledger(1).Len())
	assert.Equal(t, []race.Station{1, 2, 3, race.BaseStation}, s.Config().Stations())

	reopened, err := Open(ctx, repo, s.Context(), testOpts()...)
	require.NoError(t, err)
	assert.Equal(t, 111, reopened.Ledger(1).Len())
	assert.True(t, reopened.Config().Runners.Contains(210))
}

func TestReadersSeeConsistentViews(t *testing.T) {
	ctx := context.Background()
	s := setup(t, NewMemoryRepository(), 1)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cfg, ledgers := s.Snapshot()
				if ledgers.Get(1).Len() != len(cfg.Runners.All()) {
					t.Error("ledger and configuration out of step")
					return
				}
			}
		}()
	}
	for n := 100; n <= 200; n++ {
		_, err := s.MarkPassed(ctx, n, nil, nil)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 101, len(s.Ledger(1).Runners()))
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryRepository(), 2, testOpts()...)
	assert.Equal(t, race.Station(2), reg.Station())

	_, err := reg.Get(ctx, "fell-race-2026")
	assert.ErrorIs(t, err, race.ErrNotFound)

	created, err := reg.Create(ctx, sampleConfig())
	require.NoError(t, err)
	got, err := reg.Get(ctx, "fell-race-2026")
	require.NoError(t, err)
	assert.Same(t, created, got)

	_, err = reg.Create(ctx, nil)
	assert.ErrorIs(t, err, race.ErrInvalidConfig)
}
