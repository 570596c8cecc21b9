// Package station runs one station's view of a race: the operator actions on
// its own ledger, snapshot export and import, and persistence through a
// Repository.
package station

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/reconcile"
	"github.com/padraicbc/stationsync/snapshot"
)

// view is one consistent, immutable state of the race.
type view struct {
	cfg     *race.Config
	ledgers *race.LedgerSet
}

// Service is a station's handle on one race. Readers never block; writers
// are serialized and publish a new view when their change is persisted.
type Service struct {
	repo Repository
	rc   race.Context
	log  *zap.Logger
	now  func() time.Time

	mu   sync.Mutex
	view atomic.Pointer[view]
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default is the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func newService(repo Repository, rc race.Context, opts []Option) *Service {
	s := &Service{repo: repo, rc: rc, log: zap.L(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(zap.String("race", rc.RaceID), zap.Stringer("station", rc.Station))
	return s
}

// Open loads an existing race and makes sure this station's ledger holds a
// record for every registered runner.
func Open(ctx context.Context, repo Repository, rc race.Context, opts ...Option) (*Service, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	s := newService(repo, rc, opts)
	cfg, err := repo.LoadRaceConfig(ctx, rc.RaceID)
	if err != nil {
		return nil, fmt.Errorf("loading race %s: %w", rc.RaceID, err)
	}
	if err := cfg.CheckStation(rc.Station); err != nil {
		return nil, err
	}
	stations, err := repo.ListStations(ctx, rc.RaceID)
	if err != nil {
		return nil, fmt.Errorf("listing stations of race %s: %w", rc.RaceID, err)
	}
	ledgers := race.NewLedgerSet()
	for _, st := range stations {
		l, err := repo.LoadLedger(ctx, rc.RaceID, st)
		if err != nil {
			return nil, fmt.Errorf("loading %s ledger: %w", st, err)
		}
		ledgers = ledgers.With(l)
	}
	if err := s.initialize(ctx, repo, cfg, &ledgers); err != nil {
		return nil, err
	}
	s.view.Store(&view{cfg: cfg, ledgers: ledgers})
	s.log.Debug("race opened", zap.Int("stations", ledgers.Len()))
	return s, nil
}

// Setup creates a race from cfg and opens it.
func Setup(ctx context.Context, repo Repository, rc race.Context, cfg *race.Config, opts ...Option) (*Service, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ID != rc.RaceID {
		return nil, race.Errorf(race.CodeRaceMismatch, "configuration is for race %s, not %s", cfg.ID, rc.RaceID)
	}
	if err := cfg.CheckStation(rc.Station); err != nil {
		return nil, err
	}
	if _, err := repo.LoadRaceConfig(ctx, cfg.ID); err == nil {
		return nil, race.Errorf(race.CodeInvalidConfig, "race %s already exists", cfg.ID)
	} else if race.CodeOf(err) != race.CodeNotFound {
		return nil, fmt.Errorf("checking race %s: %w", cfg.ID, err)
	}

	s := newService(repo, rc, opts)
	cfg = cfg.Clone()
	ledgers := race.NewLedgerSet()
	err := repo.Transact(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.SaveRaceConfig(ctx, cfg); err != nil {
			return fmt.Errorf("saving race %s: %w", cfg.ID, err)
		}
		return s.initialize(ctx, tx, cfg, &ledgers)
	})
	if err != nil {
		return nil, err
	}
	s.view.Store(&view{cfg: cfg, ledgers: ledgers})
	s.log.Info("race created", zap.Int("runners", len(cfg.Runners.All())), zap.Int("checkpoints", len(cfg.Checkpoints)))
	return s, nil
}

// initialize adds the missing not_started records of the own ledger and
// persists only those.
func (s *Service) initialize(ctx context.Context, repo Repository, cfg *race.Config, ledgers **race.LedgerSet) error {
	own := (*ledgers).Get(s.rc.Station)
	next := race.InitializeLedger(own, s.rc.Station, cfg.Runners.All())
	if next == own {
		return nil
	}
	var added []race.RunnerRecord
	for _, rec := range next.Records() {
		if _, ok := own.Get(rec.RunnerNumber); !ok {
			added = append(added, rec)
		}
	}
	if err := repo.SaveLedger(ctx, s.rc.RaceID, race.NewLedger(s.rc.Station, added...)); err != nil {
		return fmt.Errorf("initializing %s ledger: %w", s.rc.Station, err)
	}
	*ledgers = (*ledgers).With(next)
	return nil
}

func (s *Service) current() *view { return s.view.Load() }

// Context returns the race and station this service works for.
func (s *Service) Context() race.Context { return s.rc }

// Config returns the current race configuration. Callers must not modify it.
func (s *Service) Config() *race.Config { return s.current().cfg }

// Ledgers returns every known station ledger.
func (s *Service) Ledgers() *race.LedgerSet { return s.current().ledgers }

// Ledger returns one station's ledger, nil when the station was never seen.
func (s *Service) Ledger(st race.Station) *race.Ledger { return s.current().ledgers.Get(st) }

// Snapshot returns the configuration and ledgers of one consistent view.
func (s *Service) Snapshot() (*race.Config, *race.LedgerSet) {
	v := s.current()
	return v.cfg, v.ledgers
}

type mutation func(l *race.Ledger, cfg *race.Config, now time.Time) (*race.Ledger, race.RunnerRecord, error)

// mutate applies an operator action to the own ledger, persists the changed
// record and publishes the new view.
func (s *Service) mutate(ctx context.Context, action string, runner int, fn mutation) (race.RunnerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.current()
	next, rec, err := fn(v.ledgers.Get(s.rc.Station), v.cfg, s.now())
	if err != nil {
		return rec, err
	}
	if err := s.repo.PutRecord(ctx, s.rc.RaceID, rec); err != nil {
		return rec, fmt.Errorf("saving runner %d: %w", runner, err)
	}
	s.view.Store(&view{cfg: v.cfg, ledgers: v.ledgers.With(next)})
	s.log.Debug(action, zap.Int("runner", runner), zap.Stringer("status", rec.Status))
	return rec, nil
}

// CallIn records a runner sighted approaching the checkpoint. A zero at uses
// the current time.
func (s *Service) CallIn(ctx context.Context, runner int, at time.Time) (race.RunnerRecord, error) {
	return s.mutate(ctx, "call in", runner, func(l *race.Ledger, cfg *race.Config, now time.Time) (*race.Ledger, race.RunnerRecord, error) {
		if at.IsZero() {
			at = now
		}
		return l.CallIn(cfg, runner, at, now)
	})
}

// MarkPassed marks the runner through the station. A nil markOff uses the
// current time.
func (s *Service) MarkPassed(ctx context.Context, runner int, callIn, markOff *time.Time) (race.RunnerRecord, error) {
	return s.mutate(ctx, "mark passed", runner, func(l *race.Ledger, cfg *race.Config, now time.Time) (*race.Ledger, race.RunnerRecord, error) {
		return l.MarkPassed(cfg, runner, callIn, markOff, now)
	})
}

// CorrectTime replaces the recorded time of a passed runner.
func (s *Service) CorrectTime(ctx context.Context, runner int, at time.Time) (race.RunnerRecord, error) {
	return s.mutate(ctx, "correct time", runner, func(l *race.Ledger, cfg *race.Config, now time.Time) (*race.Ledger, race.RunnerRecord, error) {
		return l.CorrectTime(cfg, runner, at, now)
	})
}

// MarkStatus records non_starter, dnf or withdrawn.
func (s *Service) MarkStatus(ctx context.Context, runner int, status race.Status, notes string) (race.RunnerRecord, error) {
	return s.mutate(ctx, "mark status", runner, func(l *race.Ledger, cfg *race.Config, now time.Time) (*race.Ledger, race.RunnerRecord, error) {
		return l.MarkStatus(cfg, runner, status, notes, now)
	})
}

// Unmark resets the runner to not_started.
func (s *Service) Unmark(ctx context.Context, runner int) (race.RunnerRecord, error) {
	return s.mutate(ctx, "unmark", runner, func(l *race.Ledger, cfg *race.Config, now time.Time) (*race.Ledger, race.RunnerRecord, error) {
		return l.Unmark(cfg, runner, now)
	})
}

// Imports returns the snapshots this station has imported for the race.
func (s *Service) Imports(ctx context.Context) ([]ImportRecord, error) {
	return s.repo.ListImports(ctx, s.rc.RaceID)
}

// Export encodes the current view. Checkpoint results default to this
// station's ledger.
func (s *Service) Export(t snapshot.ExportType, opts ...snapshot.Option) ([]byte, error) {
	cfg, ledgers := s.Snapshot()
	opts = append([]snapshot.Option{
		snapshot.WithType(t),
		snapshot.WithExportedBy(s.rc.Station),
		snapshot.WithClock(s.now),
	}, opts...)
	payload, err := snapshot.Encode(cfg, ledgers, opts...)
	if err != nil {
		return nil, err
	}
	s.log.Info("snapshot exported", zap.String("type", string(t)), zap.Int("bytes", len(payload)))
	return payload, nil
}

// Import merges a payload into the local race. A payload that cannot be
// decoded or belongs to another race changes nothing.
func (s *Service) Import(ctx context.Context, payload []byte) (*reconcile.Report, error) {
	snap, err := snapshot.Decode(payload)
	if err != nil {
		s.log.Warn("import rejected", zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.current()
	if snap.Config.ID != v.cfg.ID {
		return nil, race.Errorf(race.CodeRaceMismatch,
			"snapshot is for race %s, this station runs %s", snap.Config.ID, v.cfg.ID)
	}

	res := reconcile.Merge(reconcile.Input{Config: v.cfg, Ledgers: v.ledgers}, snap)
	ledgers := res.Ledgers
	report := res.Report

	err = s.repo.Transact(ctx, func(ctx context.Context, tx Repository) error {
		if report.ConfigChanged {
			if err := tx.SaveRaceConfig(ctx, res.Config); err != nil {
				return fmt.Errorf("saving race %s: %w", res.Config.ID, err)
			}
		}
		byStation := lo.GroupBy(
			lo.Filter(report.Changes, func(c reconcile.Change, _ int) bool { return c.Changed }),
			func(c reconcile.Change) race.Station { return c.Station })
		for _, st := range report.ChangedStations() {
			recs := lo.Map(byStation[st], func(c reconcile.Change, _ int) race.RunnerRecord { return c.After })
			if err := tx.SaveLedger(ctx, s.rc.RaceID, race.NewLedger(st, recs...)); err != nil {
				return fmt.Errorf("saving %s ledger: %w", st, err)
			}
		}
		if err := s.initialize(ctx, tx, res.Config, &ledgers); err != nil {
			return err
		}
		return tx.RecordImport(ctx, ImportRecord{
			ID:            uuid.NewString(),
			RaceID:        s.rc.RaceID,
			Station:       s.rc.Station,
			SnapshotID:    snap.ID,
			ExportType:    snap.Type,
			ExportedBy:    snap.ExportedBy,
			ImportedAt:    s.now().UTC(),
			Changed:       report.ChangedCount(),
			Conflicts:     len(report.Conflicts()),
			Skipped:       report.Skipped,
			ConfigChanged: report.ConfigChanged,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("importing snapshot %s: %w", snap.ID, err)
	}
	s.view.Store(&view{cfg: res.Config, ledgers: ledgers})

	s.log.Info("snapshot imported",
		zap.String("snapshot", snap.ID),
		zap.String("type", string(snap.Type)),
		zap.Int("changed", report.ChangedCount()),
		zap.Int("added", report.Count(reconcile.Added)),
		zap.Int("advanced", report.Count(reconcile.Advanced)),
		zap.Int("replaced", report.Count(reconcile.RecencyReplaced)),
		zap.Int("skipped", report.Skipped),
		zap.Bool("configChanged", report.ConfigChanged),
	)
	for _, c := range report.Conflicts() {
		s.log.Warn("terminal status conflict",
			zap.Stringer("at", c.Station),
			zap.Int("runner", c.Runner),
			zap.Stringer("kept", c.After.Status),
			zap.Bool("localKept", !c.Changed),
		)
	}
	for _, c := range report.ConfigConflicts {
		s.log.Warn("race configuration conflict",
			zap.String("field", c.Field), zap.String("local", c.Local), zap.String("incoming", c.Incoming))
	}
	return report, nil
}
