// Package aggregate derives read-only race views from station ledgers. Every
// function recomputes from the ledgers it is given and never modifies them.
package aggregate

import (
	"time"

	"github.com/samber/lo"

	"github.com/padraicbc/stationsync/race"
)

// Passage is a runner's state at one station.
type Passage struct {
	Station race.Station `json:"station"`
	Name    string       `json:"name"`
	Status  race.Status  `json:"status"`
	Time    *time.Time   `json:"time,omitempty"`
	// Known is false when this station's ledger has not been seen at all.
	Known bool `json:"known"`
}

// Progress is a runner's course, checkpoints in course order then the base
// station.
type Progress struct {
	Runner      int           `json:"runner"`
	Passages    []Passage     `json:"passages"`
	PassedAll   bool          `json:"passedAll"`
	Retired     bool          `json:"retired"`
	LastStation *race.Station `json:"lastStation,omitempty"`
}

// RunnerProgress lists the runner's state at every configured station.
func RunnerProgress(cfg *race.Config, set *race.LedgerSet, runner int) (Progress, error) {
	if cfg == nil {
		return Progress{}, race.ErrNoActiveContext
	}
	if err := cfg.CheckRunner(runner); err != nil {
		return Progress{}, err
	}
	p := Progress{
		Runner: runner,
		Passages: lo.Map(cfg.Stations(), func(st race.Station, _ int) Passage {
			rec := set.Get(st).Record(runner)
			return Passage{
				Station: st,
				Name:    cfg.StationName(st),
				Status:  rec.Status,
				Time:    rec.RecordedTime,
				Known:   set.Has(st),
			}
		}),
		PassedAll: HasPassedAll(cfg, set, runner),
	}
	p.Retired = lo.SomeBy(p.Passages, func(ps Passage) bool { return ps.Status.Terminal() })
	if last, ok := furthest(cfg, set, runner); ok {
		p.LastStation = &last
	}
	return p, nil
}

// HasPassedAll reports whether the runner is passed at every configured
// checkpoint. The base station does not count.
func HasPassedAll(cfg *race.Config, set *race.LedgerSet, runner int) bool {
	if cfg == nil || len(cfg.Checkpoints) == 0 {
		return false
	}
	return lo.EveryBy(cfg.Checkpoints, func(cp race.Checkpoint) bool {
		return set.Get(race.CheckpointStation(cp.Number)).Record(runner).Status == race.Passed
	})
}

// furthest returns the last checkpoint in course order the runner passed.
func furthest(cfg *race.Config, set *race.LedgerSet, runner int) (race.Station, bool) {
	passed := lo.Filter(cfg.Checkpoints, func(cp race.Checkpoint, _ int) bool {
		return set.Get(race.CheckpointStation(cp.Number)).Record(runner).Status == race.Passed
	})
	if len(passed) == 0 {
		return 0, false
	}
	return race.CheckpointStation(passed[len(passed)-1].Number), true
}

// Counts tallies one station's records over the race's runners.
type Counts struct {
	Station    race.Station `json:"station"`
	Name       string       `json:"name"`
	Known      bool         `json:"known"`
	Runners    int          `json:"runners"`
	NotStarted int          `json:"notStarted"`
	CalledIn   int          `json:"calledIn"`
	Passed     int          `json:"passed"`
	NonStarter int          `json:"nonStarter"`
	DNF        int          `json:"dnf"`
	Withdrawn  int          `json:"withdrawn"`
}

// Accounted returns how many runners have a final state at the station.
func (c Counts) Accounted() int {
	return c.Passed + c.NonStarter + c.DNF + c.Withdrawn
}

// StationCounts tallies every configured station. Runners without a record
// count as not started.
func StationCounts(cfg *race.Config, set *race.LedgerSet) []Counts {
	if cfg == nil {
		return nil
	}
	runners := cfg.Runners.All()
	return lo.Map(cfg.Stations(), func(st race.Station, _ int) Counts {
		l := set.Get(st)
		c := Counts{Station: st, Name: cfg.StationName(st), Known: set.Has(st), Runners: len(runners)}
		for _, n := range runners {
			switch l.Record(n).Status {
			case race.NotStarted:
				c.NotStarted++
			case race.CalledIn:
				c.CalledIn++
			case race.Passed:
				c.Passed++
			case race.NonStarter:
				c.NonStarter++
			case race.DNF:
				c.DNF++
			case race.Withdrawn:
				c.Withdrawn++
			}
		}
		return c
	})
}

// RunnerSummary is one row of the race overview.
type RunnerSummary struct {
	Runner int `json:"runner"`
	// Furthest is the last checkpoint in course order the runner passed.
	Furthest   *race.Station `json:"furthest,omitempty"`
	LastPassed *time.Time    `json:"lastPassed,omitempty"`
	// Status is the terminal status recorded anywhere, else passed when the
	// runner passed any station including the base, else called_in.
	Status    race.Status `json:"status"`
	PassedAll bool        `json:"passedAll"`
}

// Overview summarizes every registered runner, ordered by runner number.
func Overview(cfg *race.Config, set *race.LedgerSet) []RunnerSummary {
	if cfg == nil {
		return nil
	}
	return lo.Map(cfg.Runners.All(), func(n int, _ int) RunnerSummary {
		s := RunnerSummary{Runner: n, PassedAll: HasPassedAll(cfg, set, n)}
		if st, ok := furthest(cfg, set, n); ok {
			s.Furthest = &st
			s.Status = race.Passed
		}
		for _, st := range cfg.Stations() {
			rec := set.Get(st).Record(n)
			if rec.RecordedTime != nil && (s.LastPassed == nil || rec.RecordedTime.After(*s.LastPassed)) {
				s.LastPassed = rec.RecordedTime
			}
			switch {
			case rec.Status.Terminal():
				s.Status = rec.Status
			case rec.Status == race.Passed && !s.Status.Terminal():
				s.Status = race.Passed
			case s.Status == race.NotStarted && rec.Status == race.CalledIn:
				s.Status = race.CalledIn
			}
		}
		return s
	})
}

// Outstanding returns the runners not yet accounted for at st: neither passed
// nor given a terminal status there, and not retired at any other station.
func Outstanding(cfg *race.Config, set *race.LedgerSet, st race.Station) ([]int, error) {
	if cfg == nil {
		return nil, race.ErrNoActiveContext
	}
	if err := cfg.CheckStation(st); err != nil {
		return nil, err
	}
	stations := cfg.Stations()
	return lo.Filter(cfg.Runners.All(), func(n int, _ int) bool {
		switch set.Get(st).Record(n).Status {
		case race.NotStarted, race.CalledIn:
		default:
			return false
		}
		return !lo.SomeBy(stations, func(other race.Station) bool {
			return set.Get(other).Record(n).Status.Terminal()
		})
	}), nil
}
