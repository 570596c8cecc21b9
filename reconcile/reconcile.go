// Package reconcile merges an incoming snapshot into a station's local race
// data. Merge is deterministic, commutative over ledgers and idempotent: the
// resolved record of every runner at every station is the greater of the two
// sides under Compare.
package reconcile

import (
	"github.com/samber/lo"

	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/snapshot"
)

// Input is the local side of a merge. A nil Config adopts the incoming one.
type Input struct {
	Config  *race.Config
	Ledgers *race.LedgerSet
}

// Result holds the merged data and what the merge did. Config and Ledgers
// share structure with the inputs wherever nothing changed.
type Result struct {
	Config  *race.Config
	Ledgers *race.LedgerSet
	Report  *Report
}

// Merge folds incoming into local. Neither side is modified.
func Merge(local Input, incoming *snapshot.Snapshot) Result {
	report := &Report{
		SnapshotID: incoming.ID,
		ExportType: incoming.Type,
		Changes:    []Change{},
		Warnings:   append([]snapshot.Warning(nil), incoming.Warnings...),
		Skipped:    incoming.Skipped,
	}

	cfg := mergeConfig(local.Config, incoming.Config, report)

	ledgers := local.Ledgers
	if ledgers == nil {
		ledgers = race.NewLedgerSet()
	}
	if incoming.Ledgers == nil {
		return Result{Config: cfg, Ledgers: ledgers, Report: report}
	}

	for _, in := range incoming.Ledgers.Ledgers() {
		st := in.Station()
		if !cfg.HasStation(st) {
			report.Skipped += in.Len()
			stRef := st
			report.Warnings = append(report.Warnings, snapshot.Warning{
				Station: &stRef,
				Message: "station is not in the race configuration, ledger skipped",
			})
			continue
		}
		if !ledgers.Has(st) {
			report.StationsAdded = append(report.StationsAdded, st)
		}
		if merged, changed := mergeLedger(ledgers.Get(st), in, report); changed {
			ledgers = ledgers.With(merged)
		}
	}
	return Result{Config: cfg, Ledgers: ledgers, Report: report}
}

// mergeLedger resolves every runner the incoming ledger carries. Runners only
// the local side knows are left alone.
func mergeLedger(local, incoming *race.Ledger, report *Report) (*race.Ledger, bool) {
	st := incoming.Station()
	var updates []race.RunnerRecord
	for _, runner := range incoming.Runners() {
		in, _ := incoming.Get(runner)
		var before *race.RunnerRecord
		if rec, ok := local.Get(runner); ok {
			before = &rec
		}
		after, kind := Resolve(before, &in)
		changed := before == nil || !before.Equal(after)
		if !changed && kind != TerminalConflict {
			continue
		}
		report.Changes = append(report.Changes, Change{
			Station: st,
			Runner:  runner,
			Kind:    kind,
			Changed: changed,
			Before:  before,
			After:   after,
		})
		if changed {
			updates = append(updates, after)
		}
	}
	if local == nil {
		return race.NewLedger(st, updates...), true
	}
	if len(updates) == 0 {
		return local, false
	}
	return local.PutAll(updates), true
}

func mergeConfig(local, incoming *race.Config, report *Report) *race.Config {
	if incoming == nil {
		return local
	}
	if local == nil {
		report.ConfigChanged = true
		return incoming.Clone()
	}

	out := local.Clone()
	changed := false

	scalar := func(field string, dst *string, in string) {
		switch {
		case in == "" || *dst == in:
		case *dst == "":
			*dst = in
			changed = true
		default:
			report.ConfigConflicts = append(report.ConfigConflicts,
				ConfigConflict{Field: field, Local: *dst, Incoming: in})
		}
	}
	scalar("id", &out.ID, incoming.ID)
	scalar("name", &out.Name, incoming.Name)
	scalar("date", &out.Date, incoming.Date)
	scalar("startTime", &out.StartTime, incoming.StartTime)

	for _, cp := range incoming.Checkpoints {
		_, idx, ok := lo.FindIndexOf(out.Checkpoints, func(c race.Checkpoint) bool { return c.Number == cp.Number })
		if !ok {
			out.Checkpoints = append(out.Checkpoints, cp)
			changed = true
			continue
		}
		scalar(race.CheckpointStation(cp.Number).String()+".name", &out.Checkpoints[idx].Name, cp.Name)
	}

	if !out.Runners.Equal(incoming.Runners) {
		union := out.Runners.Union(incoming.Runners)
		if !union.Equal(out.Runners) {
			out.Runners = union
			changed = true
		}
	}

	if !changed {
		return local
	}
	report.ConfigChanged = true
	return out
}
