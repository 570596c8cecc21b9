package reconcile

import (
	"github.com/samber/lo"

	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/snapshot"
)

// Change is one runner/station entry of a merge report.
type Change struct {
	Station race.Station `json:"station"`
	Runner  int          `json:"runner"`
	Kind    Kind         `json:"kind"`
	// Changed is false only for a terminal conflict the local record won.
	Changed bool               `json:"changed"`
	Before  *race.RunnerRecord `json:"before,omitempty"`
	After   race.RunnerRecord  `json:"after"`
}

// ConfigConflict is a race configuration field where the two sides disagree.
// The local value is kept.
type ConfigConflict struct {
	Field    string `json:"field"`
	Local    string `json:"local"`
	Incoming string `json:"incoming"`
}

// Report describes everything a merge did. Every record whose resolved value
// differs from the prior local one appears exactly once in Changes.
type Report struct {
	SnapshotID      string              `json:"snapshotId,omitempty"`
	ExportType      snapshot.ExportType `json:"exportType"`
	Changes         []Change            `json:"changes"`
	ConfigChanged   bool                `json:"configChanged"`
	ConfigConflicts []ConfigConflict    `json:"configConflicts"`
	StationsAdded   []race.Station      `json:"stationsAdded"`
	Warnings        []snapshot.Warning  `json:"warnings"`
	Skipped         int                 `json:"skipped"`
}

// Count returns how many changed entries carry kind.
func (r *Report) Count(kind Kind) int {
	return lo.CountBy(r.Changes, func(c Change) bool { return c.Changed && c.Kind == kind })
}

// ChangedCount returns the number of records the merge changed.
func (r *Report) ChangedCount() int {
	return lo.CountBy(r.Changes, func(c Change) bool { return c.Changed })
}

// Conflicts returns the terminal conflicts, whichever side won.
func (r *Report) Conflicts() []Change {
	return lo.Filter(r.Changes, func(c Change, _ int) bool { return c.Kind == TerminalConflict })
}

// ChangedStations returns the stations with at least one changed record.
func (r *Report) ChangedStations() []race.Station {
	changed := lo.Filter(r.Changes, func(c Change, _ int) bool { return c.Changed })
	return lo.Uniq(lo.Map(changed, func(c Change, _ int) race.Station { return c.Station }))
}

// NoOp reports whether the merge left local data exactly as it was.
func (r *Report) NoOp() bool {
	return r.ChangedCount() == 0 && !r.ConfigChanged
}
