package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/padraicbc/stationsync/race"
)

// RunnerRecord is one runner's stored state at one station. Times are unix
// nanoseconds so that no database rounds them.
type RunnerRecord struct {
	bun.BaseModel `bun:"table:runner_records,alias:rr"`

	ID           int64  `bun:"id,pk,autoincrement" json:"id"`
	RaceID       string `bun:"race_id,notnull,unique:runner_records_no_dupes" json:"raceID"`
	Station      int    `bun:"station,notnull,unique:runner_records_no_dupes" json:"station"`
	RunnerNumber int    `bun:"runner_number,notnull,unique:runner_records_no_dupes" json:"runnerNumber"`
	Status       string `bun:"status,notnull" json:"status"`
	CallInTime   *int64 `bun:"call_in_time" json:"callInTime,omitempty"`
	MarkOffTime  *int64 `bun:"mark_off_time" json:"markOffTime,omitempty"`
	LastModified int64  `bun:"last_modified,notnull" json:"lastModified"`
	Notes        string `bun:"notes,notnull" json:"notes"`
}

// NewRunnerRecord converts a runner record into its row.
func NewRunnerRecord(raceID string, rec race.RunnerRecord) RunnerRecord {
	row := RunnerRecord{
		RaceID:       raceID,
		Station:      rec.Station.Number(),
		RunnerNumber: rec.RunnerNumber,
		Status:       rec.Status.String(),
		CallInTime:   nanos(rec.CallInTime),
		MarkOffTime:  nanos(rec.RecordedTime),
		Notes:        rec.Notes,
	}
	if !rec.LastModified.IsZero() {
		row.LastModified = rec.LastModified.UnixNano()
	}
	return row
}

// Record converts the row back. The status was written by NewRunnerRecord,
// so a parse failure means the row was edited by hand.
func (r RunnerRecord) Record() (race.RunnerRecord, error) {
	status, err := race.ParseStatus(r.Status)
	if err != nil {
		return race.RunnerRecord{}, err
	}
	rec := race.NewRecord(race.Station(r.Station), r.RunnerNumber)
	rec.Status = status
	rec.CallInTime = fromNanos(r.CallInTime)
	rec.RecordedTime = fromNanos(r.MarkOffTime)
	rec.Notes = r.Notes
	if r.LastModified != 0 {
		rec.LastModified = time.Unix(0, r.LastModified).UTC()
	}
	return rec, nil
}

func nanos(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	n := t.UnixNano()
	return &n
}

func fromNanos(n *int64) *time.Time {
	if n == nil {
		return nil
	}
	t := time.Unix(0, *n).UTC()
	return &t
}
