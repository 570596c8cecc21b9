package race

import "time"

// RunnerRecord is one runner's state at one station.
type RunnerRecord struct {
	RunnerNumber int        `json:"runnerNumber"`
	Station      Station    `json:"station"`
	Status       Status     `json:"status"`
	CallInTime   *time.Time `json:"callInTime,omitempty"`
	RecordedTime *time.Time `json:"markOffTime,omitempty"`
	// LastModified is set on every local mutation. The zero value sorts
	// before every real modification.
	LastModified time.Time `json:"lastModified"`
	Notes        string    `json:"notes,omitempty"`
}

// NewRecord returns the implicit not_started record of a runner at a station.
func NewRecord(st Station, runner int) RunnerRecord {
	return RunnerRecord{RunnerNumber: runner, Station: st, Status: NotStarted}
}

// Equal reports field-by-field equality, comparing times by instant.
func (r RunnerRecord) Equal(o RunnerRecord) bool {
	return r.RunnerNumber == o.RunnerNumber &&
		r.Station == o.Station &&
		r.Status == o.Status &&
		timePtrEqual(r.CallInTime, o.CallInTime) &&
		timePtrEqual(r.RecordedTime, o.RecordedTime) &&
		r.LastModified.Equal(o.LastModified) &&
		r.Notes == o.Notes
}

// Untouched reports whether the record is still the pristine initial record.
func (r RunnerRecord) Untouched() bool {
	return r.Status == NotStarted && r.LastModified.IsZero() &&
		r.CallInTime == nil && r.RecordedTime == nil && r.Notes == ""
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// TimePtr returns a pointer to a copy of t normalized to UTC.
func TimePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
