package race

import "time"

// CanTransition reports whether an operator may move a record at station st
// from one status to another. Moving to NotStarted is the unmark action and
// is always allowed.
func CanTransition(st Station, from, to Status) bool {
	if !from.Valid() || !to.AllowedAt(st) {
		return false
	}
	switch to {
	case NotStarted:
		return true
	case CalledIn:
		return !st.IsBase() && (from == NotStarted || from == CalledIn)
	case Passed, NonStarter, DNF:
		return !from.Terminal()
	case Withdrawn:
		return true
	default:
		return false
	}
}

// stamp returns the LastModified for a mutation of prev at now. It never goes
// backwards and always moves past the previous value, even when the wall
// clock has stepped back.
func stamp(prev RunnerRecord, now time.Time) time.Time {
	now = now.UTC()
	if !now.After(prev.LastModified) {
		return prev.LastModified.Add(time.Nanosecond)
	}
	return now
}

func (l *Ledger) current(cfg *Config, runner int) (RunnerRecord, error) {
	if l == nil || cfg == nil {
		return RunnerRecord{}, ErrNoActiveContext
	}
	if err := cfg.CheckStation(l.station); err != nil {
		return RunnerRecord{}, err
	}
	if err := cfg.CheckRunner(runner); err != nil {
		return RunnerRecord{}, err
	}
	return l.Record(runner), nil
}

func transitionError(st Station, rec RunnerRecord, to Status) error {
	return Errorf(CodeInvalidTransition, "runner %d at %s: cannot move from %s to %s",
		rec.RunnerNumber, st, rec.Status, to)
}

// CallIn records an operator's early sighting of a runner at a checkpoint.
func (l *Ledger) CallIn(cfg *Config, runner int, at, now time.Time) (*Ledger, RunnerRecord, error) {
	prev, err := l.current(cfg, runner)
	if err != nil {
		return l, prev, err
	}
	if !CanTransition(l.station, prev.Status, CalledIn) {
		return l, prev, transitionError(l.station, prev, CalledIn)
	}
	next := prev
	next.Status = CalledIn
	next.CallInTime = TimePtr(at)
	next.LastModified = stamp(prev, now)
	return l.Put(next), next, nil
}

// MarkPassed records the runner as passed at markOff, or at now when markOff
// is nil. A prior call-in time is kept unless callIn is given.
//
// On a record that is already passed this updates the time, and only to a
// strictly later one; CorrectTime handles corrections in either direction.
func (l *Ledger) MarkPassed(cfg *Config, runner int, callIn, markOff *time.Time, now time.Time) (*Ledger, RunnerRecord, error) {
	prev, err := l.current(cfg, runner)
	if err != nil {
		return l, prev, err
	}
	if !CanTransition(l.station, prev.Status, Passed) {
		return l, prev, transitionError(l.station, prev, Passed)
	}
	at := now
	if markOff != nil {
		at = *markOff
	}
	if prev.Status == Passed && prev.RecordedTime != nil && !at.After(*prev.RecordedTime) {
		return l, prev, Errorf(CodeTimeNotLater, "runner %d at %s: %s is not after %s",
			runner, l.station, at.UTC().Format(time.RFC3339), prev.RecordedTime.Format(time.RFC3339))
	}
	next := prev
	next.Status = Passed
	next.RecordedTime = TimePtr(at)
	if callIn != nil {
		next.CallInTime = TimePtr(*callIn)
	}
	next.LastModified = stamp(prev, now)
	return l.Put(next), next, nil
}

// CorrectTime replaces the recorded time of a passed runner.
func (l *Ledger) CorrectTime(cfg *Config, runner int, at, now time.Time) (*Ledger, RunnerRecord, error) {
	prev, err := l.current(cfg, runner)
	if err != nil {
		return l, prev, err
	}
	if prev.Status != Passed {
		return l, prev, Errorf(CodeInvalidTransition, "runner %d at %s is %s, only passed times can be corrected",
			runner, l.station, prev.Status)
	}
	next := prev
	next.RecordedTime = TimePtr(at)
	next.LastModified = stamp(prev, now)
	return l.Put(next), next, nil
}

// MarkStatus moves the runner to a terminal status with an optional reason.
// Leaving passed clears the recorded time.
func (l *Ledger) MarkStatus(cfg *Config, runner int, status Status, notes string, now time.Time) (*Ledger, RunnerRecord, error) {
	prev, err := l.current(cfg, runner)
	if err != nil {
		return l, prev, err
	}
	if !status.Terminal() {
		return l, prev, Errorf(CodeInvalidStatus, "%s is not a terminal status", status)
	}
	if !status.AllowedAt(l.station) {
		return l, prev, Errorf(CodeInvalidStatus, "%s cannot be recorded at %s", status, l.station)
	}
	if !CanTransition(l.station, prev.Status, status) {
		return l, prev, transitionError(l.station, prev, status)
	}
	next := prev
	next.Status = status
	next.RecordedTime = nil
	next.Notes = notes
	next.LastModified = stamp(prev, now)
	return l.Put(next), next, nil
}

// Unmark resets the runner to not_started and clears times and notes. It is
// only ever an operator action; merging never produces it.
func (l *Ledger) Unmark(cfg *Config, runner int, now time.Time) (*Ledger, RunnerRecord, error) {
	prev, err := l.current(cfg, runner)
	if err != nil {
		return l, prev, err
	}
	next := NewRecord(l.station, runner)
	next.LastModified = stamp(prev, now)
	return l.Put(next), next, nil
}
