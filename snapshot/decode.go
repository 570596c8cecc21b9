package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/padraicbc/stationsync/race"
)

func malformed(format string, args ...any) error {
	return race.WrapError(race.CodeMalformedPayload, "payload unreadable", fmt.Errorf(format, args...))
}

// Decode parses a payload. It fails only when the payload cannot be turned
// into a snapshot at all: ErrMalformedPayload for broken data,
// ErrUnsupportedSchema for payloads from a newer schema. Individual records
// that cannot be used are dropped and reported in Warnings and Skipped.
func Decode(payload []byte) (*Snapshot, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, malformed("not a JSON object")
	}
	var in inPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, race.WrapError(race.CodeMalformedPayload, "payload unreadable", err)
	}

	version := 1
	for _, raw := range []json.RawMessage{in.SchemaVersion, in.Version} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		v, ok := parseInt(raw)
		if !ok {
			return nil, malformed("schema version %s is not a number", string(raw))
		}
		version = v
		break
	}
	if version > SchemaVersion {
		return nil, race.Errorf(race.CodeUnsupportedSchema,
			"payload schema version %d is newer than supported version %d", version, SchemaVersion)
	}

	exportType, err := ParseExportType(in.ExportType)
	if err != nil {
		return nil, err
	}

	cfg, err := decodeRace(in.Race)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		ID:            in.SnapshotID,
		SchemaVersion: version,
		Type:          exportType,
		Config:        cfg,
	}

	if at, err := parseTime(in.ExportedAt); err != nil {
		s.warn(nil, 0, "export time unreadable, ignored")
	} else if at != nil {
		s.ExportedAt = *at
	}
	if len(in.ExportedBy) > 0 && string(in.ExportedBy) != "null" {
		var st race.Station
		if err := json.Unmarshal(in.ExportedBy, &st); err != nil {
			s.warn(nil, 0, "exporting station unreadable, ignored")
		} else {
			s.ExportedBy = &st
		}
	}

	s.Ledgers = s.decodeStations(in.Stations)
	return s, nil
}

func decodeRace(raw json.RawMessage) (*race.Config, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, malformed("race configuration missing")
	}
	var in inRace
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, race.WrapError(race.CodeMalformedPayload, "payload unreadable", err)
	}
	cfg := &race.Config{
		ID:        in.ID,
		Name:      in.Name,
		Date:      in.Date,
		StartTime: in.StartTime,
	}
	if cfg.ID == "" {
		cfg.ID = in.RaceID
	}
	for _, cp := range in.Checkpoints {
		cfg.Checkpoints = append(cfg.Checkpoints, race.Checkpoint(cp))
	}
	runners, err := decodeRunners(in.Runners)
	if err != nil {
		return nil, err
	}
	for _, r := range in.RunnerRanges {
		runners.Ranges = append(runners.Ranges, r.toRange())
	}
	cfg.Runners = runners
	if err := cfg.Validate(); err != nil {
		return nil, race.WrapError(race.CodeMalformedPayload, "payload unreadable", err)
	}
	return cfg, nil
}

// decodeRunners accepts {"ranges":[...],"numbers":[...]} or a plain array of
// runner numbers.
func decodeRunners(raw json.RawMessage) (race.RunnerSet, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return race.RunnerSet{}, nil
	}
	if raw[0] == '[' {
		var numbers []int
		if err := json.Unmarshal(raw, &numbers); err != nil {
			return race.RunnerSet{}, race.WrapError(race.CodeMalformedPayload, "payload unreadable", err)
		}
		return race.RunnerSet{Numbers: numbers}, nil
	}
	var v struct {
		Ranges  []inRange `json:"ranges"`
		Numbers []int     `json:"numbers"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return race.RunnerSet{}, race.WrapError(race.CodeMalformedPayload, "payload unreadable", err)
	}
	set := race.RunnerSet{Numbers: v.Numbers}
	for _, r := range v.Ranges {
		set.Ranges = append(set.Ranges, r.toRange())
	}
	return set, nil
}

func (s *Snapshot) warn(st *race.Station, runner int, format string, args ...any) {
	s.Warnings = append(s.Warnings, Warning{Station: st, Runner: runner, Message: fmt.Sprintf(format, args...)})
}

func (s *Snapshot) skip(st *race.Station, runner int, format string, args ...any) {
	s.Skipped++
	s.warn(st, runner, format, args...)
}

func (s *Snapshot) decodeStations(stations []inStation) *race.LedgerSet {
	if s.Type == RaceConfig {
		if len(stations) > 0 {
			s.warn(nil, 0, "race-config export carries %d station ledgers, ignored", len(stations))
		}
		return race.NewLedgerSet()
	}
	if s.Type == CheckpointResults && len(stations) > 1 {
		s.warn(nil, 0, "checkpoint-results export carries %d stations", len(stations))
	}

	records := make(map[race.Station]map[int]race.RunnerRecord)
	var order []race.Station
	for i, in := range stations {
		var st race.Station
		raw := in.id()
		if raw == nil {
			s.Skipped += len(in.Records)
			s.warn(nil, 0, "station entry %d has no station id, %d records skipped", i, len(in.Records))
			continue
		}
		if err := json.Unmarshal(raw, &st); err != nil {
			s.Skipped += len(in.Records)
			s.warn(nil, 0, "station entry %d: %v, %d records skipped", i, err, len(in.Records))
			continue
		}
		stRef := &st
		if !s.Config.HasStation(st) {
			s.warn(stRef, 0, "station is not in the race configuration")
		}
		byRunner, seen := records[st]
		if !seen {
			byRunner = make(map[int]race.RunnerRecord, len(in.Records))
			records[st] = byRunner
			order = append(order, st)
		} else {
			s.warn(stRef, 0, "station listed more than once, entries combined")
		}
		for _, ir := range in.Records {
			rec, ok := s.decodeRecord(stRef, ir)
			if !ok {
				continue
			}
			if prev, dup := byRunner[rec.RunnerNumber]; dup {
				s.warn(stRef, rec.RunnerNumber, "duplicate record, keeping the most recent")
				if !rec.LastModified.After(prev.LastModified) {
					continue
				}
			}
			byRunner[rec.RunnerNumber] = rec
		}
	}

	ledgers := make([]*race.Ledger, 0, len(order))
	for _, st := range order {
		recs := make([]race.RunnerRecord, 0, len(records[st]))
		for _, r := range records[st] {
			recs = append(recs, r)
		}
		ledgers = append(ledgers, race.NewLedger(st, recs...))
	}
	return race.NewLedgerSet(ledgers...)
}

func (s *Snapshot) decodeRecord(st *race.Station, in inRecord) (race.RunnerRecord, bool) {
	runner, ok := in.runner()
	if !ok {
		s.skip(st, 0, "record without runner number skipped")
		return race.RunnerRecord{}, false
	}
	if !s.Config.Runners.Contains(runner) {
		s.skip(st, runner, "runner is not registered for this race, record skipped")
		return race.RunnerRecord{}, false
	}
	status, err := race.ParseStatus(in.Status)
	if err != nil {
		s.skip(st, runner, "unknown status %q, record skipped", in.Status)
		return race.RunnerRecord{}, false
	}
	if !status.AllowedAt(*st) {
		s.skip(st, runner, "status %s is not valid at this station, record skipped", status)
		return race.RunnerRecord{}, false
	}

	rec := race.NewRecord(*st, runner)
	rec.Status = status
	rec.Notes = in.Notes
	if rec.Notes == "" {
		rec.Notes = in.Reason
	}
	if rec.CallInTime, err = parseTime(in.CallInTime); err != nil {
		s.warn(st, runner, "call-in time unreadable, ignored")
	}
	if rec.RecordedTime, err = parseTime(in.markOff()); err != nil {
		s.warn(st, runner, "mark-off time unreadable, ignored")
	}
	lastModified, err := parseTime(in.LastModified)
	if err != nil {
		s.warn(st, runner, "last modified time unreadable, treated as oldest")
	}
	if lastModified != nil {
		rec.LastModified = *lastModified
	}

	return s.normalize(st, rec)
}

// normalize enforces that a recorded time exists exactly when the runner has
// passed.
func (s *Snapshot) normalize(st *race.Station, rec race.RunnerRecord) (race.RunnerRecord, bool) {
	switch {
	case rec.Status == race.Passed && rec.RecordedTime == nil:
		if rec.LastModified.IsZero() {
			s.skip(st, rec.RunnerNumber, "passed without any time, record skipped")
			return rec, false
		}
		rec.RecordedTime = race.TimePtr(rec.LastModified)
		s.warn(st, rec.RunnerNumber, "passed without mark-off time, using last modified time")
	case rec.Status != race.Passed && rec.RecordedTime != nil:
		rec.RecordedTime = nil
		s.warn(st, rec.RunnerNumber, "mark-off time on a %s record dropped", rec.Status)
	}
	if rec.Status == race.NotStarted && rec.CallInTime != nil {
		rec.CallInTime = nil
		s.warn(st, rec.RunnerNumber, "call-in time on a not_started record dropped")
	}
	return rec, true
}
