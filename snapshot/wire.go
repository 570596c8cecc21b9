package snapshot

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/padraicbc/stationsync/race"
)

// payloadJSON is the current schema as written by Encode.
type payloadJSON struct {
	SchemaVersion int           `json:"schemaVersion"`
	SnapshotID    string        `json:"snapshotId,omitempty"`
	ExportedAt    string        `json:"exportedAt"`
	ExportType    ExportType    `json:"exportType"`
	ExportedBy    *race.Station `json:"exportedBy,omitempty"`
	Race          *race.Config  `json:"race"`
	Stations      []stationJSON `json:"stations"`
}

type stationJSON struct {
	StationID race.Station `json:"stationId"`
	Records   []recordJSON `json:"records"`
}

type recordJSON struct {
	RunnerNumber int         `json:"runnerNumber"`
	Status       race.Status `json:"status"`
	CallInTime   *string     `json:"callInTime"`
	MarkOffTime  *string     `json:"markOffTime"`
	LastModified *string     `json:"lastModified"`
	Notes        string      `json:"notes,omitempty"`
}

// The in* types are what Decode reads. They accept the current schema plus
// the field names and shapes older exports used.

type inPayload struct {
	SchemaVersion json.RawMessage `json:"schemaVersion"`
	Version       json.RawMessage `json:"version"`
	SnapshotID    string          `json:"snapshotId"`
	ExportedAt    json.RawMessage `json:"exportedAt"`
	ExportType    string          `json:"exportType"`
	ExportedBy    json.RawMessage `json:"exportedBy"`
	Race          json.RawMessage `json:"race"`
	Stations      []inStation     `json:"stations"`
}

type inRace struct {
	ID           string          `json:"id"`
	RaceID       string          `json:"raceId"`
	Name         string          `json:"name"`
	Date         string          `json:"date"`
	StartTime    string          `json:"startTime"`
	Checkpoints  []inCheckpoint  `json:"checkpoints"`
	Runners      json.RawMessage `json:"runners"`
	RunnerRanges []inRange       `json:"runnerRanges"`
}

type inCheckpoint race.Checkpoint

// UnmarshalJSON accepts {"number":1,"name":"x"} and a bare number.
func (c *inCheckpoint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*c = inCheckpoint{Number: n}
		return nil
	}
	var v struct {
		Number     *int   `json:"number"`
		Checkpoint *int   `json:"checkpoint"`
		Name       string `json:"name"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch {
	case v.Number != nil:
		c.Number = *v.Number
	case v.Checkpoint != nil:
		c.Number = *v.Checkpoint
	}
	c.Name = v.Name
	return nil
}

type inRange struct {
	From  *int `json:"from"`
	To    *int `json:"to"`
	Start *int `json:"start"`
	End   *int `json:"end"`
}

func (r inRange) toRange() race.Range {
	var out race.Range
	switch {
	case r.From != nil:
		out.From = *r.From
	case r.Start != nil:
		out.From = *r.Start
	}
	switch {
	case r.To != nil:
		out.To = *r.To
	case r.End != nil:
		out.To = *r.End
	}
	return out
}

type inStation struct {
	StationID  json.RawMessage `json:"stationId"`
	Station    json.RawMessage `json:"station"`
	Checkpoint json.RawMessage `json:"checkpoint"`
	Records    []inRecord      `json:"records"`
}

func (s inStation) id() json.RawMessage {
	for _, raw := range []json.RawMessage{s.StationID, s.Station, s.Checkpoint} {
		if len(raw) > 0 && string(raw) != "null" {
			return raw
		}
	}
	return nil
}

type inRecord struct {
	RunnerNumber json.RawMessage `json:"runnerNumber"`
	Number       json.RawMessage `json:"number"`
	Status       string          `json:"status"`
	CallInTime   json.RawMessage `json:"callInTime"`
	MarkOffTime  json.RawMessage `json:"markOffTime"`
	RecordedTime json.RawMessage `json:"recordedTime"`
	LastModified json.RawMessage `json:"lastModified"`
	Notes        string          `json:"notes"`
	Reason       string          `json:"reason"`
}

func (r inRecord) runner() (int, bool) {
	raw := r.RunnerNumber
	if len(raw) == 0 {
		raw = r.Number
	}
	return parseInt(raw)
}

func (r inRecord) markOff() json.RawMessage {
	if len(r.MarkOffTime) > 0 && string(r.MarkOffTime) != "null" {
		return r.MarkOffTime
	}
	return r.RecordedTime
}

// parseInt reads a JSON number or a numeric string.
func parseInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// parseTime reads an RFC 3339 string or epoch milliseconds. A missing or null
// value yields nil without error.
func parseTime(raw json.RawMessage) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return race.TimePtr(t), nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return nil, err
	}
	return race.TimePtr(time.UnixMilli(ms)), nil
}

func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
