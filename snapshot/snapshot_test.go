package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/stationsync/race"
)

var t0 = time.Date(2026, 5, 17, 8, 0, 0, 0, time.UTC)

func sampleConfig() *race.Config {
	return &race.Config{
		ID:          "fell-race-2026",
		Name:        "Fell Race",
		Date:        "2026-05-17",
		StartTime:   "08:00",
		Checkpoints: []race.Checkpoint{{Number: 1, Name: "Summit"}, {Number: 2, Name: "Ford"}},
		Runners:     race.RunnerSet{Ranges: []race.Range{{From: 100, To: 200}}, Numbers: []int{7}},
	}
}

func sampleLedgers(t *testing.T) *race.LedgerSet {
	t.Helper()
	cfg := sampleConfig()
	cp1 := race.InitializeLedger(nil, 1, cfg.Runners.All())
	callIn := t0.Add(14*time.Minute + 123456789*time.Nanosecond)
	cp1, _, err := cp1.CallIn(cfg, 101, callIn, callIn)
	require.NoError(t, err)
	markOff := t0.Add(15 * time.Minute)
	cp1, _, err = cp1.MarkPassed(cfg, 101, nil, &markOff, markOff.Add(987*time.Nanosecond))
	require.NoError(t, err)
	cp1, _, err = cp1.MarkStatus(cfg, 102, race.DNF, "lost at the ford", t0.Add(time.Hour))
	require.NoError(t, err)

	base := race.InitializeLedger(nil, race.BaseStation, cfg.Runners.All())
	base, _, err = base.MarkStatus(cfg, 7, race.Withdrawn, "", t0.Add(-time.Hour))
	require.NoError(t, err)
	return race.NewLedgerSet(cp1, base)
}

func fixedClock() time.Time { return t0.Add(3 * time.Hour) }

func TestRoundTrip(t *testing.T) {
	cfg := sampleConfig()
	ledgers := sampleLedgers(t)

	payload, err := Encode(cfg, ledgers, WithClock(fixedClock), WithID("snap-1"), WithExportedBy(1))
	require.NoError(t, err)

	got, err := Decode(payload)
	require.NoError(t, err)
	assert.Empty(t, got.Warnings)
	assert.Zero(t, got.Skipped)
	assert.Equal(t, "snap-1", got.ID)
	assert.Equal(t, FullRaceData, got.Type)
	assert.Equal(t, SchemaVersion, got.SchemaVersion)
	assert.True(t, got.ExportedAt.Equal(fixedClock()))
	require.NotNil(t, got.ExportedBy)
	assert.Equal(t, race.Station(1), *got.ExportedBy)

	if diff := cmp.Diff(cfg, got.Config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, ledgers.Equal(got.Ledgers), "ledgers survive the round trip exactly")

	rec, ok := got.Ledgers.Get(1).Get(101)
	require.True(t, ok)
	assert.Equal(t, 123456789, rec.CallInTime.Nanosecond(), "no rounding of timestamps")
}

func TestEncodeIsDeterministic(t *testing.T) {
	cfg := sampleConfig()
	ledgers := sampleLedgers(t)
	a, err := Encode(cfg, ledgers, WithClock(fixedClock), WithID("x"))
	require.NoError(t, err)
	b, err := Encode(cfg, ledgers, WithClock(fixedClock), WithID("x"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestExportTypes(t *testing.T) {
	cfg := sampleConfig()
	ledgers := sampleLedgers(t)

	s, err := New(cfg, ledgers, WithType(CheckpointResults), WithStation(1))
	require.NoError(t, err)
	assert.Equal(t, []race.Station{1}, s.Ledgers.Stations())

	s, err = New(cfg, ledgers, WithType(CheckpointResults), WithExportedBy(race.BaseStation))
	require.NoError(t, err)
	assert.Equal(t, []race.Station{race.BaseStation}, s.Ledgers.Stations())

	_, err = New(cfg, ledgers, WithType(CheckpointResults), WithStation(2))
	assert.ErrorIs(t, err, race.ErrInvalidStation)

	s, err = New(cfg, ledgers, WithType(RaceConfig))
	require.NoError(t, err)
	assert.Zero(t, s.Ledgers.Len())

	_, err = New(cfg, ledgers, WithType("everything"))
	assert.ErrorIs(t, err, race.ErrUnsupportedSchema)

	_, err = New(nil, ledgers)
	assert.ErrorIs(t, err, race.ErrNoActiveContext)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"empty", ``, race.ErrMalformedPayload},
		{"not json", `runner 101 passed`, race.ErrMalformedPayload},
		{"array", `[1,2,3]`, race.ErrMalformedPayload},
		{"truncated", `{"race": {"id": "r"`, race.ErrMalformedPayload},
		{"no race", `{"exportType": "full-race-data", "stations": []}`, race.ErrMalformedPayload},
		{"race without runners", `{"race": {"id": "r", "name": "x"}}`, race.ErrMalformedPayload},
		{"bad version", `{"schemaVersion": "two", "race": {"id": "r", "runners": [1]}}`, race.ErrMalformedPayload},
		{"newer schema", `{"schemaVersion": 9, "race": {"id": "r", "runners": [1]}}`, race.ErrUnsupportedSchema},
		{"unknown export type", `{"exportType": "photos", "race": {"id": "r", "runners": [1]}}`, race.ErrUnsupportedSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Decode([]byte(tt.payload))
			assert.Nil(t, s)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeDropsUnknownRunners(t *testing.T) {
	payload := `{
		"schemaVersion": 2,
		"exportedAt": "2026-05-17T11:00:00Z",
		"exportType": "checkpoint-results",
		"race": {"id": "fell", "name": "Fell", "checkpoints": [{"number": 1}],
		         "runners": {"ranges": [{"from": 100, "to": 200}]}},
		"stations": [{"stationId": 1, "records": [
			{"runnerNumber": 9999, "status": "passed", "markOffTime": "2026-05-17T08:15:00Z",
			 "lastModified": "2026-05-17T08:15:00Z"},
			{"runnerNumber": 150, "status": "passed", "markOffTime": "2026-05-17T08:16:00Z",
			 "lastModified": "2026-05-17T08:16:00Z"}
		]}]
	}`
	s, err := Decode([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Skipped)
	require.Len(t, s.Warnings, 1)
	assert.Equal(t, 9999, s.Warnings[0].Runner)
	assert.Contains(t, s.Warnings[0].String(), "checkpoint-1 runner 9999")

	l := s.Ledgers.Get(1)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, race.Passed, l.Record(150).Status)
}

func TestDecodeLegacyPayload(t *testing.T) {
	// schema 1: no version, no export type, recordedTime, epoch-millisecond
	// timestamps, runner ranges at race level, legacy status spellings.
	payload := `{
		"exportedAt": "2025-06-01T10:00:00+01:00",
		"race": {"raceId": "old-race", "name": "Old", "checkpoints": [1, 2],
		         "runnerRanges": [{"start": 1, "end": 20}]},
		"stations": [
			{"station": "base-station", "records": [
				{"number": "5", "status": "finished", "recordedTime": 1748768400000, "lastModified": 1748768400000},
				{"runnerNumber": 6, "status": "dns", "reason": "injured"},
				{"runnerNumber": 7}
			]},
			{"checkpoint": 2, "records": [
				{"runnerNumber": 5, "status": "called-in", "callInTime": "2025-06-01T08:50:00Z"}
			]}
		]
	}`
	s, err := Decode([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, s.SchemaVersion)
	assert.Equal(t, FullRaceData, s.Type)
	assert.Equal(t, "old-race", s.Config.ID)
	assert.Equal(t, []race.Checkpoint{{Number: 1}, {Number: 2}}, s.Config.Checkpoints)
	assert.Equal(t, 20, len(s.Config.Runners.All()))
	assert.True(t, s.ExportedAt.Equal(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
	assert.Empty(t, s.Warnings)

	base := s.Ledgers.Get(race.BaseStation)
	r5 := base.Record(5)
	assert.Equal(t, race.Passed, r5.Status)
	require.NotNil(t, r5.RecordedTime)
	assert.True(t, r5.RecordedTime.Equal(time.UnixMilli(1748768400000)))

	r6 := base.Record(6)
	assert.Equal(t, race.NonStarter, r6.Status)
	assert.Equal(t, "injured", r6.Notes)
	assert.True(t, r6.LastModified.IsZero(), "missing lastModified sorts first")

	r7, ok := base.Get(7)
	require.True(t, ok)
	assert.Equal(t, race.NotStarted, r7.Status, "missing status is not_started")

	cp2 := s.Ledgers.Get(2).Record(5)
	assert.Equal(t, race.CalledIn, cp2.Status)
	require.NotNil(t, cp2.CallInTime)
}

func TestDecodeNormalizesRecords(t *testing.T) {
	payload := `{
		"schemaVersion": 2, "exportType": "full-race-data",
		"race": {"id": "r", "runners": {"numbers": [1, 2, 3, 4, 5]}},
		"stations": [
			{"stationId": "base", "records": [
				{"runnerNumber": 1, "status": "passed", "lastModified": "2026-05-17T09:00:00Z"},
				{"runnerNumber": 2, "status": "dnf", "markOffTime": "2026-05-17T09:00:00Z"},
				{"runnerNumber": 3, "status": "passed"},
				{"runnerNumber": 4, "status": "teleported"},
				{"runnerNumber": 5, "status": "called_in", "lastModified": "2026-05-17T08:00:00Z"},
				{"runnerNumber": 5, "status": "passed", "markOffTime": "2026-05-17T08:30:00Z", "lastModified": "2026-05-17T08:30:00Z"}
			]},
			{"stationId": 2, "records": [
				{"runnerNumber": 1, "status": "withdrawn"}
			]},
			{"records": [{"runnerNumber": 1}]}
		]
	}`
	s, err := Decode([]byte(payload))
	require.NoError(t, err)

	base := s.Ledgers.Get(race.BaseStation)
	r1 := base.Record(1)
	require.NotNil(t, r1.RecordedTime)
	assert.True(t, r1.RecordedTime.Equal(r1.LastModified))
	assert.Nil(t, base.Record(2).RecordedTime)
	_, has3 := base.Get(3)
	assert.False(t, has3)
	_, has4 := base.Get(4)
	assert.False(t, has4)
	assert.Equal(t, race.Passed, base.Record(5).Status, "duplicate keeps the most recent")

	assert.Equal(t, 0, s.Ledgers.Get(2).Len(), "withdrawn is base-only")
	// 3 (passed without time), 4 (status), 1 at cp2 (withdrawn), 1 without station
	assert.Equal(t, 4, s.Skipped)
	assert.NotEmpty(t, s.Warnings)
}

func TestDecodeRaceConfigExportIgnoresLedgers(t *testing.T) {
	cfg := sampleConfig()
	payload, err := Encode(cfg, sampleLedgers(t), WithType(RaceConfig))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Empty(t, raw["stations"])

	s, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, RaceConfig, s.Type)
	assert.Zero(t, s.Ledgers.Len())
}

func TestDecodeRejectsOversizedRunnerSet(t *testing.T) {
	ranges := make([]map[string]int, 0, 300)
	for i := range 300 {
		from := i*100000 + 1
		ranges = append(ranges, map[string]int{"from": from, "to": from + 99998})
	}
	payload, err := json.Marshal(map[string]any{
		"schemaVersion": SchemaVersion,
		"exportType":    RaceConfig,
		"race":          map[string]any{"id": "r", "runners": map[string]any{"ranges": ranges}},
	})
	require.NoError(t, err)

	s, err := Decode(payload)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, race.ErrMalformedPayload)
	assert.ErrorIs(t, err, race.ErrInvalidConfig)
}
