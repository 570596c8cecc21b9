package race

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeLedgerIsIdempotent(t *testing.T) {
	cfg := sampleConfig()
	l := initialized(1)
	assert.Equal(t, 101, l.Len())
	assert.True(t, l.Record(100).Untouched())

	at := t0.Add(time.Hour)
	l, _, err := l.MarkPassed(cfg, 100, nil, &at, at)
	require.NoError(t, err)

	again := InitializeLedger(l, 1, cfg.Runners.All())
	assert.Same(t, l, again, "nothing missing, nothing rebuilt")
	assert.Equal(t, Passed, again.Record(100).Status)

	grown := InitializeLedger(l, 1, []int{100, 300})
	assert.Equal(t, 102, grown.Len())
	assert.Equal(t, Passed, grown.Record(100).Status)
	assert.Equal(t, NotStarted, grown.Record(300).Status)
}

func TestLedgerPutCopiesOnWrite(t *testing.T) {
	l := NewLedger(2, NewRecord(2, 5))
	rec := NewRecord(2, 6)
	rec.Status = CalledIn
	next := l.Put(rec)

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 2, next.Len())
	assert.Equal(t, []int{5, 6}, next.Runners())

	other := NewRecord(9, 7)
	added := next.Put(other)
	assert.Equal(t, Station(2), added.Record(7).Station, "records are re-keyed to the ledger station")
}

func TestLedgerSet(t *testing.T) {
	set := NewLedgerSet(initialized(2), initialized(BaseStation))
	assert.Equal(t, []Station{BaseStation, 2}, set.Stations())
	assert.False(t, set.Has(1))

	withOne := set.Initialize(1, []int{100})
	assert.True(t, withOne.Has(1))
	assert.False(t, set.Has(1), "original set untouched")
	assert.Same(t, withOne, withOne.Initialize(1, []int{100}))

	var empty *LedgerSet
	assert.Nil(t, empty.Get(1))
	assert.Equal(t, 0, empty.Len())
	assert.True(t, empty.Equal(NewLedgerSet()))
	assert.True(t, set.Equal(NewLedgerSet(initialized(BaseStation), initialized(2))))
}

func TestRunnerSet(t *testing.T) {
	s := RunnerSet{Ranges: []Range{{From: 1, To: 3}, {From: 10, To: 11}}, Numbers: []int{7, 3, 12}}
	assert.Equal(t, []int{1, 2, 3, 7, 10, 11, 12}, s.All())
	assert.True(t, s.Contains(7))
	assert.False(t, s.Contains(8))

	n := s.Normalize()
	assert.Equal(t, []Range{{From: 1, To: 3}, {From: 10, To: 12}}, n.Ranges)
	assert.Equal(t, []int{7}, n.Numbers)
	assert.True(t, s.Equal(n))

	u := RunnerSet{Ranges: []Range{{From: 1, To: 2}}}.Union(RunnerSet{Numbers: []int{3, 5}})
	assert.Equal(t, []Range{{From: 1, To: 3}}, u.Ranges)
	assert.Equal(t, []int{5}, u.Numbers)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, sampleConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing id", func(c *Config) { c.ID = " " }},
		{"bad date", func(c *Config) { c.Date = "17/05/2026" }},
		{"bad start", func(c *Config) { c.StartTime = "8am" }},
		{"duplicate checkpoint", func(c *Config) { c.Checkpoints = append(c.Checkpoints, Checkpoint{Number: 1}) }},
		{"zero checkpoint", func(c *Config) { c.Checkpoints = []Checkpoint{{Number: 0}} }},
		{"no runners", func(c *Config) { c.Runners = RunnerSet{} }},
		{"inverted range", func(c *Config) { c.Runners.Ranges = []Range{{From: 10, To: 1}} }},
		{"huge range", func(c *Config) { c.Runners.Ranges = []Range{{From: 1, To: 5000000}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sampleConfig()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfigStations(t *testing.T) {
	c := sampleConfig()
	assert.Equal(t, []Station{1, 2, BaseStation}, c.Stations())
	assert.Equal(t, "Summit", c.StationName(1))
	assert.Equal(t, "Base station", c.StationName(BaseStation))
	assert.ErrorIs(t, c.CheckStation(3), ErrInvalidStation)

	clone := c.Clone()
	clone.Checkpoints[0].Name = "changed"
	assert.Equal(t, "Summit", c.Checkpoints[0].Name)
}

func TestStationJSON(t *testing.T) {
	b, err := json.Marshal([]Station{BaseStation, 3})
	require.NoError(t, err)
	assert.JSONEq(t, `["base", 3]`, string(b))

	var got []Station
	require.NoError(t, json.Unmarshal([]byte(`["base-station", 2, "checkpoint-4", "5"]`), &got))
	assert.Equal(t, []Station{BaseStation, 2, 4, 5}, got)

	var bad Station
	assert.ErrorIs(t, json.Unmarshal([]byte(`"finish line"`), &bad), ErrInvalidStation)
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses() {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseStatus("DNS")
	require.NoError(t, err)
	assert.Equal(t, NonStarter, got)

	_, err = ParseStatus("teleported")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	assert.Less(t, NotStarted.Advancement(), CalledIn.Advancement())
	assert.Less(t, CalledIn.Advancement(), Passed.Advancement())
	assert.Less(t, Passed.Advancement(), DNF.Advancement())
	assert.Equal(t, DNF.Advancement(), Withdrawn.Advancement())
}

func TestContextValidate(t *testing.T) {
	assert.ErrorIs(t, Context{}.Validate(), ErrNoActiveContext)
	assert.ErrorIs(t, Context{RaceID: "r", Station: -1}.Validate(), ErrInvalidStation)
	assert.NoError(t, Context{RaceID: "r", Station: 2}.Validate())
}
