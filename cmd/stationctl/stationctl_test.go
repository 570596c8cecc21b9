package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/snapshot"
	"github.com/padraicbc/stationsync/station"
)

func testConfig() *race.Config {
	return &race.Config{
		ID:          "fell-2026",
		Name:        "Fell Race",
		Checkpoints: []race.Checkpoint{{Number: 1, Name: "Summit"}, {Number: 2, Name: "Ford"}},
		Runners:     race.RunnerSet{Ranges: []race.Range{{From: 1, To: 20}}},
	}
}

func writeSnapshot(t *testing.T, dir, name string, cfg *race.Config, ledgers ...*race.Ledger) string {
	t.Helper()
	payload, err := snapshot.Encode(cfg, race.NewLedgerSet(ledgers...))
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, payload, 0o644))
	return path
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	now := time.Date(2026, 5, 17, 9, 0, 0, 0, time.UTC)

	cp1 := race.InitializeLedger(nil, 1, cfg.Runners.All())
	cp1, _, err := cp1.MarkPassed(cfg, 5, nil, nil, now)
	require.NoError(t, err)
	cp2 := race.InitializeLedger(nil, 2, cfg.Runners.All())
	cp2, _, err = cp2.MarkStatus(cfg, 7, race.DNF, "ankle", now)
	require.NoError(t, err)

	base := writeSnapshot(t, dir, "base.json", cfg)
	a := writeSnapshot(t, dir, "cp1.json", cfg, cp1)
	b := writeSnapshot(t, dir, "cp2.json", cfg, cp2)

	var report bytes.Buffer
	payload, err := mergeFiles(&report, []string{base, a, b})
	require.NoError(t, err)
	assert.Contains(t, report.String(), "cp1.json: 20 changed (20 added")
	assert.Contains(t, report.String(), "new station checkpoint-2")

	merged, err := snapshot.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, snapshot.FullRaceData, merged.Type)
	assert.Equal(t, race.Passed, merged.Ledgers.Get(1).Record(5).Status)
	assert.Equal(t, race.DNF, merged.Ledgers.Get(2).Record(7).Status)
	assert.Equal(t, "ankle", merged.Ledgers.Get(2).Record(7).Notes)

	// folding the same files again changes nothing
	again := filepath.Join(dir, "merged.json")
	require.NoError(t, os.WriteFile(again, payload, 0o644))
	report.Reset()
	_, err = mergeFiles(&report, []string{again, a, b})
	require.NoError(t, err)
	assert.Contains(t, report.String(), "cp1.json: 0 changed")
	assert.Contains(t, report.String(), "cp2.json: 0 changed")
}

func TestMergeFilesRejectsOtherRace(t *testing.T) {
	dir := t.TempDir()
	other := testConfig()
	other.ID = "road-2026"
	base := writeSnapshot(t, dir, "base.json", testConfig())
	foreign := writeSnapshot(t, dir, "road.json", other)

	_, err := mergeFiles(&bytes.Buffer{}, []string{base, foreign})
	assert.ErrorIs(t, err, race.ErrRaceMismatch)

	_, err = mergeFiles(&bytes.Buffer{}, []string{base, filepath.Join(dir, "missing.json")})
	assert.Error(t, err)
}

func TestCopyRace(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	from := station.NewMemoryRepository()
	svc, err := station.Setup(ctx, from, race.Context{RaceID: cfg.ID, Station: 1}, cfg)
	require.NoError(t, err)
	_, err = svc.MarkPassed(ctx, 3, nil, nil)
	require.NoError(t, err)

	to := station.NewMemoryRepository()
	var out bytes.Buffer
	require.NoError(t, copyRace(ctx, &out, from, to, cfg.ID))
	assert.Contains(t, out.String(), "checkpoint-1")

	got, err := to.LoadRaceConfig(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, got.Name)
	l, err := to.LoadLedger(ctx, cfg.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 20, l.Len())
	assert.Equal(t, race.Passed, l.Record(3).Status)

	err = copyRace(ctx, &out, from, to, "nope")
	assert.Equal(t, race.CodeNotFound, race.CodeOf(err))
}

func TestPrintImports(t *testing.T) {
	from := race.Station(2)
	var out bytes.Buffer
	require.NoError(t, printImports(&out, []station.ImportRecord{
		{SnapshotID: "s-1", ExportType: snapshot.CheckpointResults, ExportedBy: &from,
			ImportedAt: time.Date(2026, 5, 17, 10, 0, 0, 0, time.UTC), Changed: 12, Conflicts: 1},
		{SnapshotID: "s-2", ExportType: snapshot.RaceConfig},
	}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2026-05-17T10:00:00Z")
	assert.Contains(t, lines[1], "checkpoint-2")
	assert.Contains(t, lines[1], "12")
	assert.Contains(t, lines[2], "race-config")
}

func TestBindFlagsFromEnv(t *testing.T) {
	t.Setenv("STATIONSYNC_SQL_LOG", "true")
	t.Setenv("STATIONSYNC_STATION", "3")

	var st string
	var sqlLog bool
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringVar(&st, "station", "base", "")
	cmd.Flags().BoolVar(&sqlLog, "sql-log", false, "")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	bindFlags(cmd, v)

	assert.Equal(t, "3", st)
	assert.True(t, sqlLog)
}
