package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/reconcile"
	"github.com/padraicbc/stationsync/snapshot"
)

func newMergeCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "merge <base.json> <snapshot.json>...",
		Short: "merge snapshot files offline into a full race export",
		Long: `merge folds every later snapshot into the first one and writes the
result as a full-race-data export. No database is touched.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := mergeFiles(cmd.ErrOrStderr(), args)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, payload)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

// mergeFiles merges paths[1:] into paths[0] and returns the encoded result.
func mergeFiles(report io.Writer, paths []string) ([]byte, error) {
	base, err := readSnapshot(paths[0])
	if err != nil {
		return nil, err
	}
	for _, w := range base.Warnings {
		fmt.Fprintf(report, "%s: warning: %s\n", paths[0], w)
	}
	local := reconcile.Input{Config: base.Config, Ledgers: base.Ledgers}
	for _, path := range paths[1:] {
		in, err := readSnapshot(path)
		if err != nil {
			return nil, err
		}
		if in.Config.ID != local.Config.ID {
			return nil, race.Errorf(race.CodeRaceMismatch, "%s: race %s does not match %s", path, in.Config.ID, local.Config.ID)
		}
		res := reconcile.Merge(local, in)
		printReport(report, path, res.Report)
		local = reconcile.Input{Config: res.Config, Ledgers: res.Ledgers}
	}
	return snapshot.Encode(local.Config, local.Ledgers, snapshot.WithType(snapshot.FullRaceData))
}

func readSnapshot(path string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := snapshot.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
