package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/reconcile"
	"github.com/padraicbc/stationsync/snapshot"
	"github.com/padraicbc/stationsync/station"
)

func newExportCmd() *cobra.Command {
	var (
		exportType string
		forStation string
		out        string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "write a snapshot of the race to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := snapshot.ParseExportType(exportType)
			if err != nil {
				return err
			}
			var opts []snapshot.Option
			if forStation != "" {
				st, err := race.ParseStation(forStation)
				if err != nil {
					return err
				}
				opts = append(opts, snapshot.WithStation(st))
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			payload, err := svc.Export(t, opts...)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("%s-%s-%s.json", flags.raceID, e.st, t)
			}
			if err := writeOutput(cmd.OutOrStdout(), out, payload); err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(payload))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&exportType, "type", "t", string(snapshot.FullRaceData),
		"full-race-data, checkpoint-results or race-config")
	cmd.Flags().StringVar(&forStation, "for-station", "", "station ledger of a checkpoint-results export")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot.json>...",
		Short: "merge snapshot files into this station's race data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			svc, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			for _, path := range args {
				payload, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				report, err := svc.Import(cmd.Context(), payload)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				printReport(cmd.OutOrStdout(), path, report)
			}
			return nil
		},
	}
}

func newImportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "imports",
		Short: "list the snapshots this station has imported",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			imports, err := e.repo.ListImports(cmd.Context(), flags.raceID)
			if err != nil {
				return err
			}
			return printImports(cmd.OutOrStdout(), imports)
		},
	}
}

func printImports(w io.Writer, imports []station.ImportRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IMPORTED AT\tSNAPSHOT\tTYPE\tFROM\tCHANGED\tCONFLICTS\tSKIPPED")
	for _, rec := range imports {
		from := "-"
		if rec.ExportedBy != nil {
			from = rec.ExportedBy.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			rec.ImportedAt.Format(time.RFC3339), rec.SnapshotID, rec.ExportType, from,
			rec.Changed, rec.Conflicts, rec.Skipped)
	}
	return tw.Flush()
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printReport(w io.Writer, source string, r *reconcile.Report) {
	fmt.Fprintf(w, "%s: %d changed (%d added, %d advanced, %d replaced), %d terminal conflicts, %d skipped\n",
		source, r.ChangedCount(), r.Count(reconcile.Added), r.Count(reconcile.Advanced),
		r.Count(reconcile.RecencyReplaced), len(r.Conflicts()), r.Skipped)
	if r.ConfigChanged {
		fmt.Fprintln(w, "  race configuration updated")
	}
	for _, st := range r.StationsAdded {
		fmt.Fprintf(w, "  new station %s\n", st)
	}
	for _, c := range r.ConfigConflicts {
		fmt.Fprintf(w, "  config conflict %s: kept %q, incoming %q\n", c.Field, c.Local, c.Incoming)
	}
	for _, c := range r.Conflicts() {
		winner := "incoming"
		if !c.Changed {
			winner = "local"
		}
		fmt.Fprintf(w, "  runner %d at %s: %s kept (%s)\n", c.Runner, c.Station, c.After.Status, winner)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}
