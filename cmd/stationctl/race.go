package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/padraicbc/stationsync/aggregate"
	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/station"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <race.json>",
		Short: "set up a race on this station from its configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfig(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			svc, err := station.Setup(cmd.Context(), e.repo, race.Context{RaceID: cfg.ID, Station: e.st}, cfg,
				station.WithLogger(e.log))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "race %s set up at %s with %d runners\n",
				cfg.ID, svc.Config().StationName(e.st), svc.Ledger(e.st).Len())
			return nil
		},
	}
}

func readConfig(path string) (*race.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg race.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, race.WrapError(race.CodeInvalidConfig, "race configuration unreadable", err)
	}
	return &cfg, nil
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "print per-station runner counts",
		Args:  cobra.NoArgs,
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
			cfg, ledgers := svc.Snapshot()
			return printCounts(cmd.OutOrStdout(), aggregate.StationCounts(cfg, ledgers))
		},
	}
}

func printCounts(w io.Writer, counts []aggregate.Counts) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATION\tNAME\tNOT STARTED\tCALLED IN\tPASSED\tNON STARTER\tDNF\tWITHDRAWN")
	for _, c := range counts {
		name := c.Name
		if !c.Known {
			name += " (no data)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			c.Station, name, c.NotStarted, c.CalledIn, c.Passed, c.NonStarter, c.DNF, c.Withdrawn)
	}
	return tw.Flush()
}

func newOutstandingCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "outstanding",
		Short: "list runners not yet accounted for at a station",
		Args:  cobra.NoArgs,
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
			st := e.st
			if at != "" {
				if st, err = race.ParseStation(at); err != nil {
					return err
				}
			}
			cfg, ledgers := svc.Snapshot()
			runners, err := aggregate.Outstanding(cfg, ledgers, st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d outstanding\n", cfg.StationName(st), len(runners))
			for _, chunk := range lo.Chunk(runners, 10) {
				fmt.Fprintln(cmd.OutOrStdout(), lo.Map(chunk, func(n int, _ int) any { return n })...)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "station to check (default is this station)")
	return cmd
}
