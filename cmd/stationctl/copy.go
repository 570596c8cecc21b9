package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/padraicbc/stationsync/config"
	"github.com/padraicbc/stationsync/db"
	"github.com/padraicbc/stationsync/station"
)

func newCopyCmd() *cobra.Command {
	var toDriver, toDSN string
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "copy a race's configuration and ledgers into another store",
		Long: `copy moves a race between stores, e.g. from a field device's sqlite
file into the base station's postgres. Records already in the target are
overwritten by the source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.raceID == "" {
				return fmt.Errorf("--race is required")
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			target, err := db.Open(toDriver, toDSN, flags.sqlLog)
			if err != nil {
				return fmt.Errorf("opening %s target: %w", toDriver, err)
			}
			defer target.Close()
			if err := db.CreateTables(cmd.Context(), target); err != nil {
				return err
			}
			e.log.Info("copying race", zap.String("race", flags.raceID),
				zap.String("from", flags.driver), zap.String("to", toDriver))
			return copyRace(cmd.Context(), cmd.OutOrStdout(), e.repo, db.NewRepository(target), flags.raceID)
		},
	}
	cmd.Flags().StringVar(&toDriver, "to-driver", config.DriverPostgres, "target database driver")
	cmd.Flags().StringVar(&toDSN, "to-dsn", "", "target connection string")
	_ = cmd.MarkFlagRequired("to-dsn")
	return cmd
}

// copyRace writes the race configuration and every stored ledger of from into
// to within one transaction of the target.
func copyRace(ctx context.Context, w io.Writer, from, to station.Repository, raceID string) error {
	cfg, err := from.LoadRaceConfig(ctx, raceID)
	if err != nil {
		return err
	}
	stations, err := from.ListStations(ctx, raceID)
	if err != nil {
		return err
	}

	return to.Transact(ctx, func(ctx context.Context, tx station.Repository) error {
		if err := tx.SaveRaceConfig(ctx, cfg); err != nil {
			return fmt.Errorf("race config: %w", err)
		}
		fmt.Fprintf(w, "%-16s done\n", "race config")
		for _, st := range stations {
			l, err := from.LoadLedger(ctx, raceID, st)
			if err != nil {
				return fmt.Errorf("%s: %w", st, err)
			}
			if err := tx.SaveLedger(ctx, raceID, l); err != nil {
				return fmt.Errorf("%s: %w", st, err)
			}
			fmt.Fprintf(w, "%-16s %d records\n", st, l.Len())
		}
		return nil
	})
}
