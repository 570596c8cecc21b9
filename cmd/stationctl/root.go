package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/padraicbc/stationsync/config"
	"github.com/padraicbc/stationsync/db"
	applog "github.com/padraicbc/stationsync/logger"
	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/station"
)

const envPrefix = "STATIONSYNC"

// globals holds the persistent flags shared by every command.
type globals struct {
	cfgFile string
	driver  string
	dsn     string
	station string
	raceID  string
	verbose bool
	sqlLog  bool
}

var flags globals

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stationctl",
		Short:         "Manage race station data from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.cfgFile, "config", "", "config file (default is $HOME/.stationctl.yml)")
	pf.StringVar(&flags.driver, "driver", config.DriverSQLite, "database driver: sqlite, postgres or mysql")
	pf.StringVar(&flags.dsn, "dsn", "stationsync.db", "connection string or sqlite file")
	pf.StringVar(&flags.station, "station", "base", "station this device runs as")
	pf.StringVar(&flags.raceID, "race", "", "race id")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&flags.sqlLog, "sql-log", false, "log every SQL query")

	root.AddCommand(
		newInitCmd(),
		newExportCmd(),
		newImportCmd(),
		newMergeCmd(),
		newSummaryCmd(),
		newOutstandingCmd(),
		newCopyCmd(),
		newImportsCmd(),
	)
	return root
}

func initConfig(cmd *cobra.Command) {
	v := viper.GetViper()
	if flags.cfgFile != "" {
		v.SetConfigFile(flags.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".stationctl")
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	}
	for c := cmd; c != nil; c = c.Parent() {
		bindFlags(c, v)
	}
}

// bindFlags applies config file and environment values to flags the user did
// not set. --sql-log is read from STATIONSYNC_SQL_LOG.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	visit := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			if strings.Contains(f.Name, "-") {
				envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
				if err := v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
					fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v\n", f.Name, err)
				}
			}
			if !f.Changed && v.IsSet(f.Name) {
				if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
					fmt.Fprintf(os.Stderr, "Could not set flag value for %s: %v\n", f.Name, err)
				}
			}
		})
	}
	visit(cmd.Flags())
	visit(cmd.PersistentFlags())
}

// env is an opened station store plus the logger commands report through.
type env struct {
	db   *bun.DB
	repo *db.Repository
	log  *zap.Logger
	st   race.Station
}

func openEnv(ctx context.Context) (*env, error) {
	st, err := race.ParseStation(flags.station)
	if err != nil {
		return nil, err
	}
	log, err := applog.Console(flags.verbose)
	if err != nil {
		return nil, err
	}
	bdb, err := db.Open(flags.driver, flags.dsn, flags.sqlLog)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", flags.driver, err)
	}
	if err := db.CreateTables(ctx, bdb); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return &env{db: bdb, repo: db.NewRepository(bdb), log: log, st: st}, nil
}

func (e *env) Close() {
	_ = e.log.Sync()
	_ = e.db.Close()
}

func (e *env) service(ctx context.Context) (*station.Service, error) {
	if flags.raceID == "" {
		return nil, race.ErrNoActiveContext
	}
	return station.Open(ctx, e.repo, race.Context{RaceID: flags.raceID, Station: e.st}, station.WithLogger(e.log))
}
