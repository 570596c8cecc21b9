package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite"

	"github.com/padraicbc/stationsync/config"
	"github.com/padraicbc/stationsync/models"
)

// Setup opens the database selected by DB_DRIVER and exits when it cannot
// be reached.
func Setup(cfg *config.Config) *bun.DB {
	db, err := Open(cfg.DBDriver, cfg.DSN(), cfg.Debug)
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	return db
}

// Open connects to a postgres, sqlite or mysql database.
func Open(driver, dsn string, debug bool) (*bun.DB, error) {
	var db *bun.DB
	switch driver {
	case config.DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case config.DriverSQLite:
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite %s: %w", dsn, err)
		}
		// one writer; sqlite serializes anyway and :memory: is per connection
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case config.DriverMySQL:
		sqldb, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening mysql: %w", err)
		}
		sqldb.SetMaxOpenConns(4)
		db = bun.NewDB(sqldb, mysqldialect.New())
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// CreateTables creates all tables. Existing tables are left alone.
func CreateTables(ctx context.Context, db bun.IDB) error {
	tables := []interface{}{
		(*models.RaceConfig)(nil),
		(*models.RunnerRecord)(nil),
		(*models.ImportLog)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}

	// mysql has no CREATE INDEX IF NOT EXISTS
	if db.Dialect().Name() == dialect.MySQL {
		return nil
	}
	if _, err := db.NewCreateIndex().
		Model((*models.ImportLog)(nil)).
		Index("import_log_race_idx").
		IfNotExists().
		Column("race_id", "imported_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("creating import log index: %w", err)
	}

	return nil
}
