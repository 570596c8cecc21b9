package station

import (
	"context"
	"time"

	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/snapshot"
)

// Repository persists race configurations, station ledgers and the import
// log. Implementations return race.ErrNotFound for a missing race.
type Repository interface {
	LoadRaceConfig(ctx context.Context, raceID string) (*race.Config, error)
	SaveRaceConfig(ctx context.Context, cfg *race.Config) error
	// LoadLedger returns an empty ledger for a station with no stored records.
	LoadLedger(ctx context.Context, raceID string, st race.Station) (*race.Ledger, error)
	// SaveLedger upserts every record of l.
	SaveLedger(ctx context.Context, raceID string, l *race.Ledger) error
	PutRecord(ctx context.Context, raceID string, rec race.RunnerRecord) error
	ListStations(ctx context.Context, raceID string) ([]race.Station, error)
	RecordImport(ctx context.Context, rec ImportRecord) error
	// ListImports returns a race's import log, oldest first.
	ListImports(ctx context.Context, raceID string) ([]ImportRecord, error)
	// Transact runs fn against a repository whose writes are committed
	// together when fn returns nil and discarded otherwise.
	Transact(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
}

// ImportRecord is one entry of the import log.
type ImportRecord struct {
	ID            string              `json:"id"`
	RaceID        string              `json:"raceId"`
	Station       race.Station        `json:"station"`
	SnapshotID    string              `json:"snapshotId"`
	ExportType    snapshot.ExportType `json:"exportType"`
	ExportedBy    *race.Station       `json:"exportedBy,omitempty"`
	ImportedAt    time.Time           `json:"importedAt"`
	Changed       int                 `json:"changed"`
	Conflicts     int                 `json:"conflicts"`
	Skipped       int                 `json:"skipped"`
	ConfigChanged bool                `json:"configChanged"`
}
