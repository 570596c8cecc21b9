package models

import "github.com/uptrace/bun"

// ImportLog records every snapshot a station imported.
type ImportLog struct {
	bun.BaseModel `bun:"table:import_log,alias:il"`

	ID            string `bun:"id,pk" json:"id"`
	RaceID        string `bun:"race_id,notnull" json:"raceID"`
	Station       int    `bun:"station,notnull" json:"station"`
	SnapshotID    string `bun:"snapshot_id,notnull" json:"snapshotID"`
	ExportType    string `bun:"export_type,notnull" json:"exportType"`
	ExportedBy    *int   `bun:"exported_by" json:"exportedBy,omitempty"`
	ImportedAt    int64  `bun:"imported_at,notnull" json:"importedAt"`
	Changed       int    `bun:"changed,notnull" json:"changed"`
	Conflicts     int    `bun:"conflicts,notnull" json:"conflicts"`
	Skipped       int    `bun:"skipped,notnull" json:"skipped"`
	ConfigChanged bool   `bun:"config_changed,notnull" json:"configChanged"`
}
