// Package snapshot converts a race's configuration and station ledgers to and
// from the interchange payload that stations pass around as files, clipboard
// text or QR codes.
package snapshot

import (
	"fmt"
	"time"

	"github.com/padraicbc/stationsync/race"
)

// SchemaVersion is the payload version written by Encode. Decode accepts
// this and every older version.
const SchemaVersion = 2

// ExportType says which part of a race a payload carries.
type ExportType string

const (
	FullRaceData      ExportType = "full-race-data"
	CheckpointResults ExportType = "checkpoint-results"
	RaceConfig        ExportType = "race-config"
)

func (t ExportType) Valid() bool {
	switch t {
	case FullRaceData, CheckpointResults, RaceConfig:
		return true
	default:
		return false
	}
}

// ParseExportType accepts the wire names; the empty string means a full export.
func ParseExportType(v string) (ExportType, error) {
	if v == "" {
		return FullRaceData, nil
	}
	t := ExportType(v)
	if !t.Valid() {
		return "", race.Errorf(race.CodeUnsupportedSchema, "unknown export type %q", v)
	}
	return t, nil
}

// Snapshot is a decoded or freshly built bundle of race data. It is foreign
// data until merged and is never modified after construction.
type Snapshot struct {
	ID            string
	SchemaVersion int
	ExportedAt    time.Time
	Type          ExportType
	// ExportedBy is the station that produced the payload, when known.
	ExportedBy *race.Station
	Config     *race.Config
	Ledgers    *race.LedgerSet

	// Set by Decode only.
	Warnings []Warning
	Skipped  int
}

// Warning describes a record or station Decode had to drop or repair.
type Warning struct {
	Station *race.Station `json:"station,omitempty"`
	Runner  int           `json:"runner,omitempty"`
	Message string        `json:"message"`
}

func (w Warning) String() string {
	switch {
	case w.Station != nil && w.Runner != 0:
		return fmt.Sprintf("%s runner %d: %s", w.Station, w.Runner, w.Message)
	case w.Station != nil:
		return fmt.Sprintf("%s: %s", w.Station, w.Message)
	default:
		return w.Message
	}
}
