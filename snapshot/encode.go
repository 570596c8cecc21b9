package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/padraicbc/stationsync/race"
)

type options struct {
	exportType ExportType
	station    *race.Station
	exportedBy *race.Station
	now        func() time.Time
	newID      func() string
}

// Option configures New and Encode.
type Option func(*options)

// WithType selects the export type. The default is FullRaceData.
func WithType(t ExportType) Option {
	return func(o *options) { o.exportType = t }
}

// WithStation selects the ledger carried by a CheckpointResults export.
func WithStation(st race.Station) Option {
	return func(o *options) { o.station = &st }
}

// WithExportedBy records the exporting station in the payload.
func WithExportedBy(st race.Station) Option {
	return func(o *options) { o.exportedBy = &st }
}

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithID fixes the snapshot id instead of generating one.
func WithID(id string) Option {
	return func(o *options) { o.newID = func() string { return id } }
}

// New bundles cfg and the ledgers selected by the export type into a Snapshot.
func New(cfg *race.Config, ledgers *race.LedgerSet, opts ...Option) (*Snapshot, error) {
	o := options{exportType: FullRaceData, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg == nil {
		return nil, race.ErrNoActiveContext
	}
	if !o.exportType.Valid() {
		return nil, race.Errorf(race.CodeUnsupportedSchema, "unknown export type %q", o.exportType)
	}

	var selected *race.LedgerSet
	switch o.exportType {
	case FullRaceData:
		selected = ledgers
	case CheckpointResults:
		st := race.BaseStation
		switch {
		case o.station != nil:
			st = *o.station
		case o.exportedBy != nil:
			st = *o.exportedBy
		}
		l := ledgers.Get(st)
		if l == nil {
			return nil, race.Errorf(race.CodeInvalidStation, "no ledger for %s", st)
		}
		selected = race.NewLedgerSet(l)
	case RaceConfig:
		selected = race.NewLedgerSet()
	}

	return &Snapshot{
		ID:            o.newID(),
		SchemaVersion: SchemaVersion,
		ExportedAt:    o.now().UTC(),
		Type:          o.exportType,
		ExportedBy:    o.exportedBy,
		Config:        cfg.Clone(),
		Ledgers:       selected,
	}, nil
}

// Marshal writes s in the current schema. Stations and records are sorted so
// the output only depends on the snapshot's content.
func Marshal(s *Snapshot) ([]byte, error) {
	if s == nil || s.Config == nil {
		return nil, race.ErrNoActiveContext
	}
	p := payloadJSON{
		SchemaVersion: SchemaVersion,
		SnapshotID:    s.ID,
		ExportedAt:    s.ExportedAt.UTC().Format(time.RFC3339Nano),
		ExportType:    s.Type,
		ExportedBy:    s.ExportedBy,
		Race:          s.Config,
		Stations:      make([]stationJSON, 0, s.Ledgers.Len()),
	}
	for _, l := range s.Ledgers.Ledgers() {
		sj := stationJSON{StationID: l.Station(), Records: make([]recordJSON, 0, l.Len())}
		for _, r := range l.Records() {
			sj.Records = append(sj.Records, recordJSON{
				RunnerNumber: r.RunnerNumber,
				Status:       r.Status,
				CallInTime:   formatTime(r.CallInTime),
				MarkOffTime:  formatTime(r.RecordedTime),
				LastModified: formatTime(&r.LastModified),
				Notes:        r.Notes,
			})
		}
		p.Stations = append(p.Stations, sj)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return b, nil
}

// Encode is New followed by Marshal.
func Encode(cfg *race.Config, ledgers *race.LedgerSet, opts ...Option) ([]byte, error) {
	s, err := New(cfg, ledgers, opts...)
	if err != nil {
		return nil, err
	}
	return Marshal(s)
}
