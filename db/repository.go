package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/padraicbc/stationsync/models"
	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/snapshot"
	"github.com/padraicbc/stationsync/station"
)

const batchSize = 500

// Repository stores races in a bun database.
type Repository struct {
	db bun.IDB
}

var _ station.Repository = (*Repository)(nil)

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// upsert turns an insert into an update of cols when the conflict columns
// already exist.
func (r *Repository) upsert(q *bun.InsertQuery, conflict string, cols ...string) *bun.InsertQuery {
	if r.db.Dialect().Name() == dialect.MySQL {
		q = q.On("DUPLICATE KEY UPDATE")
		for _, c := range cols {
			q = q.Set("? = VALUES(?)", bun.Ident(c), bun.Ident(c))
		}
		return q
	}
	q = q.On("CONFLICT (" + conflict + ") DO UPDATE")
	for _, c := range cols {
		q = q.Set("? = EXCLUDED.?", bun.Ident(c), bun.Ident(c))
	}
	return q
}

func (r *Repository) LoadRaceConfig(ctx context.Context, raceID string) (*race.Config, error) {
	row := new(models.RaceConfig)
	err := r.db.NewSelect().Model(row).Where("id = ?", raceID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, race.Errorf(race.CodeNotFound, "race %s not found", raceID)
	}
	if err != nil {
		return nil, err
	}
	return row.Config(), nil
}

func (r *Repository) SaveRaceConfig(ctx context.Context, cfg *race.Config) error {
	q := r.db.NewInsert().Model(models.NewRaceConfig(cfg))
	_, err := r.upsert(q, "id", "name", "date", "start_time", "checkpoints", "runners").Exec(ctx)
	return err
}

func (r *Repository) LoadLedger(ctx context.Context, raceID string, st race.Station) (*race.Ledger, error) {
	var rows []models.RunnerRecord
	err := r.db.NewSelect().
		Model(&rows).
		Where("race_id = ?", raceID).
		Where("station = ?", st.Number()).
		Order("runner_number").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	recs := make([]race.RunnerRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.Record()
		if err != nil {
			return nil, fmt.Errorf("runner %d at %s: %w", row.RunnerNumber, st, err)
		}
		recs = append(recs, rec)
	}
	return race.NewLedger(st, recs...), nil
}

// SaveLedger upserts the records of l in batches.
func (r *Repository) SaveLedger(ctx context.Context, raceID string, l *race.Ledger) error {
	rows := lo.Map(l.Records(), func(rec race.RunnerRecord, _ int) models.RunnerRecord {
		return models.NewRunnerRecord(raceID, rec)
	})
	for _, batch := range lo.Chunk(rows, batchSize) {
		q := r.db.NewInsert().Model(&batch)
		q = r.upsert(q, "race_id, station, runner_number",
			"status", "call_in_time", "mark_off_time", "last_modified", "notes")
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) PutRecord(ctx context.Context, raceID string, rec race.RunnerRecord) error {
	return r.SaveLedger(ctx, raceID, race.NewLedger(rec.Station, rec))
}

func (r *Repository) ListStations(ctx context.Context, raceID string) ([]race.Station, error) {
	var numbers []int
	err := r.db.NewSelect().
		Model((*models.RunnerRecord)(nil)).
		ColumnExpr("DISTINCT station").
		Where("race_id = ?", raceID).
		Order("station").
		Scan(ctx, &numbers)
	if err != nil {
		return nil, err
	}
	return lo.Map(numbers, func(n int, _ int) race.Station { return race.Station(n) }), nil
}

func (r *Repository) RecordImport(ctx context.Context, rec station.ImportRecord) error {
	row := &models.ImportLog{
		ID:            rec.ID,
		RaceID:        rec.RaceID,
		Station:       rec.Station.Number(),
		SnapshotID:    rec.SnapshotID,
		ExportType:    string(rec.ExportType),
		ImportedAt:    rec.ImportedAt.UnixNano(),
		Changed:       rec.Changed,
		Conflicts:     rec.Conflicts,
		Skipped:       rec.Skipped,
		ConfigChanged: rec.ConfigChanged,
	}
	if rec.ExportedBy != nil {
		n := rec.ExportedBy.Number()
		row.ExportedBy = &n
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (r *Repository) ListImports(ctx context.Context, raceID string) ([]station.ImportRecord, error) {
	var rows []models.ImportLog
	err := r.db.NewSelect().
		Model(&rows).
		Where("race_id = ?", raceID).
		Order("imported_at").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(row models.ImportLog, _ int) station.ImportRecord {
		rec := station.ImportRecord{
			ID:            row.ID,
			RaceID:        row.RaceID,
			Station:       race.Station(row.Station),
			SnapshotID:    row.SnapshotID,
			ExportType:    snapshot.ExportType(row.ExportType),
			ImportedAt:    time.Unix(0, row.ImportedAt).UTC(),
			Changed:       row.Changed,
			Conflicts:     row.Conflicts,
			Skipped:       row.Skipped,
			ConfigChanged: row.ConfigChanged,
		}
		if row.ExportedBy != nil {
			st := race.Station(*row.ExportedBy)
			rec.ExportedBy = &st
		}
		return rec
	}), nil
}

func (r *Repository) Transact(ctx context.Context, fn func(ctx context.Context, tx station.Repository) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Repository{db: tx})
	})
}
