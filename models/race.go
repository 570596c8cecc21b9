package models

import (
	"github.com/uptrace/bun"

	"github.com/padraicbc/stationsync/race"
)

// RaceConfig is the stored race configuration.
type RaceConfig struct {
	bun.BaseModel `bun:"table:race_configs,alias:rc"`

	ID          string            `bun:"id,pk" json:"id"`
	Name        string            `bun:"name,notnull" json:"name"`
	Date        string            `bun:"date,notnull" json:"date"`
	StartTime   string            `bun:"start_time,notnull" json:"startTime"`
	Checkpoints []race.Checkpoint `bun:"checkpoints" json:"checkpoints"`
	Runners     race.RunnerSet    `bun:"runners" json:"runners"`
}

// NewRaceConfig converts a race configuration into its row.
func NewRaceConfig(cfg *race.Config) *RaceConfig {
	c := cfg.Clone()
	return &RaceConfig{
		ID:          c.ID,
		Name:        c.Name,
		Date:        c.Date,
		StartTime:   c.StartTime,
		Checkpoints: c.Checkpoints,
		Runners:     c.Runners,
	}
}

func (r *RaceConfig) Config() *race.Config {
	return (&race.Config{
		ID:          r.ID,
		Name:        r.Name,
		Date:        r.Date,
		StartTime:   r.StartTime,
		Checkpoints: r.Checkpoints,
		Runners:     r.Runners,
	}).Clone()
}
