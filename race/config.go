package race

import (
	"slices"
	"strings"
	"time"
)

// maxRunners bounds the runner set, counting every range in full, so a typo
// or a hostile payload cannot expand into millions of pre-populated records.
const maxRunners = 100000

// Checkpoint is one configured checkpoint station.
type Checkpoint struct {
	Number int    `json:"number"`
	Name   string `json:"name,omitempty"`
}

// Range is an inclusive range of runner numbers.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// RunnerSet is the set of valid runner numbers: contiguous ranges plus an
// explicit list.
type RunnerSet struct {
	Ranges  []Range `json:"ranges,omitempty"`
	Numbers []int   `json:"numbers,omitempty"`
}

// Contains reports whether n is a valid runner number.
func (s RunnerSet) Contains(n int) bool {
	for _, r := range s.Ranges {
		if n >= r.From && n <= r.To {
			return true
		}
	}
	return slices.Contains(s.Numbers, n)
}

// All returns every runner number, sorted and de-duplicated.
func (s RunnerSet) All() []int {
	out := make([]int, 0, len(s.Numbers))
	for _, r := range s.Ranges {
		for n := r.From; n <= r.To; n++ {
			out = append(out, n)
		}
	}
	out = append(out, s.Numbers...)
	slices.Sort(out)
	return slices.Compact(out)
}

func (s RunnerSet) Empty() bool {
	return len(s.Ranges) == 0 && len(s.Numbers) == 0
}

// Equal compares membership, not representation.
func (s RunnerSet) Equal(o RunnerSet) bool {
	return slices.Equal(s.All(), o.All())
}

// Union returns the normalized union of both sets.
func (s RunnerSet) Union(o RunnerSet) RunnerSet {
	return RunnerSet{
		Ranges:  append(slices.Clone(s.Ranges), o.Ranges...),
		Numbers: append(slices.Clone(s.Numbers), o.Numbers...),
	}.Normalize()
}

// Normalize rewrites the set as maximal ranges, keeping isolated numbers in
// the explicit list.
func (s RunnerSet) Normalize() RunnerSet {
	all := s.All()
	var out RunnerSet
	for i := 0; i < len(all); {
		j := i
		for j+1 < len(all) && all[j+1] == all[j]+1 {
			j++
		}
		if j > i {
			out.Ranges = append(out.Ranges, Range{From: all[i], To: all[j]})
		} else {
			out.Numbers = append(out.Numbers, all[i])
		}
		i = j + 1
	}
	return out
}

// Config is the race configuration shared by every station.
type Config struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Date        string       `json:"date,omitempty"`
	StartTime   string       `json:"startTime,omitempty"`
	Checkpoints []Checkpoint `json:"checkpoints"`
	Runners     RunnerSet    `json:"runners"`
}

// Validate checks the configuration is usable for setting up stations.
func (c *Config) Validate() error {
	if c == nil {
		return Errorf(CodeInvalidConfig, "missing race configuration")
	}
	if strings.TrimSpace(c.ID) == "" {
		return Errorf(CodeInvalidConfig, "race id is required")
	}
	if c.Date != "" {
		if _, err := time.Parse(time.DateOnly, c.Date); err != nil {
			return Errorf(CodeInvalidConfig, "race date %q is not YYYY-MM-DD", c.Date)
		}
	}
	if c.StartTime != "" && !validClock(c.StartTime) {
		return Errorf(CodeInvalidConfig, "start time %q is not HH:MM", c.StartTime)
	}
	seen := make(map[int]bool, len(c.Checkpoints))
	for _, cp := range c.Checkpoints {
		if cp.Number < 1 {
			return Errorf(CodeInvalidConfig, "checkpoint number %d must be positive", cp.Number)
		}
		if seen[cp.Number] {
			return Errorf(CodeInvalidConfig, "duplicate checkpoint %d", cp.Number)
		}
		seen[cp.Number] = true
	}
	if c.Runners.Empty() {
		return Errorf(CodeInvalidConfig, "race has no runners")
	}
	total := len(c.Runners.Numbers)
	for _, r := range c.Runners.Ranges {
		if r.From < 1 || r.To < r.From {
			return Errorf(CodeInvalidConfig, "invalid runner range %d-%d", r.From, r.To)
		}
		if r.To-r.From >= maxRunners {
			return Errorf(CodeInvalidConfig, "runner range %d-%d is too large", r.From, r.To)
		}
		total += r.To - r.From + 1
		if total > maxRunners {
			return Errorf(CodeInvalidConfig, "race has more than %d runners", maxRunners)
		}
	}
	if total > maxRunners {
		return Errorf(CodeInvalidConfig, "race has more than %d runners", maxRunners)
	}
	for _, n := range c.Runners.Numbers {
		if n < 1 {
			return Errorf(CodeInvalidConfig, "invalid runner number %d", n)
		}
	}
	return nil
}

func validClock(v string) bool {
	for _, layout := range []string{"15:04", time.TimeOnly} {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// CheckRunner returns ErrInvalidRunner when n is outside the configured set.
func (c *Config) CheckRunner(n int) error {
	if !c.Runners.Contains(n) {
		return Errorf(CodeInvalidRunner, "runner %d is not registered for race %s", n, c.ID)
	}
	return nil
}

// HasStation reports whether st is the base station or a configured checkpoint.
func (c *Config) HasStation(st Station) bool {
	if st.IsBase() {
		return true
	}
	_, ok := c.Checkpoint(st)
	return ok
}

// CheckStation returns ErrInvalidStation for unconfigured checkpoints.
func (c *Config) CheckStation(st Station) error {
	if !c.HasStation(st) {
		return Errorf(CodeInvalidStation, "%s is not configured for race %s", st, c.ID)
	}
	return nil
}

func (c *Config) Checkpoint(st Station) (Checkpoint, bool) {
	for _, cp := range c.Checkpoints {
		if cp.Number == st.Number() {
			return cp, true
		}
	}
	return Checkpoint{}, false
}

// StationName returns the display name of a station.
func (c *Config) StationName(st Station) string {
	if cp, ok := c.Checkpoint(st); ok && cp.Name != "" {
		return cp.Name
	}
	if st.IsBase() {
		return "Base station"
	}
	return st.String()
}

// Stations returns the configured checkpoints in course order followed by the
// base station.
func (c *Config) Stations() []Station {
	out := make([]Station, 0, len(c.Checkpoints)+1)
	for _, cp := range c.Checkpoints {
		out = append(out, Station(cp.Number))
	}
	return append(out, BaseStation)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Checkpoints = slices.Clone(c.Checkpoints)
	out.Runners = RunnerSet{
		Ranges:  slices.Clone(c.Runners.Ranges),
		Numbers: slices.Clone(c.Runners.Numbers),
	}
	return &out
}
