package race

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Station identifies a checkpoint by number, or the base station.
type Station int

// BaseStation is the distinguished finish/base station id. Checkpoints are
// numbered from 1.
const BaseStation Station = 0

const baseStationName = "base"

// CheckpointStation returns the station id of checkpoint n.
func CheckpointStation(n int) Station { return Station(n) }

func (s Station) IsBase() bool { return s == BaseStation }

// Number returns the checkpoint number, or 0 for the base station.
func (s Station) Number() int { return int(s) }

func (s Station) Valid() bool { return s >= 0 }

func (s Station) String() string {
	if s.IsBase() {
		return baseStationName
	}
	return "checkpoint-" + strconv.Itoa(int(s))
}

// ParseStation accepts "base", "base-station", "checkpoint-N", "cp-N" and "N".
func ParseStation(v string) (Station, error) {
	n := strings.ToLower(strings.TrimSpace(v))
	switch n {
	case baseStationName, "base-station", "base_station", "basestation", "0":
		return BaseStation, nil
	}
	for _, prefix := range []string{"checkpoint", "cp"} {
		if rest, ok := strings.CutPrefix(n, prefix); ok {
			n = strings.TrimPrefix(strings.TrimSpace(rest), "-")
			break
		}
	}
	num, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil || num < 1 {
		return BaseStation, Errorf(CodeInvalidStation, "unknown station %q", v)
	}
	return Station(num), nil
}

// MarshalJSON writes "base" or the checkpoint number.
func (s Station) MarshalJSON() ([]byte, error) {
	if s.IsBase() {
		return []byte(`"` + baseStationName + `"`), nil
	}
	return []byte(strconv.Itoa(int(s))), nil
}

func (s *Station) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		st, err := ParseStation(v)
		if err != nil {
			return err
		}
		*s = st
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return Errorf(CodeInvalidStation, "unknown station %s", string(data))
	}
	if n < 0 {
		return Errorf(CodeInvalidStation, "unknown station %d", n)
	}
	*s = Station(n)
	return nil
}

// Context names the race and station an operation acts for. It replaces any
// ambient "current race" state: every station operation receives one.
type Context struct {
	RaceID  string
	Station Station
}

// Validate returns ErrNoActiveContext when no race is selected.
func (c Context) Validate() error {
	if strings.TrimSpace(c.RaceID) == "" {
		return ErrNoActiveContext
	}
	if !c.Station.Valid() {
		return Errorf(CodeInvalidStation, "invalid station %d", c.Station)
	}
	return nil
}
