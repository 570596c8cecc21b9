package race

import (
	"fmt"
	"strings"
)

// Status is a runner's state at one station.
type Status uint8

const (
	NotStarted Status = iota
	CalledIn
	Passed
	NonStarter
	DNF
	Withdrawn
)

var statusNames = [...]string{
	NotStarted: "not_started",
	CalledIn:   "called_in",
	Passed:     "passed",
	NonStarter: "non_starter",
	DNF:        "dnf",
	Withdrawn:  "withdrawn",
}

// legacy spellings accepted from older exports
var statusAliases = map[string]Status{
	"":               NotStarted,
	"not-started":    NotStarted,
	"notstarted":     NotStarted,
	"pending":        NotStarted,
	"called-in":      CalledIn,
	"calledin":       CalledIn,
	"called":         CalledIn,
	"finished":       Passed,
	"recorded":       Passed,
	"marked":         Passed,
	"non-starter":    NonStarter,
	"nonstarter":     NonStarter,
	"dns":            NonStarter,
	"did_not_start":  NonStarter,
	"did_not_finish": DNF,
	"did-not-finish": DNF,
	"withdrew":       Withdrawn,
}

// Statuses lists every status in declaration order.
func Statuses() []Status {
	return []Status{NotStarted, CalledIn, Passed, NonStarter, DNF, Withdrawn}
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", s)
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	return int(s) < len(statusNames)
}

// Terminal reports whether no further forward transition exists at the station.
func (s Status) Terminal() bool {
	switch s {
	case NonStarter, DNF, Withdrawn:
		return true
	default:
		return false
	}
}

// Advancement orders statuses for merging: not_started < called_in < passed,
// and every terminal status sits above passed at the same level.
func (s Status) Advancement() int {
	switch s {
	case NotStarted:
		return 0
	case CalledIn:
		return 1
	case Passed:
		return 2
	default:
		return 3
	}
}

// AllowedAt reports whether the status may be recorded at the station.
// Withdrawn is base-station only.
func (s Status) AllowedAt(st Station) bool {
	if !s.Valid() {
		return false
	}
	if s == Withdrawn {
		return st.IsBase()
	}
	return true
}

// ParseStatus parses a wire name, accepting the legacy spellings of older exports.
func ParseStatus(v string) (Status, error) {
	n := strings.ToLower(strings.TrimSpace(v))
	for i, name := range statusNames {
		if name == n {
			return Status(i), nil
		}
	}
	if s, ok := statusAliases[n]; ok {
		return s, nil
	}
	return NotStarted, Errorf(CodeInvalidStatus, "unknown status %q", v)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, Errorf(CodeInvalidStatus, "unknown status %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
