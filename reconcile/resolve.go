package reconcile

import (
	"strings"
	"time"

	"github.com/padraicbc/stationsync/race"
)

// Kind tags how a runner's record was resolved.
type Kind string

const (
	Added            Kind = "added"
	Advanced         Kind = "advanced"
	RecencyReplaced  Kind = "recency-replaced"
	TerminalConflict Kind = "terminal-conflict"
	Unchanged        Kind = "unchanged"
)

// Compare orders two records of the same runner at the same station:
// advancement first, then LastModified, then the remaining fields so that
// distinct records never compare equal. It returns 0 only for equal records.
func Compare(a, b race.RunnerRecord) int {
	if c := cmpInt(a.Status.Advancement(), b.Status.Advancement()); c != 0 {
		return c
	}
	if c := a.LastModified.Compare(b.LastModified); c != 0 {
		return c
	}
	if c := cmpInt(int(a.Status), int(b.Status)); c != 0 {
		return c
	}
	if c := cmpTime(a.RecordedTime, b.RecordedTime); c != 0 {
		return c
	}
	if c := cmpTime(a.CallInTime, b.CallInTime); c != 0 {
		return c
	}
	return strings.Compare(a.Notes, b.Notes)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// nil sorts before any time
func cmpTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

// Resolve picks the record a station keeps for one runner. A nil local means
// the station has no record for the runner yet; a nil incoming means the
// snapshot has none. The winner is always one of the two inputs, whole.
func Resolve(local, incoming *race.RunnerRecord) (race.RunnerRecord, Kind) {
	switch {
	case local == nil && incoming == nil:
		return race.RunnerRecord{}, Unchanged
	case local == nil:
		return *incoming, Added
	case incoming == nil:
		return *local, Unchanged
	}

	conflict := local.Status != incoming.Status &&
		local.Status.Terminal() && incoming.Status.Terminal()

	if Compare(*incoming, *local) <= 0 {
		if conflict {
			return *local, TerminalConflict
		}
		return *local, Unchanged
	}
	switch {
	case conflict:
		return *incoming, TerminalConflict
	case incoming.Status.Advancement() > local.Status.Advancement():
		return *incoming, Advanced
	default:
		return *incoming, RecencyReplaced
	}
}
