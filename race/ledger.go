package race

import (
	"maps"
	"slices"
)

// Ledger is the immutable set of runner records of one station. Every
// mutation returns a new ledger; a *Ledger handed out is never changed, so
// readers may hold on to it while a writer builds the next one.
//
// A nil *Ledger behaves as an empty ledger.
type Ledger struct {
	station Station
	records map[int]RunnerRecord
}

// NewLedger builds a ledger for st. Records are re-keyed to st.
func NewLedger(st Station, records ...RunnerRecord) *Ledger {
	l := &Ledger{station: st, records: make(map[int]RunnerRecord, len(records))}
	for _, r := range records {
		r.Station = st
		l.records[r.RunnerNumber] = r
	}
	return l
}

// InitializeLedger returns l extended with a not_started record for every
// runner that has none. Existing records are kept as they are, so running it
// again is harmless.
func InitializeLedger(l *Ledger, st Station, runners []int) *Ledger {
	if l != nil && l.station != st {
		l = nil
	}
	var missing []RunnerRecord
	for _, n := range runners {
		if _, ok := l.Get(n); !ok {
			missing = append(missing, NewRecord(st, n))
		}
	}
	if l == nil {
		return NewLedger(st, missing...)
	}
	if len(missing) == 0 {
		return l
	}
	return l.PutAll(missing)
}

func (l *Ledger) Station() Station {
	if l == nil {
		return BaseStation
	}
	return l.station
}

func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.records)
}

func (l *Ledger) Get(runner int) (RunnerRecord, bool) {
	if l == nil {
		return RunnerRecord{}, false
	}
	r, ok := l.records[runner]
	return r, ok
}

// Record returns the runner's record, or the implicit not_started record.
func (l *Ledger) Record(runner int) RunnerRecord {
	if r, ok := l.Get(runner); ok {
		return r
	}
	return NewRecord(l.Station(), runner)
}

// Runners returns the runner numbers with a record, ascending.
func (l *Ledger) Runners() []int {
	if l == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(l.records))
}

// Records returns all records ordered by runner number.
func (l *Ledger) Records() []RunnerRecord {
	runners := l.Runners()
	out := make([]RunnerRecord, 0, len(runners))
	for _, n := range runners {
		out = append(out, l.records[n])
	}
	return out
}

// Put returns a copy of l with rec replacing the runner's record.
func (l *Ledger) Put(rec RunnerRecord) *Ledger {
	return l.PutAll([]RunnerRecord{rec})
}

// PutAll returns a copy of l with every record in recs applied in order.
func (l *Ledger) PutAll(recs []RunnerRecord) *Ledger {
	st := l.Station()
	next := &Ledger{station: st, records: make(map[int]RunnerRecord, l.Len()+len(recs))}
	if l != nil {
		maps.Copy(next.records, l.records)
	}
	for _, r := range recs {
		r.Station = st
		next.records[r.RunnerNumber] = r
	}
	return next
}

// Equal reports whether both ledgers hold identical records for the same station.
func (l *Ledger) Equal(o *Ledger) bool {
	if l.Len() != o.Len() || (l.Len() > 0 && l.Station() != o.Station()) {
		return false
	}
	if l == nil || o == nil {
		return true
	}
	for n, r := range l.records {
		or, ok := o.records[n]
		if !ok || !r.Equal(or) {
			return false
		}
	}
	return true
}

// LedgerSet is the immutable collection of station ledgers a station knows
// about for one race. A nil *LedgerSet behaves as an empty set.
type LedgerSet struct {
	ledgers map[Station]*Ledger
}

func NewLedgerSet(ledgers ...*Ledger) *LedgerSet {
	s := &LedgerSet{ledgers: make(map[Station]*Ledger, len(ledgers))}
	for _, l := range ledgers {
		if l != nil {
			s.ledgers[l.Station()] = l
		}
	}
	return s
}

// Get returns the station's ledger, or nil when the station is unknown.
func (s *LedgerSet) Get(st Station) *Ledger {
	if s == nil {
		return nil
	}
	return s.ledgers[st]
}

func (s *LedgerSet) Has(st Station) bool {
	return s.Get(st) != nil
}

func (s *LedgerSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ledgers)
}

// Stations returns the known stations, base station first then checkpoints
// ascending.
func (s *LedgerSet) Stations() []Station {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.ledgers))
}

// Ledgers returns the ledgers in Stations order.
func (s *LedgerSet) Ledgers() []*Ledger {
	sts := s.Stations()
	out := make([]*Ledger, 0, len(sts))
	for _, st := range sts {
		out = append(out, s.ledgers[st])
	}
	return out
}

// With returns a copy of s with l replacing its station's ledger.
func (s *LedgerSet) With(l *Ledger) *LedgerSet {
	next := &LedgerSet{ledgers: make(map[Station]*Ledger, s.Len()+1)}
	if s != nil {
		maps.Copy(next.ledgers, s.ledgers)
	}
	next.ledgers[l.Station()] = l
	return next
}

// Initialize returns s with st's ledger initialized for runners.
func (s *LedgerSet) Initialize(st Station, runners []int) *LedgerSet {
	cur := s.Get(st)
	next := InitializeLedger(cur, st, runners)
	if next == cur && cur != nil {
		return s
	}
	return s.With(next)
}

func (s *LedgerSet) Equal(o *LedgerSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, st := range s.Stations() {
		ol := o.Get(st)
		if ol == nil || !s.Get(st).Equal(ol) {
			return false
		}
	}
	return true
}
