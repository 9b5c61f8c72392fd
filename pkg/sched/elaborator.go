package sched

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/exp/slices"

	"github.com/minz/schedgen/pkg/record"
	"github.com/minz/schedgen/pkg/setexpr"
	"github.com/minz/schedgen/pkg/target"
)

// Elaborator owns every table the engine builds and drives the
// dependency-ordered phases described by spec.md §2, mirroring
// CodeGenSchedModels's constructor. There is no process-wide state: two
// Elaborators over two databases never interact.
type Elaborator struct {
	DB       record.DB
	Target   target.Target
	Expander *setexpr.SetExpander

	ProcModels []*ProcModel

	Writes []*SchedRW
	Reads  []*SchedRW

	writeIdx map[*record.Record]int
	readIdx  map[*record.Record]int

	Classes  []*SchedClass
	classKey map[string]int

	InstrClass map[*record.Record]int

	modelByDef map[*record.Record]int

	// exclusion[p][q] is true when p and q were observed as sibling
	// predicates of the same SchedVariant's Variants list -- the global
	// table mutuallyExclusive consults (§4.4).
	exclusion map[*record.Record]map[*record.Record]bool

	// Warnings accumulates non-fatal diagnostics (the "unused
	// SchedReadWrite" notice); nothing here aborts elaboration.
	Warnings []string

	completenessErrs []string

	// Debug gates tracef output. Off by default; CLI callers flip it on
	// via --debug.
	Debug bool

	// CompleteCheck gates whether checkCompleteness runs at all. Off by
	// default; CLI callers flip it on via --complete-check. When it does
	// run, a CoverageError it raises aborts Run like every other error
	// kind -- there is no downgrading a completeness violation to a
	// warning once the check is asked for.
	CompleteCheck bool
}

// New creates an Elaborator over a database and target; nothing runs
// until Run is called.
func New(db record.DB, t target.Target) *Elaborator {
	e := &Elaborator{
		DB:         db,
		Target:     t,
		Expander:   setexpr.New(t),
		writeIdx:   make(map[*record.Record]int),
		readIdx:    make(map[*record.Record]int),
		classKey:   make(map[string]int),
		InstrClass: make(map[*record.Record]int),
		modelByDef: make(map[*record.Record]int),
		exclusion:  make(map[*record.Record]map[*record.Record]bool),
	}
	e.Writes = []*SchedRW{{Index: 0, Name: "NoWrite"}}
	e.Reads = []*SchedRW{{Index: 0, Name: "ReadDefault"}}
	e.ProcModels = []*ProcModel{{Index: 0, Name: "NoSchedModel"}}
	e.Classes = []*SchedClass{{Index: 0, Name: "NoInstrModel", ProcIndices: []int{0}}}
	return e
}

// tracef prints a phase-by-phase trace line when Debug is set, mirroring
// CodeGenSchedule.cpp's DEBUG(dbgs() << ...) blocks. It no-ops otherwise.
func (e *Elaborator) tracef(format string, args ...interface{}) {
	if !e.Debug {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Run drives every phase in dependency order. The first error aborts
// immediately with no partial results surfaced, per spec.md §7.
// checkCompleteness only runs when CompleteCheck is set; every other
// phase always runs.
func (e *Elaborator) Run() error {
	phases := []struct {
		name string
		fn   func() error
	}{
		{"collectProcModels", e.collectProcModels},
		{"collectSchedRW", e.collectSchedRW},
		{"collectSchedClasses", e.collectSchedClasses},
		{"collectProcItins", e.collectProcItins},
		{"collectProcItinRW", e.collectProcItinRW},
		{"collectProcUnsupportedFeatures", e.collectProcUnsupportedFeatures},
		{"inferSchedClasses", e.inferSchedClasses},
		{"collectProcResources", e.collectProcResources},
	}
	if e.CompleteCheck {
		phases = append(phases, struct {
			name string
			fn   func() error
		}{"checkCompleteness", e.checkCompleteness})
	}
	for _, phase := range phases {
		e.tracef("sched: entering phase %s", phase.name)
		if err := phase.fn(); err != nil {
			e.tracef("sched: phase %s failed: %v", phase.name, err)
			return err
		}
	}
	e.tracef("sched: done (%d classes, %d proc models, %d writes, %d reads)",
		len(e.Classes), len(e.ProcModels), len(e.Writes), len(e.Reads))
	return nil
}

// --- shared table helpers ---

func (e *Elaborator) entry(idx int, isRead bool) *SchedRW {
	if isRead {
		return e.Reads[idx]
	}
	return e.Writes[idx]
}

// getSchedRWIdx resolves a SchedRW-deriving record to its table index. It
// returns 0 (the invalid entry) if rec is nil or was never collected.
func (e *Elaborator) getSchedRWIdx(rec *record.Record, isRead bool) int {
	if rec == nil {
		return 0
	}
	if isRead {
		return e.readIdx[rec]
	}
	return e.writeIdx[rec]
}

// resolveRWList resolves a list of SchedRW records (e.g. an instruction's
// SchedRW field, or OperandReadWrites) to parallel write/read index lists.
func (e *Elaborator) resolveRWList(rws []*record.Record) (writes, reads []int, err error) {
	for _, rw := range rws {
		isRead := rw.IsSubClassOf("SchedRead")
		idx := e.getSchedRWIdx(rw, isRead)
		if idx == 0 {
			return nil, nil, errAt(ReferenceError, rw.Loc, "unresolved SchedReadWrite %q", rw.Name)
		}
		if isRead {
			reads = append(reads, idx)
		} else {
			writes = append(writes, idx)
		}
	}
	return writes, reads, nil
}

// modelIndex resolves a SchedMachineModel-deriving record (or nil /
// NoSchedModel) to its ProcModel index.
func (e *Elaborator) modelIndex(modelDef *record.Record) (int, error) {
	if modelDef == nil || modelDef.Name == "NoSchedModel" {
		return 0, nil
	}
	idx, ok := e.modelByDef[modelDef]
	if !ok {
		return 0, errAt(ReferenceError, modelDef.Loc, "unknown SchedModel %q", modelDef.Name)
	}
	return idx, nil
}

func classKeyOf(itin *record.Record, writes, reads []int) string {
	return fmt.Sprintf("%p|%v|%v", itin, writes, reads)
}

// genRWName synthesizes a human-readable name for a record-backed RW
// entry, mirroring the source's use of the def's own name.
func genRWName(rec *record.Record, isRead bool) string {
	if rec != nil {
		return rec.Name
	}
	if isRead {
		return "ReadDefault"
	}
	return "NoWrite"
}

// createSchedClassName synthesizes a deterministic, readable class name
// from its dedup key, the way the source derives a diagnostic name rather
// than requiring one to be declared.
func (e *Elaborator) createSchedClassName(itin *record.Record, writes, reads []int) string {
	name := "sched_class"
	if itin != nil {
		name = itin.Name
	}
	for _, w := range writes {
		name += "_" + e.Writes[w].Name
	}
	for _, r := range reads {
		name += "_" + e.Reads[r].Name
	}
	return name
}

// findOrInsertRW returns the index of a sequence-RW entry modeling exactly
// the given child sequence, synthesizing and appending a new one if no
// existing entry matches. Idempotent: calling it twice with the same
// sequence returns the same index and leaves the table unchanged the
// second time (spec.md §8 property 6).
func (e *Elaborator) findOrInsertRW(seq []int, isRead bool) int {
	table := e.Writes
	if isRead {
		table = e.Reads
	}
	for _, entry := range table {
		if entry.Kind == RWSequence && slices.Equal(entry.Sequence, seq) {
			return entry.Index
		}
	}
	name := "synth_seq"
	for _, idx := range seq {
		name += "_" + e.entry(idx, isRead).Name
	}
	nw := &SchedRW{
		Index:    len(table),
		Name:     name,
		IsRead:   isRead,
		Kind:     RWSequence,
		Sequence: append([]int(nil), seq...),
		Repeat:   1,
	}
	if isRead {
		e.Reads = append(e.Reads, nw)
	} else {
		e.Writes = append(e.Writes, nw)
	}
	return nw.Index
}

// expandRWSequence flattens a sequence entry by recursive descent: a leaf
// emits itself, a sequence emits its children expanded and repeated.
func (e *Elaborator) expandRWSequence(idx int, isRead bool) []int {
	entry := e.entry(idx, isRead)
	if entry.Kind != RWSequence {
		return []int{idx}
	}
	var out []int
	repeat := entry.Repeat
	if repeat < 1 {
		repeat = 1
	}
	for i := 0; i < repeat; i++ {
		for _, child := range entry.Sequence {
			out = append(out, e.expandRWSequence(child, isRead)...)
		}
	}
	return out
}

// HasReadOfWrite reports whether any read entry's ValidWrites list (a
// SchedReadAdvance's latency-adjustment scope) names the write at
// writeIdx. A downstream consumer walking the elaborated tables (a
// latency-estimation pass, or sched-repl's "write" command) uses this to
// decide whether a write needs an associated read-advance lookup.
func (e *Elaborator) HasReadOfWrite(writeIdx int) bool {
	if writeIdx < 0 || writeIdx >= len(e.Writes) {
		return false
	}
	writeRec := e.Writes[writeIdx].TheDef
	if writeRec == nil {
		return false
	}
	for _, r := range e.Reads[1:] {
		if r.TheDef == nil || !r.TheDef.IsSubClassOf("SchedReadAdvance") {
			continue
		}
		for _, w := range r.TheDef.DefList("ValidWrites") {
			if w == writeRec {
				return true
			}
		}
	}
	return false
}

func sortRecordsByName(recs []*record.Record) []*record.Record {
	out := append([]*record.Record(nil), recs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func unionSorted(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		seen[v] = true
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
