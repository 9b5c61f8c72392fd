// Package sched is the scheduling-model elaboration engine: it consumes a
// record database, a target's instruction table, and a set-expression
// expander, and produces deduplicated ReadWrite, ProcModel, and SchedClass
// tables plus an instruction-to-class map. Ported end to end from
// CodeGenSchedModels in CodeGenSchedule.cpp.
package sched

import "github.com/minz/schedgen/pkg/record"

// ProcModel is one processor's accumulated scheduling data. Index 0 is the
// synthetic "no model" entry every instruction without an explicit
// SchedModel resolves to.
type ProcModel struct {
	Index int
	Name  string

	// ModelDef is the SchedMachineModel-deriving record this entry was
	// built from; nil for the index-0 NoSchedModel entry.
	ModelDef *record.Record
	// ItinsDef is the legacy itineraries record this model points to, if
	// any (the NoItineraries record when the model declares that, nil when
	// the field is unset; HasItineraries is false in both cases).
	ItinsDef       *record.Record
	HasItineraries bool

	// ItinDefList is indexed by SchedClass index: ItinDefList[i] is the
	// ItinData this processor's Itineraries declares for Classes[i], or nil
	// if that class has no itinerary data on this processor.
	ItinDefList             []*record.Record
	ItinRWDefs              []*record.Record
	WriteResDefs            []*record.Record
	ReadAdvanceDefs         []*record.Record
	ProcResourceDefs        []*record.Record
	UnsupportedFeaturesDefs []*record.Record
}

// RWKind tags what shape a SchedRW table entry has.
type RWKind int

const (
	RWLeaf RWKind = iota
	RWSequence
	RWVariant
)

func (k RWKind) String() string {
	switch k {
	case RWSequence:
		return "sequence"
	case RWVariant:
		return "variant"
	default:
		return "leaf"
	}
}

// SchedRW is one entry of the writes or reads table. Writes and reads
// occupy disjoint index spaces entirely (index 0 in each is the reserved
// "invalid" entry).
type SchedRW struct {
	Index  int
	Name   string
	IsRead bool

	// TheDef is nil for sequence entries synthesized by findOrInsertRW
	// during variant expansion -- they have no backing record.
	TheDef *record.Record

	Kind        RWKind
	IsVariadic  bool
	HasVariants bool
	IsAlias     bool

	// Sequence holds child RW indices for Kind == RWSequence.
	Sequence []int
	Repeat   int

	// Aliases lists the SchedAlias records that target this entry as
	// their MatchRW (collectSchedRW's alias-attachment step).
	Aliases []*record.Record
}

// SchedClass is a deduplicated scheduling identity: every instruction that
// resolves to the same (itinerary, writes, reads) key shares one entry.
// Index 0 is NoInstrModel.
type SchedClass struct {
	Index        int
	Name         string
	ItinClassDef *record.Record
	Writes       []int
	Reads        []int
	ProcIndices  []int
	InstRWs      []*record.Record
	Transitions  []Transition
}

// PredCheck is one conjunct of a PredTransition's PredTerm: "RWIdx's
// variant choice at this decision point selected Predicate".
type PredCheck struct {
	IsRead    bool
	RWIdx     int
	Predicate *record.Record
}

// Transition records that a SchedClass, under a given predicate
// conjunction and restricted to a processor set, behaves as a different
// (inferred) SchedClass.
type Transition struct {
	ToClassIdx  int
	ProcIndices []int
	PredTerm    []PredCheck
}

// PredTransition is the variant-expansion engine's working unit: a
// predicate conjunction together with the per-operand write/read
// sequences chosen under it so far.
type PredTransition struct {
	PredTerm       []PredCheck
	WriteSequences [][]int
	ReadSequences  [][]int
	ProcIndices    []int
}

func clonePredTransition(t *PredTransition) *PredTransition {
	nt := &PredTransition{
		PredTerm:       append([]PredCheck(nil), t.PredTerm...),
		WriteSequences: make([][]int, len(t.WriteSequences)),
		ReadSequences:  make([][]int, len(t.ReadSequences)),
		ProcIndices:    append([]int(nil), t.ProcIndices...),
	}
	for i, s := range t.WriteSequences {
		nt.WriteSequences[i] = append([]int(nil), s...)
	}
	for i, s := range t.ReadSequences {
		nt.ReadSequences[i] = append([]int(nil), s...)
	}
	return nt
}
