package sched

import (
	"testing"

	"github.com/minz/schedgen/pkg/record"
	"github.com/minz/schedgen/pkg/target"
)

func newFixtureDB() *record.MapDB { return record.NewMapDB() }

// TestEmptyTargetProducesOnlySentinels is spec.md §8 boundary scenario 1.
func TestEmptyTargetProducesOnlySentinels(t *testing.T) {
	db := newFixtureDB()
	tgt := &target.StaticTarget{}
	e := New(db, tgt)

	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(e.ProcModels) != 1 || e.ProcModels[0].Name != "NoSchedModel" {
		t.Fatalf("ProcModels = %v, want just [NoSchedModel]", e.ProcModels)
	}
	if len(e.Writes) != 1 || len(e.Reads) != 1 {
		t.Fatalf("expected only the invalid entry in each table, got writes=%d reads=%d", len(e.Writes), len(e.Reads))
	}
	if len(e.Classes) != 1 || e.Classes[0].Name != "NoInstrModel" {
		t.Fatalf("Classes = %v, want just [NoInstrModel]", e.Classes)
	}
}

// TestSingleInstructionTrivialWrite is spec.md §8 boundary scenario 2.
func TestSingleInstructionTrivialWrite(t *testing.T) {
	db := newFixtureDB()
	w1 := record.New("W1", record.Loc{}, "SchedWrite")
	db.Add(w1)
	db.Add(record.New("P1", record.Loc{}, "Processor"))

	add := record.New("ADD", record.Loc{}, "Instruction").Set("SchedRW", []*record.Record{w1})
	tgt := &target.StaticTarget{All: []*record.Record{add}}

	e := New(db, tgt)
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	w1Idx := e.writeIdx[w1]
	if w1Idx == 0 {
		t.Fatalf("W1 was never installed into the write table")
	}
	clsIdx, ok := e.InstrClass[add]
	if !ok {
		t.Fatalf("ADD has no class mapping")
	}
	cls := e.Classes[clsIdx]
	if len(cls.Writes) != 1 || cls.Writes[0] != w1Idx {
		t.Fatalf("class writes = %v, want [%d]", cls.Writes, w1Idx)
	}
	if len(cls.Reads) != 0 {
		t.Fatalf("class reads = %v, want none", cls.Reads)
	}
	if len(cls.ProcIndices) != 1 || cls.ProcIndices[0] != 0 {
		t.Fatalf("class procIndices = %v, want [0]", cls.ProcIndices)
	}
}

// TestHasReadOfWrite exercises the downstream read-side query a
// latency-estimation consumer would use to tell whether a write has an
// associated read-advance.
func TestHasReadOfWrite(t *testing.T) {
	db := newFixtureDB()
	w1 := record.New("W1", record.Loc{}, "SchedWrite")
	w2 := record.New("W2", record.Loc{}, "SchedWrite")
	db.Add(w1)
	db.Add(w2)

	readAdvance := record.New("ReadAdv", record.Loc{}, "SchedRead", "SchedReadAdvance").
		Set("ValidWrites", []*record.Record{w1})
	db.Add(readAdvance)

	add := record.New("ADD", record.Loc{}, "Instruction").
		Set("SchedRW", []*record.Record{w1, w2, readAdvance})
	tgt := &target.StaticTarget{All: []*record.Record{add}}

	e := New(db, tgt)
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	w1Idx, w2Idx := e.writeIdx[w1], e.writeIdx[w2]
	if !e.HasReadOfWrite(w1Idx) {
		t.Fatalf("expected W1 to have an associated read-advance")
	}
	if e.HasReadOfWrite(w2Idx) {
		t.Fatalf("expected W2 to have no associated read-advance")
	}
	if e.HasReadOfWrite(-1) || e.HasReadOfWrite(len(e.Writes)) {
		t.Fatalf("expected out-of-range indices to report false, not panic")
	}
}

// TestInstRWOverridePartialSubset is spec.md §8 boundary scenario 3.
func TestInstRWOverridePartialSubset(t *testing.T) {
	db := newFixtureDB()
	w1 := record.New("W1", record.Loc{}, "SchedWrite")
	w2 := record.New("W2", record.Loc{}, "SchedWrite")
	db.Add(w1)
	db.Add(w2)

	model := record.New("P1Model", record.Loc{}, "SchedMachineModel")
	db.Add(model)
	db.Add(record.New("P1", record.Loc{}, "Processor").Set("SchedModel", model))

	add := record.New("ADD", record.Loc{}, "Instruction").Set("SchedRW", []*record.Record{w1})
	tgt := &target.StaticTarget{All: []*record.Record{add}}

	instrsDag := &record.Dag{Operator: "instrs", Args: []record.DagArg{{Rec: add}}}
	instRW := record.New("InstRW_ADD", record.Loc{}, "InstRW").
		Set("SchedModel", model).
		Set("OperandReadWrites", []*record.Record{w2}).
		Set("Instrs", instrsDag)
	db.Add(instRW)

	e := New(db, tgt)
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	oldIdx := 1 // the single initial-pass class created for ADD
	newIdx, ok := e.InstrClass[add]
	if !ok {
		t.Fatalf("ADD has no class mapping")
	}
	if newIdx == oldIdx {
		t.Fatalf("expected ADD to be remapped to a new class, still at %d", oldIdx)
	}
	newCls := e.Classes[newIdx]
	if len(newCls.InstRWs) != 1 || newCls.InstRWs[0] != instRW {
		t.Fatalf("expected the new class's InstRWs to hold exactly the new InstRW, got %v", newCls.InstRWs)
	}
	oldCls := e.Classes[oldIdx]
	if len(newCls.Writes) != len(oldCls.Writes) || newCls.Writes[0] != oldCls.Writes[0] {
		t.Fatalf("expected the new class to inherit the old class's Writes, old=%v new=%v", oldCls.Writes, newCls.Writes)
	}
}

// TestSchedVariantFanOut is spec.md §8 boundary scenario 4.
func TestSchedVariantFanOut(t *testing.T) {
	db := newFixtureDB()
	pa := record.New("Pa", record.Loc{}, "SchedPredicate")
	pb := record.New("Pb", record.Loc{}, "SchedPredicate")
	wa := record.New("W_a", record.Loc{}, "SchedWrite")
	wb := record.New("W_b", record.Loc{}, "SchedWrite")
	varA := record.New("varA", record.Loc{}, "SchedVar").Set("Predicate", pa).Set("Selected", []*record.Record{wa})
	varB := record.New("varB", record.Loc{}, "SchedVar").Set("Predicate", pb).Set("Selected", []*record.Record{wb})
	wVar := record.New("W_var", record.Loc{}, "SchedVariant").Set("Variants", []*record.Record{varA, varB})
	for _, r := range []*record.Record{pa, pb, wa, wb, wVar} {
		db.Add(r)
	}

	br := record.New("BR", record.Loc{}, "Instruction").Set("SchedRW", []*record.Record{wVar})
	tgt := &target.StaticTarget{All: []*record.Record{br}}

	e := New(db, tgt)
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	clsIdx := e.InstrClass[br]
	cls := e.Classes[clsIdx]
	if len(cls.Transitions) != 2 {
		t.Fatalf("expected BR's class to carry 2 transitions, got %d", len(cls.Transitions))
	}

	waIdx, wbIdx := e.writeIdx[wa], e.writeIdx[wb]
	seenPreds := map[*record.Record]bool{}
	for _, tr := range cls.Transitions {
		if len(tr.PredTerm) != 1 {
			t.Fatalf("expected each transition to carry exactly one predicate, got %v", tr.PredTerm)
		}
		pred := tr.PredTerm[0].Predicate
		seenPreds[pred] = true

		toCls := e.Classes[tr.ToClassIdx]
		if len(toCls.Writes) != 1 {
			t.Fatalf("expected the inferred class to have exactly one write, got %v", toCls.Writes)
		}
		flat := e.expandRWSequence(toCls.Writes[0], false)
		switch pred {
		case pa:
			if len(flat) != 1 || flat[0] != waIdx {
				t.Fatalf("Pa transition should resolve to W_a, got %v", flat)
			}
		case pb:
			if len(flat) != 1 || flat[0] != wbIdx {
				t.Fatalf("Pb transition should resolve to W_b, got %v", flat)
			}
		default:
			t.Fatalf("unexpected predicate on transition: %v", pred)
		}
	}
	if !seenPreds[pa] || !seenPreds[pb] {
		t.Fatalf("expected transitions for both Pa and Pb, got %v", seenPreds)
	}
}

// TestSchedAliasIgnoredDuringVariantSubstitution guards against variant
// substitution redirecting a write-sequence expansion through its own
// SchedAlias: pushVariant's expansion of a chosen write sequence must stay
// alias-unaware, matching the original, so W_seq's own alias to W_other
// must not hijack the expansion away from its [W1, W2] children.
func TestSchedAliasIgnoredDuringVariantSubstitution(t *testing.T) {
	db := newFixtureDB()
	p1 := record.New("P1", record.Loc{}, "SchedPredicate")
	w1 := record.New("W1", record.Loc{}, "SchedWrite")
	w2 := record.New("W2", record.Loc{}, "SchedWrite")
	wOther := record.New("W_other", record.Loc{}, "SchedWrite")
	wSeq := record.New("W_seq", record.Loc{}, "WriteSequence").Set("Writes", []*record.Record{w1, w2})
	varA := record.New("varA", record.Loc{}, "SchedVar").Set("Predicate", p1).Set("Selected", []*record.Record{wSeq})
	wVar := record.New("W_var", record.Loc{}, "SchedVariant").Set("Variants", []*record.Record{varA})
	alias := record.New("AliasSeq", record.Loc{}, "SchedAlias").Set("MatchRW", wSeq).Set("AliasRW", wOther)

	for _, r := range []*record.Record{p1, w1, w2, wOther, wSeq, varA, wVar, alias} {
		db.Add(r)
	}

	ins := record.New("INS", record.Loc{}, "Instruction").Set("SchedRW", []*record.Record{wVar})
	tgt := &target.StaticTarget{All: []*record.Record{ins}}

	e := New(db, tgt)
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	clsIdx := e.InstrClass[ins]
	cls := e.Classes[clsIdx]
	if len(cls.Transitions) != 1 {
		t.Fatalf("expected exactly one transition, got %d", len(cls.Transitions))
	}
	toCls := e.Classes[cls.Transitions[0].ToClassIdx]
	flat := e.expandRWSequence(toCls.Writes[0], false)

	w1Idx, w2Idx := e.writeIdx[w1], e.writeIdx[w2]
	if len(flat) != 2 || flat[0] != w1Idx || flat[1] != w2Idx {
		t.Fatalf("expected the sequence to expand to [W1, W2] ignoring its own alias, got %v", flat)
	}
}

// TestMutualExclusionAcrossNestedVariants is spec.md §8 boundary scenario 5.
func TestMutualExclusionAcrossNestedVariants(t *testing.T) {
	db := newFixtureDB()
	p1 := record.New("P1", record.Loc{}, "SchedPredicate")
	p2 := record.New("P2", record.Loc{}, "SchedPredicate")
	p3 := record.New("P3", record.Loc{}, "SchedPredicate")

	wInnerLeaf2 := record.New("W_inner_leaf2", record.Loc{}, "SchedWrite")
	wInnerLeaf3 := record.New("W_inner_leaf3", record.Loc{}, "SchedWrite")
	wB := record.New("W_b", record.Loc{}, "SchedWrite")

	innerVar2 := record.New("innerVar2", record.Loc{}, "SchedVar").Set("Predicate", p2).Set("Selected", []*record.Record{wInnerLeaf2})
	innerVar3 := record.New("innerVar3", record.Loc{}, "SchedVar").Set("Predicate", p3).Set("Selected", []*record.Record{wInnerLeaf3})
	wInner1 := record.New("W_inner1", record.Loc{}, "SchedVariant").Set("Variants", []*record.Record{innerVar2, innerVar3})

	outerVar1 := record.New("outerVar1", record.Loc{}, "SchedVar").Set("Predicate", p1).Set("Selected", []*record.Record{wInner1})
	outerVar2 := record.New("outerVar2", record.Loc{}, "SchedVar").Set("Predicate", p2).Set("Selected", []*record.Record{wB})
	wOuter := record.New("W_outer", record.Loc{}, "SchedVariant").Set("Variants", []*record.Record{outerVar1, outerVar2})

	for _, r := range []*record.Record{p1, p2, p3, wInnerLeaf2, wInnerLeaf3, wB, innerVar2, innerVar3, wInner1, outerVar1, outerVar2, wOuter} {
		db.Add(r)
	}

	ins := record.New("INS", record.Loc{}, "Instruction").Set("SchedRW", []*record.Record{wOuter})
	tgt := &target.StaticTarget{All: []*record.Record{ins}}

	e := New(db, tgt)
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	clsIdx := e.InstrClass[ins]
	cls := e.Classes[clsIdx]
	if len(cls.Transitions) != 2 {
		t.Fatalf("expected 2 surviving transitions, got %d: %+v", len(cls.Transitions), cls.Transitions)
	}

	wInnerLeaf3Idx := e.writeIdx[wInnerLeaf3]
	wBIdx := e.writeIdx[wB]

	var sawP1Path, sawP2Path bool
	for _, tr := range cls.Transitions {
		toCls := e.Classes[tr.ToClassIdx]
		flat := e.expandRWSequence(toCls.Writes[0], false)
		switch len(tr.PredTerm) {
		case 2:
			sawP1Path = true
			if tr.PredTerm[0].Predicate != p1 || tr.PredTerm[1].Predicate != p3 {
				t.Fatalf("expected the P1 path to settle on P3 (P2's branch pruned), got %+v", tr.PredTerm)
			}
			if len(flat) != 1 || flat[0] != wInnerLeaf3Idx {
				t.Fatalf("expected the P1/P3 path to resolve to W_inner_leaf3, got %v", flat)
			}
		case 1:
			sawP2Path = true
			if tr.PredTerm[0].Predicate != p2 {
				t.Fatalf("expected the other top-level path to be guarded by P2, got %+v", tr.PredTerm)
			}
			if len(flat) != 1 || flat[0] != wBIdx {
				t.Fatalf("expected the P2 path to resolve to W_b, got %v", flat)
			}
		default:
			t.Fatalf("unexpected PredTerm length %d", len(tr.PredTerm))
		}
	}
	if !sawP1Path || !sawP2Path {
		t.Fatalf("expected both the P1/P3 path and the P2 path to survive")
	}
}
