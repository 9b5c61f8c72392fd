package setexpr

import (
	"testing"

	"github.com/minz/schedgen/pkg/record"
	"github.com/minz/schedgen/pkg/target"
)

func namedInstrs(names ...string) []*record.Record {
	out := make([]*record.Record, len(names))
	for i, n := range names {
		out[i] = record.New(n, record.Loc{}, "Instruction")
	}
	return out
}

func TestExpandInstrsUnion(t *testing.T) {
	a := record.New("ADD", record.Loc{}, "Instruction")
	b := record.New("SUB", record.Loc{}, "Instruction")
	tgt := &target.StaticTarget{All: []*record.Record{a, b}, NumGeneric: 0}
	se := New(tgt)

	dag := &record.Dag{Operator: "instrs", Args: []record.DagArg{{Rec: a}, {Rec: b}, {Rec: a}}}
	got, err := se.Expand(dag, record.Loc{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("expected deduplicated [ADD, SUB], got %v", got)
	}
}

// TestExpandInstRegexPrefixSearch is spec.md §8 boundary scenario 6: sorted
// target instructions ADDi, ADDr, SUB; (instregex "ADD.*") should return
// both ADD instructions via prefix binary search plus regex tail match,
// and a pattern with no matches must be fatal.
func TestExpandInstRegexPrefixSearch(t *testing.T) {
	instrs := namedInstrs("ADDi", "ADDr", "SUB")
	tgt := &target.StaticTarget{All: instrs, NumGeneric: 0}
	se := New(tgt)

	dag := &record.Dag{Operator: "instregex", Args: []record.DagArg{{Str: "ADD.*", IsStr: true}}}
	got, err := se.Expand(dag, record.Loc{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	names := map[string]bool{}
	for _, r := range got {
		names[r.Name] = true
	}
	if len(got) != 2 || !names["ADDi"] || !names["ADDr"] {
		t.Fatalf("expected {ADDi, ADDr}, got %v", got)
	}
}

func TestExpandInstRegexNoMatchIsFatal(t *testing.T) {
	instrs := namedInstrs("ADDi", "ADDr", "SUB")
	tgt := &target.StaticTarget{All: instrs, NumGeneric: 0}
	se := New(tgt)

	dag := &record.Dag{Operator: "instregex", Args: []record.DagArg{{Str: "XY", IsStr: true}}}
	if _, err := se.Expand(dag, record.Loc{}); err == nil {
		t.Fatalf("expected a fatal error for a pattern with no matches")
	}
}

func TestExpandInstRegexGenericOpcodesScannedLinearly(t *testing.T) {
	generic := record.New("G_ADD", record.Loc{}, "Instruction")
	real := namedInstrs("ADDi", "SUB")
	all := append([]*record.Record{generic}, real...)
	tgt := &target.StaticTarget{All: all, NumGeneric: 1}
	se := New(tgt)

	dag := &record.Dag{Operator: "instregex", Args: []record.DagArg{{Str: "G_.*", IsStr: true}}}
	got, err := se.Expand(dag, record.Loc{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 1 || got[0].Name != "G_ADD" {
		t.Fatalf("expected [G_ADD], got %v", got)
	}
}

func TestExpandUnknownOperatorIsShapeError(t *testing.T) {
	tgt := &target.StaticTarget{}
	se := New(tgt)
	dag := &record.Dag{Operator: "bogus"}
	if _, err := se.Expand(dag, record.Loc{}); err == nil {
		t.Fatalf("expected an error for an unrecognized set operator")
	}
}
