package setdag

import (
	"testing"

	"github.com/minz/schedgen/pkg/record"
)

func TestParseInstrs(t *testing.T) {
	add := record.New("ADD", record.Loc{}, "Instruction")
	sub := record.New("SUB", record.Loc{}, "Instruction")
	resolve := func(name string) *record.Record {
		switch name {
		case "ADD":
			return add
		case "SUB":
			return sub
		default:
			return nil
		}
	}

	dag, err := Parse(`(instrs ADD, SUB)`, resolve)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if dag.Operator != "instrs" || len(dag.Args) != 2 {
		t.Fatalf("unexpected dag: %+v", dag)
	}
	if dag.Args[0].Rec != add || dag.Args[1].Rec != sub {
		t.Fatalf("arguments not resolved to the expected records: %+v", dag.Args)
	}
}

func TestParseInstRegex(t *testing.T) {
	dag, err := Parse(`(instregex "ADD.*", "SUB.*")`, func(string) *record.Record { return nil })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if dag.Operator != "instregex" || len(dag.Args) != 2 {
		t.Fatalf("unexpected dag: %+v", dag)
	}
	if !dag.Args[0].IsStr || dag.Args[0].Str != "ADD.*" {
		t.Fatalf("expected first argument to be the string ADD.*, got %+v", dag.Args[0])
	}
}

func TestParseUnknownIdentifierIsError(t *testing.T) {
	_, err := Parse(`(instrs MISSING)`, func(string) *record.Record { return nil })
	if err == nil {
		t.Fatalf("expected an error for an unresolvable identifier")
	}
}

func TestRenderRoundTrip(t *testing.T) {
	add := record.New("ADD", record.Loc{}, "Instruction")
	dag := &record.Dag{Operator: "instrs", Args: []record.DagArg{{Rec: add}}}
	rendered := Render(dag)

	reparsed, err := Parse(rendered, func(name string) *record.Record {
		if name == "ADD" {
			return add
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Parse(Render(dag)): %v", err)
	}
	if reparsed.Operator != dag.Operator || len(reparsed.Args) != 1 || reparsed.Args[0].Rec != add {
		t.Fatalf("round trip mismatch: rendered=%q reparsed=%+v", rendered, reparsed)
	}
}
