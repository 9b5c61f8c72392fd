package replutil

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/minz/schedgen/pkg/record"
	"github.com/minz/schedgen/pkg/sched"
	"github.com/minz/schedgen/pkg/target"
)

// fakeReader replays a fixed script of lines, like a scripted terminal.
type fakeReader struct {
	lines []string
	pos   int
}

func (f *fakeReader) ReadLine() (string, error) {
	if f.pos >= len(f.lines) {
		return "", io.EOF
	}
	line := f.lines[f.pos]
	f.pos++
	return line, nil
}

func buildFixture() *sched.Elaborator {
	db := record.NewMapDB()
	w1 := record.New("W1", record.Loc{}, "SchedWrite")
	db.Add(w1)
	add := record.New("ADD", record.Loc{}, "Instruction").Set("SchedRW", []*record.Record{w1})
	db.Add(add)
	tgt := &target.StaticTarget{All: []*record.Record{add}}

	e := sched.New(db, tgt)
	if err := e.Run(); err != nil {
		panic(err)
	}
	return e
}

func TestSessionInstrAndClassCommands(t *testing.T) {
	e := buildFixture()
	var out bytes.Buffer
	s := New(e, &out)

	if err := s.Run(&fakeReader{lines: []string{"instr ADD", "class 1", "quit"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "SchedClass#1") {
		t.Fatalf("expected output to mention SchedClass#1, got %q", output)
	}
	if !strings.Contains(output, "goodbye") {
		t.Fatalf("expected quit to print a goodbye, got %q", output)
	}
}

func TestSessionUnknownInstrReportsError(t *testing.T) {
	e := buildFixture()
	var out bytes.Buffer
	s := New(e, &out)

	quit, err := s.handleCommand("instr MISSING")
	if quit {
		t.Fatalf("unknown instruction should not terminate the session")
	}
	if err == nil {
		t.Fatalf("expected an error for an unregistered instruction")
	}
}

func TestSessionWriteCommandReportsReadAdvance(t *testing.T) {
	db := record.NewMapDB()
	w1 := record.New("W1", record.Loc{}, "SchedWrite")
	db.Add(w1)
	readAdvance := record.New("ReadAdv", record.Loc{}, "SchedRead", "SchedReadAdvance").
		Set("ValidWrites", []*record.Record{w1})
	add := record.New("ADD", record.Loc{}, "Instruction").Set("SchedRW", []*record.Record{w1, readAdvance})
	tgt := &target.StaticTarget{All: []*record.Record{add}}

	e := sched.New(db, tgt)
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var out bytes.Buffer
	s := New(e, &out)
	if err := s.Run(&fakeReader{lines: []string{"write 1", "quit"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "has read-advance: true") {
		t.Fatalf("expected write command to report a read-advance, got %q", out.String())
	}
}

func TestSessionFindUsesSetExpander(t *testing.T) {
	e := buildFixture()
	var out bytes.Buffer
	s := New(e, &out)

	if err := s.Run(&fakeReader{lines: []string{`find (instrs ADD)`, "quit"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "ADD") {
		t.Fatalf("expected find to print ADD, got %q", out.String())
	}
}
