// Package replutil implements the command-dispatch loop sched-repl runs
// over an already-elaborated model. It is the prefix-switch
// handleCommand shape of pkg/debugger, redirected from inspecting a
// running Z80 to inspecting SchedClass/ProcModel/SchedRW tables.
package replutil

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/minz/schedgen/pkg/record"
	"github.com/minz/schedgen/pkg/sched"
	"github.com/minz/schedgen/pkg/setdag"
)

// LineReader is the narrow surface replutil needs from pkg/readline.Reader.
type LineReader interface {
	ReadLine() (string, error)
}

// Session owns one elaborated model and its output stream.
type Session struct {
	E      *sched.Elaborator
	Output io.Writer
}

// New creates a Session over an already-run Elaborator.
func New(e *sched.Elaborator, output io.Writer) *Session {
	return &Session{E: e, Output: output}
}

// Run drives the read-eval-print loop until the input is exhausted or the
// user issues "quit"/"exit".
func (s *Session) Run(in LineReader) error {
	fmt.Fprintln(s.Output, "schedgen interactive table inspector. Type 'help' for commands.")
	for {
		line, err := in.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if quit, err := s.handleCommand(line); quit {
			return nil
		} else if err != nil {
			fmt.Fprintf(s.Output, "error: %v\n", err)
		}
	}
}

// handleCommand dispatches one command line, reporting whether the
// session should terminate.
func (s *Session) handleCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "h", "help", "?":
		s.printHelp()

	case "class":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: class <idx>")
		}
		return false, s.cmdClass(parts[1])

	case "proc":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: proc <name>")
		}
		return false, s.cmdProc(parts[1])

	case "instr":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: instr <name>")
		}
		return false, s.cmdInstr(parts[1])

	case "write":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: write <idx>")
		}
		return false, s.cmdWrite(parts[1])

	case "find":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: find <set-expression>")
		}
		return false, s.cmdFind(strings.Join(parts[1:], " "))

	case "q", "quit", "exit":
		fmt.Fprintln(s.Output, "goodbye")
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q (try 'help')", parts[0])
	}
	return false, nil
}

func (s *Session) printHelp() {
	fmt.Fprint(s.Output, `commands:
  class <idx>    print one SchedClass's writes/reads/transitions
  proc <name>    print one ProcModel's resource lists
  instr <name>   print the SchedClass an instruction resolves to
  write <idx>    print a SchedWrite entry and whether it has a read-advance
  find <expr>    evaluate a (instrs ...)/(instregex ...) set expression
  help           show this text
  quit           leave the inspector
`)
}

func (s *Session) cmdClass(arg string) error {
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(s.E.Classes) {
		return fmt.Errorf("no such class %q", arg)
	}
	fmt.Fprintln(s.Output, s.E.Classes[idx].String())
	return nil
}

func (s *Session) cmdProc(name string) error {
	for _, pm := range s.E.ProcModels {
		if pm.Name == name {
			fmt.Fprintln(s.Output, pm.String())
			return nil
		}
	}
	return fmt.Errorf("no such processor model %q", name)
}

func (s *Session) cmdInstr(name string) error {
	rec := s.E.DB.GetDef(name)
	if rec == nil {
		return fmt.Errorf("no such instruction %q", name)
	}
	idx, ok := s.E.InstrClass[rec]
	if !ok {
		return fmt.Errorf("%q has no assigned SchedClass", name)
	}
	fmt.Fprintln(s.Output, s.E.Classes[idx].String())
	return nil
}

func (s *Session) cmdWrite(arg string) error {
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(s.E.Writes) {
		return fmt.Errorf("no such write %q", arg)
	}
	fmt.Fprintf(s.Output, "%s (has read-advance: %v)\n", s.E.Writes[idx].String(), s.E.HasReadOfWrite(idx))
	return nil
}

func (s *Session) cmdFind(expr string) error {
	resolve := func(name string) *record.Record { return s.E.DB.GetDef(name) }
	dag, err := setdag.Parse(expr, resolve)
	if err != nil {
		return err
	}
	matches, err := s.E.Expander.Expand(dag, record.Loc{})
	if err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Fprintln(s.Output, m.Name)
	}
	return nil
}
