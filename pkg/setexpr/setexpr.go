// Package setexpr expands set-expression DAGs -- (instrs ...) and
// (instregex ...) -- into concrete, ordered, deduplicated lists of
// instruction records. This is SetExpander, the third external
// collaborator spec.md names; ported from InstrsOp and InstRegexOp in
// CodeGenSchedule.cpp (lines 46-156).
package setexpr

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/minz/schedgen/pkg/record"
	"github.com/minz/schedgen/pkg/target"
)

// Error reports a malformed or unsatisfiable set expression, anchored at
// the offending record's location (spec.md §7's "Shape errors" /
// "Coverage errors").
type Error struct {
	Loc     record.Loc
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Loc, e.Message) }

// regexMetachars mirrors CodeGenSchedule.cpp's RegexMetachars constant:
// the set of characters that end a usable literal prefix.
const regexMetachars = "()^$|*+?.[]\\{}"

// SetExpander expands (instrs ...) / (instregex ...) DAGs against a
// target's instruction table.
type SetExpander struct {
	Target target.Target

	// sorted caches the target's non-generic instructions sorted by
	// name, computed once, mirroring the original's reliance on
	// getInstructionsByEnumValue() already being sorted past the
	// generic-opcode prefix.
	sorted []*record.Record
}

// New creates a SetExpander for the given target.
func New(t target.Target) *SetExpander {
	return &SetExpander{Target: t}
}

func (se *SetExpander) ensureSorted() {
	if se.sorted != nil {
		return
	}
	all := se.Target.InstructionsByEnumValue()
	n := se.Target.NumFixedInstructions()
	if n > len(all) {
		n = len(all)
	}
	rest := append([]*record.Record(nil), all[n:]...)
	sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	se.sorted = rest
}

func (se *SetExpander) generics() []*record.Record {
	all := se.Target.InstructionsByEnumValue()
	n := se.Target.NumFixedInstructions()
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// Expand evaluates a DAG record against its set-expression operator and
// returns the ordered, deduplicated list of instruction records it
// denotes. Unrecognized operators are a shape error.
func (se *SetExpander) Expand(dag *record.Dag, loc record.Loc) ([]*record.Record, error) {
	switch dag.Operator {
	case "instrs":
		return se.expandInstrs(dag, loc)
	case "instregex":
		return se.expandInstRegex(dag, loc)
	default:
		return nil, &Error{Loc: loc, Message: "unrecognized set operator: " + dag.Operator}
	}
}

// expandInstrs implements InstrsOp::apply: the union of the literal
// instruction references given as arguments.
func (se *SetExpander) expandInstrs(dag *record.Dag, loc record.Loc) ([]*record.Record, error) {
	var out []*record.Record
	seen := make(map[*record.Record]bool)
	for _, arg := range dag.Args {
		if arg.IsStr || arg.Rec == nil {
			return nil, &Error{Loc: loc, Message: "instrs requires instruction record arguments"}
		}
		if !seen[arg.Rec] {
			seen[arg.Rec] = true
			out = append(out, arg.Rec)
		}
	}
	return out, nil
}

// removeParens strips parenthesized text, mirroring
// InstRegexOp::removeParens (used only to scan for top-level | and ?).
func removeParens(s string) string {
	var b strings.Builder
	depth := 0
	for _, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 {
				b.WriteRune(c)
			}
		}
	}
	return b.String()
}

// expandInstRegex implements InstRegexOp::apply: per pattern, extract a
// literal prefix up to the first regex metacharacter (unless a top-level
// '|' or '?' forces the whole pattern to be treated as a regex), binary
// search the sorted target instruction table for the prefix range, and
// regex-match the remaining suffix against each candidate's tail. Generic
// opcodes are scanned linearly since they are not guaranteed sorted.
func (se *SetExpander) expandInstRegex(dag *record.Dag, loc record.Loc) ([]*record.Record, error) {
	se.ensureSorted()

	var out []*record.Record
	seen := make(map[*record.Record]bool)

	for _, arg := range dag.Args {
		if !arg.IsStr {
			return nil, &Error{Loc: loc, Message: "instregex requires pattern string arguments"}
		}
		original := arg.Str

		firstMeta := strings.IndexAny(original, regexMetachars)
		if firstMeta == -1 {
			firstMeta = len(original)
		}
		if strings.ContainsAny(removeParens(original), "|?") {
			firstMeta = 0
		}

		prefix := original[:firstMeta]
		patStr := original[firstMeta:]

		var re *regexp.Regexp
		if patStr != "" {
			pat := patStr
			if !strings.HasPrefix(pat, "^") {
				pat = "^(" + pat + ")"
			}
			compiled, err := regexp.Compile(pat)
			if err != nil {
				return nil, &Error{Loc: loc, Message: "invalid instregex pattern: " + err.Error()}
			}
			re = compiled
		}

		numMatches := 0

		for _, inst := range se.generics() {
			if strings.HasPrefix(inst.Name, prefix) {
				tail := inst.Name[len(prefix):]
				if re == nil || re.MatchString(tail) {
					if !seen[inst] {
						seen[inst] = true
						out = append(out, inst)
					}
					numMatches++
				}
			}
		}

		lo := sort.Search(len(se.sorted), func(i int) bool { return se.sorted[i].Name >= prefix })
		hi := lo
		for hi < len(se.sorted) && strings.HasPrefix(se.sorted[hi].Name, prefix) {
			hi++
		}
		for _, inst := range se.sorted[lo:hi] {
			tail := inst.Name[len(prefix):]
			if re == nil || re.MatchString(tail) {
				if !seen[inst] {
					seen[inst] = true
					out = append(out, inst)
				}
				numMatches++
			}
		}

		if numMatches == 0 {
			return nil, &Error{Loc: loc, Message: "instregex has no matches: " + original}
		}
	}
	return out, nil
}
