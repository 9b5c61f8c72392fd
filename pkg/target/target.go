// Package target supplies the ordered instruction list and generic-opcode
// count that SetExpander's instregex operator needs -- the second external
// collaborator spec.md names and scopes out of the elaboration engine
// itself (CodeGenTarget in the original).
package target

import "github.com/minz/schedgen/pkg/record"

// Target is the narrow surface SetExpander needs: the full instruction
// list in declaration order, and how many of its leading entries are
// generic (target-independent) opcodes rather than real target
// instructions.
type Target interface {
	InstructionsByEnumValue() []*record.Record
	NumFixedInstructions() int
}

// StaticTarget is a slice-backed Target: the generic opcodes are the first
// NumGeneric entries of All, target instructions make up the remainder.
// The remainder need not be sorted: SetExpander sorts its own copy by
// name before its prefix binary search.
type StaticTarget struct {
	All        []*record.Record
	NumGeneric int
}

func (t *StaticTarget) InstructionsByEnumValue() []*record.Record { return t.All }
func (t *StaticTarget) NumFixedInstructions() int                 { return t.NumGeneric }
