package sched

import (
	"fmt"

	"github.com/minz/schedgen/pkg/record"
)

// ErrorKind classifies an elaboration failure per spec's §7 error taxonomy.
type ErrorKind int

const (
	ShapeError ErrorKind = iota
	ReferenceError
	AmbiguityError
	CoverageError
	CollisionError
)

func (k ErrorKind) String() string {
	switch k {
	case ShapeError:
		return "shape error"
	case ReferenceError:
		return "reference error"
	case AmbiguityError:
		return "ambiguity error"
	case CoverageError:
		return "coverage error"
	case CollisionError:
		return "collision error"
	default:
		return "error"
	}
}

// ElaborationError is the error type the engine's own phases produce --
// every such failure is a typed, positioned diagnostic, replacing the
// source's unwinding PrintFatalError with an explicit propagated result.
// Failures from expanding an InstRW's set expression are passed through
// unchanged as *setexpr.Error.
type ElaborationError struct {
	Kind    ErrorKind
	Loc     record.Loc
	Message string
}

func (e *ElaborationError) Error() string {
	return e.Kind.String() + " at " + e.Loc.String() + ": " + e.Message
}

func errAt(kind ErrorKind, loc record.Loc, format string, args ...any) error {
	return &ElaborationError{Kind: kind, Loc: loc, Message: fmt.Sprintf(format, args...)}
}
