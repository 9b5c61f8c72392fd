// Package setdag parses the textual rendering of set-expression DAGs --
// `(instrs A, B)`, `(instregex "P.*", "Q.*")` -- into record.Dag values.
// This is surface syntax with no counterpart in the teacher repo; the
// grammar is adopted from kanso-lang-kanso's use of participle/v2 for a
// small struct-tag grammar (grammar/lexer.go, internal/parser/parser.go).
package setdag

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/minz/schedgen/pkg/record"
)

var dagLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Punct", Pattern: `[(),]`},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	},
})

// argAST is one argument of a dagAST: either a quoted string (an
// instregex pattern) or a bare identifier (an instruction record name).
type argAST struct {
	Str  *string `parser:"  @String"`
	Name *string `parser:"| @Ident"`
}

// dagAST is the grammar for a whole set-expression: an operator name
// followed by a parenthesized, comma-separated argument list.
type dagAST struct {
	Operator string   `parser:"\"(\" @Ident"`
	Args     []argAST `parser:"(@@ (\",\" @@)*)? \")\""`
}

var dagParser = participle.MustBuild[dagAST](
	participle.Lexer(dagLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// Resolver looks an instruction record up by name, for use by Parse when
// resolving `instrs` arguments. It returns nil for an unknown name.
type Resolver func(name string) *record.Record

// Parse parses the textual rendering of a set-expression DAG. Bare
// identifier arguments are resolved to record.Record values via resolve;
// an unresolved identifier is an error.
func Parse(input string, resolve Resolver) (*record.Dag, error) {
	ast, err := dagParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("setdag: %w", err)
	}
	dag := &record.Dag{Operator: ast.Operator}
	for _, a := range ast.Args {
		switch {
		case a.Str != nil:
			dag.Args = append(dag.Args, record.DagArg{Str: *a.Str, IsStr: true})
		case a.Name != nil:
			rec := resolve(*a.Name)
			if rec == nil {
				return nil, fmt.Errorf("setdag: unknown record %q", *a.Name)
			}
			dag.Args = append(dag.Args, record.DagArg{Rec: rec})
		default:
			return nil, fmt.Errorf("setdag: empty argument")
		}
	}
	return dag, nil
}

// Render renders a record.Dag back to its textual form, the inverse of
// Parse (exercised by the round-trip test).
func Render(dag *record.Dag) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(dag.Operator)
	for i, a := range dag.Args {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		if a.IsStr {
			fmt.Fprintf(&b, "%q", a.Str)
		} else if a.Rec != nil {
			b.WriteString(a.Rec.Name)
		}
	}
	b.WriteByte(')')
	return b.String()
}
