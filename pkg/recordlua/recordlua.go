// Package recordlua loads a record.DB from an embedded Lua script: target
// descriptions are expressed as calls to a handful of builder functions
// (def, dag, instr, genericInstr) rather than as a TableGen .td file.
// Grounded on pkg/meta/lua_evaluator.go's LuaEvaluator -- the same
// *lua.LState-wrapping, setupXAPI-registers-globals shape, repurposed
// from compile-time macro evaluation to declarative data loading.
package recordlua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/minz/schedgen/pkg/record"
	"github.com/minz/schedgen/pkg/target"
)

// Loader wraps a Lua state configured with the record-database builder
// API and accumulates the records and instruction order it produces.
type Loader struct {
	L *lua.LState

	source     string
	db         *record.MapDB
	instrOrder []*record.Record
	numGeneric int
}

// NewLoader creates a loader; source names the script for diagnostics.
func NewLoader(source string) *Loader {
	ld := &Loader{
		L:      lua.NewState(),
		source: source,
		db:     record.NewMapDB(),
	}
	ld.setupAPI()
	return ld
}

// Close releases the underlying Lua state.
func (ld *Loader) Close() { ld.L.Close() }

// LoadFile executes a Lua script file, populating the loader's database.
func (ld *Loader) LoadFile(path string) error {
	ld.source = path
	return ld.L.DoFile(path)
}

// LoadString executes a Lua script given as a string.
func (ld *Loader) LoadString(script string) error {
	return ld.L.DoString(script)
}

// DB returns the accumulated record database.
func (ld *Loader) DB() *record.MapDB { return ld.db }

// Target returns the ordered instruction list and generic-opcode count
// accumulated by instr()/genericInstr() calls.
func (ld *Loader) Target() *target.StaticTarget {
	return &target.StaticTarget{All: ld.instrOrder, NumGeneric: ld.numGeneric}
}

// Load is the one-shot convenience entry point cmd/schedgen uses.
func Load(path string) (*record.MapDB, *target.StaticTarget, error) {
	ld := NewLoader(path)
	defer ld.Close()
	if err := ld.LoadFile(path); err != nil {
		return nil, nil, fmt.Errorf("recordlua: %w", err)
	}
	return ld.DB(), ld.Target(), nil
}

func (ld *Loader) loc() record.Loc {
	return record.Loc{File: ld.source}
}

func (ld *Loader) setupAPI() {
	ld.L.SetGlobal("def", ld.L.NewFunction(ld.luaDef))
	ld.L.SetGlobal("dag", ld.L.NewFunction(ld.luaDag))
	ld.L.SetGlobal("instr", ld.L.NewFunction(ld.luaInstr))
	ld.L.SetGlobal("genericInstr", ld.L.NewFunction(ld.luaGenericInstr))
}

func wrapRecord(L *lua.LState, r *record.Record) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = r
	return ud
}

// luaDef implements def(name, {classes...}, {field=value, ...}).
func (ld *Loader) luaDef(L *lua.LState) int {
	name := L.CheckString(1)
	classesTbl := L.OptTable(2, L.NewTable())
	fieldsTbl := L.OptTable(3, L.NewTable())

	var classes []string
	classesTbl.ForEach(func(_, v lua.LValue) {
		classes = append(classes, v.String())
	})

	rec := record.New(name, ld.loc(), classes...)
	var convErr error
	fieldsTbl.ForEach(func(k, v lua.LValue) {
		if convErr != nil {
			return
		}
		val, err := ld.luaToGo(v)
		if err != nil {
			convErr = err
			return
		}
		rec.Set(k.String(), val)
	})
	if convErr != nil {
		L.RaiseError("def(%s): %s", name, convErr)
		return 0
	}
	ld.db.Add(rec)
	L.Push(wrapRecord(L, rec))
	return 1
}

// luaToGo converts a Lua value into the Go representation a
// record.Record field holds: int, bool, string, *record.Record,
// []*record.Record, or *record.Dag.
func (ld *Loader) luaToGo(v lua.LValue) (any, error) {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val), nil
	case lua.LNumber:
		return int(val), nil
	case lua.LString:
		return string(val), nil
	case *lua.LUserData:
		switch x := val.Value.(type) {
		case *record.Record:
			return x, nil
		case *record.Dag:
			return x, nil
		}
		return nil, fmt.Errorf("unsupported userdata field value")
	case *lua.LTable:
		var recs []*record.Record
		var err error
		val.ForEach(func(_, elem lua.LValue) {
			if err != nil {
				return
			}
			ud, ok := elem.(*lua.LUserData)
			if !ok {
				err = fmt.Errorf("list field elements must be def() handles")
				return
			}
			r, ok := ud.Value.(*record.Record)
			if !ok {
				err = fmt.Errorf("list field elements must be def() handles")
				return
			}
			recs = append(recs, r)
		})
		if err != nil {
			return nil, err
		}
		return recs, nil
	case *lua.LNilType:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported field value type %T", v)
	}
}

// luaDag implements dag(operator, arg, arg, ...): a constructor for the
// set-expression DAG value assigned to fields like Instrs.
func (ld *Loader) luaDag(L *lua.LState) int {
	op := L.CheckString(1)
	d := &record.Dag{Operator: op}
	for i, top := 2, L.GetTop(); i <= top; i++ {
		switch v := L.Get(i).(type) {
		case lua.LString:
			d.Args = append(d.Args, record.DagArg{Str: string(v), IsStr: true})
		case *lua.LUserData:
			if r, ok := v.Value.(*record.Record); ok {
				d.Args = append(d.Args, record.DagArg{Rec: r})
				continue
			}
			L.RaiseError("dag(%s): argument %d is not a record handle", op, i-1)
			return 0
		default:
			L.RaiseError("dag(%s): argument %d has unsupported type", op, i-1)
			return 0
		}
	}
	ud := L.NewUserData()
	ud.Value = d
	L.Push(ud)
	return 1
}

// luaInstr implements instr(name): declares a target instruction record
// and appends it to the instruction order SetExpander's binary search
// relies on.
func (ld *Loader) luaInstr(L *lua.LState) int {
	name := L.CheckString(1)
	rec := record.New(name, ld.loc(), "Instruction")
	ld.db.Add(rec)
	ld.instrOrder = append(ld.instrOrder, rec)
	L.Push(wrapRecord(L, rec))
	return 1
}

// luaGenericInstr implements genericInstr(name): like instr, but counted
// among the target's leading generic (target-independent) opcodes.
// Every genericInstr call must precede all instr calls.
func (ld *Loader) luaGenericInstr(L *lua.LState) int {
	if len(ld.instrOrder) != ld.numGeneric {
		L.RaiseError("genericInstr(%s) must be declared before any instr()", L.CheckString(1))
		return 0
	}
	name := L.CheckString(1)
	rec := record.New(name, ld.loc(), "Instruction")
	ld.db.Add(rec)
	ld.instrOrder = append(ld.instrOrder, rec)
	ld.numGeneric++
	L.Push(wrapRecord(L, rec))
	return 1
}
