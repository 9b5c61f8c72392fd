package sched

import (
	"fmt"
	"strings"
)

// String renders a ProcModel for sched-repl's `proc` command and CLI
// dumps -- the Go idiom standing in for the source's debug dump() methods
// (SPEC_FULL.md §5's "String() over dump()").
func (pm *ProcModel) String() string {
	return fmt.Sprintf("ProcModel#%d %s (itineraries=%v, resources=%d)",
		pm.Index, pm.Name, pm.HasItineraries, len(pm.ProcResourceDefs))
}

func (rw *SchedRW) String() string {
	kind := rw.Kind.String()
	if rw.IsAlias {
		kind += ",alias"
	}
	dir := "W"
	if rw.IsRead {
		dir = "R"
	}
	return fmt.Sprintf("%s%d:%s[%s]", dir, rw.Index, rw.Name, kind)
}

func (cls *SchedClass) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SchedClass#%d %s writes=%v reads=%v procs=%v",
		cls.Index, cls.Name, cls.Writes, cls.Reads, cls.ProcIndices)
	if len(cls.Transitions) > 0 {
		fmt.Fprintf(&b, " transitions=%d", len(cls.Transitions))
	}
	return b.String()
}

// DumpClasses renders every SchedClass, one per line, in index order.
func (e *Elaborator) DumpClasses() string {
	var b strings.Builder
	for _, cls := range e.Classes {
		b.WriteString(cls.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// DumpProcModels renders every ProcModel, one per line, in index order.
func (e *Elaborator) DumpProcModels() string {
	var b strings.Builder
	for _, pm := range e.ProcModels {
		b.WriteString(pm.String())
		b.WriteByte('\n')
	}
	return b.String()
}
