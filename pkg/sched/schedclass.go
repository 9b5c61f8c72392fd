package sched

import "github.com/minz/schedgen/pkg/record"

// collectSchedClasses runs the initial per-instruction pass followed by
// the InstRW override pass (§4.2).
func (e *Elaborator) collectSchedClasses() error {
	for _, inst := range e.Target.InstructionsByEnumValue() {
		itin := inst.Def("Itinerary")
		writes, reads, err := e.resolveRWList(inst.DefList("SchedRW"))
		if err != nil {
			return err
		}
		idx, err := e.addSchedClass(itin, writes, reads, []int{0})
		if err != nil {
			return err
		}
		e.InstrClass[inst] = idx
	}
	return e.applyInstRWOverrides()
}

// addSchedClass implements the contract of §4.2: look up an existing
// class with an identical (itin, writes, reads) key; if found, merge the
// given processor set into it and return its index, otherwise append a
// new class.
func (e *Elaborator) addSchedClass(itin *record.Record, writes, reads []int, procIndices []int) (int, error) {
	key := classKeyOf(itin, writes, reads)
	if idx, ok := e.classKey[key]; ok {
		cls := e.Classes[idx]
		cls.ProcIndices = unionSorted(cls.ProcIndices, procIndices)
		return idx, nil
	}
	idx := len(e.Classes)
	cls := &SchedClass{
		Index:        idx,
		Name:         e.createSchedClassName(itin, writes, reads),
		ItinClassDef: itin,
		Writes:       append([]int(nil), writes...),
		Reads:        append([]int(nil), reads...),
		ProcIndices:  append([]int(nil), procIndices...),
	}
	e.Classes = append(e.Classes, cls)
	e.classKey[key] = idx
	return idx, nil
}

// classInstrCount counts how many instructions currently map to a class.
// Small target sizes make the linear rescan acceptable; it only runs
// during the InstRW pass, once per InstRW-affected class.
func (e *Elaborator) classInstrCount(idx int) int {
	n := 0
	for _, c := range e.InstrClass {
		if c == idx {
			n++
		}
	}
	return n
}

// applyInstRWOverrides implements the InstRW pass of §4.2: each InstRW's
// instruction set is grouped by current class, and each subset either
// reuses its old class (appending this InstRW to its list) or is promoted
// to a fresh class that inherits the old class's itinerary/writes/reads.
func (e *Elaborator) applyInstRWOverrides() error {
	instRWs := sortRecordsByName(e.DB.AllDerivedDefinitions("InstRW"))
	for _, ir := range instRWs {
		dag := ir.DagField("Instrs")
		if dag == nil {
			return errAt(ShapeError, ir.Loc, "InstRW requires an Instrs DAG")
		}
		instrs, err := e.Expander.Expand(dag, ir.Loc)
		if err != nil {
			return err
		}
		modelDef := ir.Def("SchedModel")
		if _, err := e.modelIndex(modelDef); err != nil {
			return err
		}

		byClass := make(map[int][]*record.Record)
		var order []int
		for _, inst := range instrs {
			oldIdx, ok := e.InstrClass[inst]
			if !ok {
				oldIdx = 0
			}
			if _, seen := byClass[oldIdx]; !seen {
				order = append(order, oldIdx)
			}
			byClass[oldIdx] = append(byClass[oldIdx], inst)
		}

		for _, oldIdx := range order {
			subset := byClass[oldIdx]
			oldCls := e.Classes[oldIdx]
			full := len(subset) == e.classInstrCount(oldIdx)

			if full && len(oldCls.InstRWs) > 0 {
				if err := e.checkInstRWCollision(oldCls, modelDef); err != nil {
					return err
				}
				oldCls.InstRWs = append(oldCls.InstRWs, ir)
				continue
			}

			newCls := &SchedClass{
				Index:        len(e.Classes),
				ItinClassDef: oldCls.ItinClassDef,
				Writes:       append([]int(nil), oldCls.Writes...),
				Reads:        append([]int(nil), oldCls.Reads...),
				ProcIndices:  []int{0},
			}
			newCls.Name = e.createSchedClassName(newCls.ItinClassDef, newCls.Writes, newCls.Reads) + "_" + ir.Name

			for _, existing := range oldCls.InstRWs {
				if existing.Def("SchedModel") == modelDef && e.fullOverlapCheck(modelDef) {
					return errAt(CollisionError, ir.Loc, "InstRW for %q collides with an existing InstRW on the same SchedModel", ir.Name)
				}
				newCls.InstRWs = append(newCls.InstRWs, existing)
			}
			newCls.InstRWs = append(newCls.InstRWs, ir)
			e.Classes = append(e.Classes, newCls)

			for _, inst := range subset {
				e.InstrClass[inst] = newCls.Index
			}
		}
	}
	return nil
}

func (e *Elaborator) checkInstRWCollision(cls *SchedClass, modelDef *record.Record) error {
	if !e.fullOverlapCheck(modelDef) {
		return nil
	}
	for _, existing := range cls.InstRWs {
		if existing.Def("SchedModel") == modelDef {
			return errAt(CollisionError, existing.Loc, "multiple InstRW entries target the same SchedModel on class %q", cls.Name)
		}
	}
	return nil
}

func (e *Elaborator) fullOverlapCheck(modelDef *record.Record) bool {
	return modelDef != nil && modelDef.Bit("FullInstRWOverlapCheck")
}

// instRWWrites re-resolves an InstRW's OperandReadWrites on demand --
// resource collection needs the concrete override lists, but
// SchedClass.Writes/Reads deliberately stay
// unchanged by the InstRW pass (the InstRW record itself remains the
// source of truth, exactly as in the original).
func (e *Elaborator) instRWWrites(ir *record.Record) (writes, reads []int, err error) {
	return e.resolveRWList(ir.DefList("OperandReadWrites"))
}
