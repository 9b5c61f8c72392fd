package sched

import "github.com/minz/schedgen/pkg/record"

// collectProcResources walks every SchedClass's effective writes/reads
// (its own Writes/Reads plus every InstRW override) and attaches
// WriteRes/ReadAdvance/ProcResource records to the correct processor
// model, following each resource's transitive Super chain, then verifies
// the resource-group overlap invariant (§4.5).
func (e *Elaborator) collectProcResources() error {
	for _, cls := range e.Classes {
		if err := e.collectClassResources(cls, cls.Writes, cls.Reads, cls.ProcIndices); err != nil {
			return err
		}
		for _, ir := range cls.InstRWs {
			writes, reads, err := e.instRWWrites(ir)
			if err != nil {
				return err
			}
			modelIdx, err := e.modelIndex(ir.Def("SchedModel"))
			if err != nil {
				return err
			}
			if err := e.collectClassResources(cls, writes, reads, []int{modelIdx}); err != nil {
				return err
			}
		}
	}
	for _, pm := range e.ProcModels {
		if err := e.verifyProcResourceGroups(pm); err != nil {
			return err
		}
	}
	return nil
}

func (e *Elaborator) collectClassResources(cls *SchedClass, writes, reads, procIndices []int) error {
	for _, pIdx := range procIndices {
		pm := e.ProcModels[pIdx]
		for _, wIdx := range writes {
			rec := e.Writes[wIdx].TheDef
			if rec == nil || !rec.IsSubClassOf("SchedWriteRes") {
				continue
			}
			if !containsRec(pm.WriteResDefs, rec) {
				pm.WriteResDefs = append(pm.WriteResDefs, rec)
			}
			for _, kind := range rec.DefList("ProcResources") {
				unit, err := e.findProcResUnits(kind, pm)
				if err != nil {
					return err
				}
				if err := e.addProcResourceClosure(pm, unit); err != nil {
					return err
				}
			}
		}
		for _, rIdx := range reads {
			rec := e.Reads[rIdx].TheDef
			if rec == nil || !rec.IsSubClassOf("SchedReadAdvance") {
				continue
			}
			if !containsRec(pm.ReadAdvanceDefs, rec) {
				pm.ReadAdvanceDefs = append(pm.ReadAdvanceDefs, rec)
			}
		}
	}
	return nil
}

// addProcResourceClosure adds unit to a processor's ProcResourceDefs (if
// not already present) and follows its Super chain transitively, so every
// supergroup a resource belongs to is present too (spec.md §8 property 7:
// "resource closure").
func (e *Elaborator) addProcResourceClosure(pm *ProcModel, unit *record.Record) error {
	for unit != nil {
		if containsRec(pm.ProcResourceDefs, unit) {
			return nil
		}
		pm.ProcResourceDefs = append(pm.ProcResourceDefs, unit)
		unit = unit.Def("Super")
	}
	return nil
}

// findProcResUnits resolves a ProcResources entry (which may already be a
// concrete ProcResourceUnits, or may be a Kind shared by exactly one
// ProcResourceUnits/ProcResGroup declared for pm) to the concrete unit
// record. Zero or multiple matches are fatal (§4.5).
func (e *Elaborator) findProcResUnits(kind *record.Record, pm *ProcModel) (*record.Record, error) {
	if kind.IsSubClassOf("ProcResourceUnits") {
		return kind, nil
	}
	var match *record.Record
	check := func(candidates []*record.Record) error {
		for _, c := range candidates {
			if c.Def("Kind") == kind && c.Def("SchedModel") == pm.ModelDef {
				if match != nil {
					return errAt(AmbiguityError, c.Loc, "multiple ProcResourceUnits/ProcResGroup match kind %q on %q", kind.Name, pm.Name)
				}
				match = c
			}
		}
		return nil
	}
	if err := check(e.DB.AllDerivedDefinitions("ProcResourceUnits")); err != nil {
		return nil, err
	}
	if err := check(e.DB.AllDerivedDefinitions("ProcResGroup")); err != nil {
		return nil, err
	}
	if match == nil {
		return nil, errAt(ReferenceError, kind.Loc, "no ProcResourceUnits/ProcResGroup matches kind %q on %q", kind.Name, pm.Name)
	}
	return match, nil
}

// verifyProcResourceGroups enforces: for every pair of ProcResGroups in a
// model whose resource sets overlap, their union must be contained in
// some other declared group (§4.5).
func (e *Elaborator) verifyProcResourceGroups(pm *ProcModel) error {
	var groups []*record.Record
	for _, g := range e.DB.AllDerivedDefinitions("ProcResGroup") {
		if g.Def("SchedModel") == pm.ModelDef {
			groups = append(groups, g)
		}
	}
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			gi, gj := groups[i].DefList("Resources"), groups[j].DefList("Resources")
			if !overlaps(gi, gj) {
				continue
			}
			union := unionRecs(gi, gj)
			if !anyGroupContains(groups, union, groups[i], groups[j]) {
				return errAt(AmbiguityError, groups[i].Loc, "ProcResGroups %q and %q overlap with no common supergroup", groups[i].Name, groups[j].Name)
			}
		}
	}
	return nil
}

func containsRec(list []*record.Record, rec *record.Record) bool {
	for _, r := range list {
		if r == rec {
			return true
		}
	}
	return false
}

func overlaps(a, b []*record.Record) bool {
	for _, x := range a {
		if containsRec(b, x) {
			return true
		}
	}
	return false
}

func unionRecs(a, b []*record.Record) []*record.Record {
	out := append([]*record.Record(nil), a...)
	for _, x := range b {
		if !containsRec(out, x) {
			out = append(out, x)
		}
	}
	return out
}

func anyGroupContains(groups []*record.Record, union []*record.Record, exclude ...*record.Record) bool {
	for _, g := range groups {
		if g == exclude[0] || g == exclude[1] {
			continue
		}
		resources := g.DefList("Resources")
		contained := true
		for _, u := range union {
			if !containsRec(resources, u) {
				contained = false
				break
			}
		}
		if contained {
			return true
		}
	}
	return false
}
