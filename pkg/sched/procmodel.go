package sched

import "github.com/minz/schedgen/pkg/record"

// collectProcModels builds the ProcModel table (§3, §4 data model): one
// entry per distinct SchedMachineModel actually referenced by a Processor
// record's SchedModel field, sorted by the referencing processor's name
// for determinism. Processors left at NoSchedModel resolve to index 0 and
// contribute no new entry -- this is why an empty target still produces
// ProcModels == [NoSchedModel] (spec.md §8 scenario 1).
func (e *Elaborator) collectProcModels() error {
	processors := sortRecordsByName(e.DB.AllDerivedDefinitions("Processor"))
	for _, proc := range processors {
		modelDef := proc.Def("SchedModel")
		if modelDef == nil || modelDef.Name == "NoSchedModel" {
			continue
		}
		if _, ok := e.modelByDef[modelDef]; ok {
			continue
		}
		pm := &ProcModel{
			Index:    len(e.ProcModels),
			Name:     modelDef.Name,
			ModelDef: modelDef,
			ItinsDef: modelDef.Def("Itineraries"),
		}
		pm.HasItineraries = pm.ItinsDef != nil && pm.ItinsDef.Name != "NoItineraries"
		e.ProcModels = append(e.ProcModels, pm)
		e.modelByDef[modelDef] = pm.Index
	}
	return nil
}

// collectProcItins bridges the legacy itinerary-class model: for every
// processor declaring real Itineraries (not NoItineraries), walk its
// ItinsDef's IID list and position each ItinData entry at the index of
// the SchedClass whose ItinClassDef matches the entry's TheClass, giving
// a per-processor, per-class itinerary lookup in ProcModel.ItinDefList
// (supplements spec.md with the legacy-itinerary behavior the
// distillation omitted). No later phase reads ItinDefList; it is part of
// the elaborated output.
func (e *Elaborator) collectProcItins() error {
	for _, pm := range e.ProcModels {
		if !pm.HasItineraries {
			continue
		}
		itinDefList := make([]*record.Record, len(e.Classes))
		for _, id := range pm.ItinsDef.DefList("IID") {
			theClass := id.Def("TheClass")
			if theClass == nil {
				return errAt(ShapeError, id.Loc, "ItinData in %q's Itineraries has no TheClass", pm.Name)
			}
			for clsIdx, cls := range e.Classes {
				if cls.ItinClassDef != theClass {
					continue
				}
				if itinDefList[clsIdx] != nil {
					return errAt(CollisionError, id.Loc, "itinerary class %q matched more than once in %q's Itineraries", theClass.Name, pm.Name)
				}
				itinDefList[clsIdx] = id
			}
		}
		pm.ItinDefList = itinDefList
	}
	return nil
}

// collectProcItinRW gathers each processor's ItinRW records -- the
// per-processor itinerary-class-to-SchedRW bridge -- rejecting a
// processor whose ItinRW entries claim the same itinerary class twice
// (spec.md §3's "duplicates are fatal" invariant).
func (e *Elaborator) collectProcItinRW() error {
	itinRWs := sortRecordsByName(e.DB.AllDerivedDefinitions("ItinRW"))
	for _, ir := range itinRWs {
		modelIdx, err := e.modelIndex(ir.Def("SchedModel"))
		if err != nil {
			return err
		}
		pm := e.ProcModels[modelIdx]

		seen := make(map[string]bool)
		for _, ic := range ir.DefList("MatchedItinClasses") {
			if seen[ic.Name] {
				return errAt(AmbiguityError, ir.Loc, "ItinRW matches itinerary class %q twice", ic.Name)
			}
			seen[ic.Name] = true
			for _, existing := range pm.ItinRWDefs {
				for _, eic := range existing.DefList("MatchedItinClasses") {
					if eic.Name == ic.Name {
						return errAt(AmbiguityError, ir.Loc, "duplicate ItinRW match for itinerary class %q on processor %q", ic.Name, pm.Name)
					}
				}
			}
		}
		pm.ItinRWDefs = append(pm.ItinRWDefs, ir)
	}
	return nil
}

// collectProcUnsupportedFeatures copies each model's declared
// UnsupportedFeatures predicate list, consulted by the completeness
// checker to excuse instructions the processor deliberately can't run.
func (e *Elaborator) collectProcUnsupportedFeatures() error {
	for _, pm := range e.ProcModels {
		if pm.ModelDef == nil {
			continue
		}
		pm.UnsupportedFeaturesDefs = pm.ModelDef.DefList("UnsupportedFeatures")
	}
	return nil
}
