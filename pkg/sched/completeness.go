package sched

import (
	"fmt"
	"strings"

	"github.com/minz/schedgen/pkg/record"
)

// checkCompleteness implements §4.6: for every processor declaring
// CompleteModel, every instruction not marked hasNoSchedulingInfo and not
// excused by UnsupportedFeatures must have effective scheduling info --
// a non-trivial SchedClass with non-empty Writes, a non-NoItinerary
// itinerary class, or an InstRW entry for this processor's model. Missing
// entries accumulate; any accumulation at all makes the final result
// fatal with the full list (spec.md §4.6, §7's "accumulated, then
// fatal").
func (e *Elaborator) checkCompleteness() error {
	for _, pm := range e.ProcModels {
		if pm.ModelDef == nil || !pm.ModelDef.Bit("CompleteModel") {
			continue
		}
		for _, inst := range e.Target.InstructionsByEnumValue() {
			if inst.Bit("hasNoSchedulingInfo") {
				continue
			}
			if e.isUnsupported(pm, inst) {
				continue
			}
			if e.hasEffectiveSchedInfo(pm, inst) {
				continue
			}
			e.completenessErrs = append(e.completenessErrs,
				fmt.Sprintf("%s: instruction %q has no scheduling info for complete model %q", inst.Loc, inst.Name, pm.Name))
		}
	}
	if len(e.completenessErrs) == 0 {
		return nil
	}
	return errAt(CoverageError, record.Loc{},
		"completeness check failed:\n%s", strings.Join(e.completenessErrs, "\n"))
}

// isUnsupported reports whether any of inst's Predicates appears in pm's
// declared UnsupportedFeatures list.
func (e *Elaborator) isUnsupported(pm *ProcModel, inst *record.Record) bool {
	for _, pred := range inst.DefList("Predicates") {
		for _, unsupported := range pm.UnsupportedFeaturesDefs {
			if pred == unsupported {
				return true
			}
		}
	}
	return false
}

// hasEffectiveSchedInfo reports whether inst has usable scheduling info
// on pm: a SchedClass with non-empty Writes, a real (non-NoItinerary)
// itinerary class, or an InstRW entry targeting pm's model.
func (e *Elaborator) hasEffectiveSchedInfo(pm *ProcModel, inst *record.Record) bool {
	clsIdx, ok := e.InstrClass[inst]
	if !ok {
		return false
	}
	cls := e.Classes[clsIdx]
	if len(cls.Writes) > 0 {
		return true
	}
	if cls.ItinClassDef != nil && cls.ItinClassDef.Name != "NoItinerary" {
		return true
	}
	for _, ir := range cls.InstRWs {
		if ir.Def("SchedModel") == pm.ModelDef {
			return true
		}
	}
	return false
}
