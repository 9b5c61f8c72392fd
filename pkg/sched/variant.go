package sched

import "github.com/minz/schedgen/pkg/record"

// inferSchedClasses is the driver for the variant transition engine
// (§4.4): for every class with a non-empty write or read list, it seeds a
// single empty-PredTerm PredTransition and runs substituteVariants to a
// fixed point, then turns any transitions that resulted in a choice into
// new inferred SchedClasses. The outer loop iterates by growing index
// over e.Classes, so classes appended during inference are visited too;
// only a class's own Writes/Reads are expanded (the OperandReadWrites of
// its InstRWs are not). The loop is bounded defensively at 6x the class
// count observed before inference began (spec.md §9).
func (e *Elaborator) inferSchedClasses() error {
	bound := 6 * len(e.Classes)
	for ci := 1; ci < len(e.Classes); ci++ {
		if len(e.Classes) > bound {
			return errAt(CoverageError, record.Loc{}, "SchedClasses grew past the defensive 6x bound during variant inference")
		}
		cls := e.Classes[ci]
		if len(cls.Writes) == 0 && len(cls.Reads) == 0 {
			continue
		}
		transitions, err := e.inferFromRW(cls)
		if err != nil {
			return err
		}
		for _, t := range transitions {
			if err := e.inferFromTransitions(cls, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// inferFromRW seeds and fixed-points the PredTransition expansion for one
// class. It returns nil (no transitions) when no variant ever fired, so
// the caller can tell "fully concrete class" apart from "produced one
// transition with an empty PredTerm" -- the latter can't happen here since
// an empty-PredTerm result is filtered out below, matching §4.4's "if the
// first transition still has an empty PredTerm, no inference occurred".
func (e *Elaborator) inferFromRW(cls *SchedClass) ([]*PredTransition, error) {
	seed := &PredTransition{
		WriteSequences: make([][]int, len(cls.Writes)),
		ReadSequences:  make([][]int, len(cls.Reads)),
		ProcIndices:    append([]int(nil), cls.ProcIndices...),
	}
	for i, w := range cls.Writes {
		seed.WriteSequences[i] = []int{w}
	}
	for i, r := range cls.Reads {
		seed.ReadSequences[i] = []int{r}
	}

	current := []*PredTransition{seed}
	for e.anyHasVariant(current) {
		var next []*PredTransition
		for _, t := range current {
			expanded, err := e.substituteVariants(t)
			if err != nil {
				return nil, err
			}
			next = append(next, expanded...)
		}
		current = next
	}

	if len(current) == 1 && len(current[0].PredTerm) == 0 {
		return nil, nil
	}
	return current, nil
}

func (e *Elaborator) anyHasVariant(transitions []*PredTransition) bool {
	for _, t := range transitions {
		for _, seq := range t.WriteSequences {
			for _, idx := range seq {
				if e.hasVariant(idx, false) {
					return true
				}
			}
		}
		for _, seq := range t.ReadSequences {
			for _, idx := range seq {
				if e.hasVariant(idx, true) {
					return true
				}
			}
		}
	}
	return false
}

// hasVariant reports whether an RW entry, directly or through one of its
// aliases, has variants to choose among.
func (e *Elaborator) hasVariant(idx int, isRead bool) bool {
	entry := e.entry(idx, isRead)
	if entry.HasVariants {
		return true
	}
	for _, al := range entry.Aliases {
		targetIdx := e.getSchedRWIdx(al.Def("AliasRW"), isRead)
		if targetIdx != 0 && e.entry(targetIdx, isRead).HasVariants {
			return true
		}
	}
	return false
}

// substituteVariants walks every write position, then every read
// position, substituting variant-bearing RWs with their surviving
// candidates and fanning the transition out as needed (§4.4).
func (e *Elaborator) substituteVariants(t *PredTransition) ([]*PredTransition, error) {
	transitions := []*PredTransition{t}
	var err error
	for pos := range t.WriteSequences {
		transitions, err = e.substituteVariantOperand(transitions, pos, false)
		if err != nil {
			return nil, err
		}
	}
	for pos := range t.ReadSequences {
		transitions, err = e.substituteVariantOperand(transitions, pos, true)
		if err != nil {
			return nil, err
		}
	}
	return transitions, nil
}

func getSeq(t *PredTransition, pos int, isRead bool) []int {
	if isRead {
		return t.ReadSequences[pos]
	}
	return t.WriteSequences[pos]
}

func setSeq(t *PredTransition, pos int, isRead bool, seq []int) {
	if isRead {
		t.ReadSequences[pos] = seq
	} else {
		t.WriteSequences[pos] = seq
	}
}

// substituteVariantOperand processes one operand position across every
// transition currently in play, replacing each original RW in that
// position's sequence with its expansion. An RW with no variants is
// appended unchanged; one with surviving intersecting variants triggers a
// clone-per-candidate fan-out via pushVariant.
func (e *Elaborator) substituteVariantOperand(transitions []*PredTransition, pos int, isRead bool) ([]*PredTransition, error) {
	var out []*PredTransition
	for _, t := range transitions {
		orig := append([]int(nil), getSeq(t, pos, isRead)...)
		setSeq(t, pos, isRead, nil)

		cur := []*PredTransition{t}
		for _, rwIdx := range orig {
			var next []*PredTransition
			for _, ct := range cur {
				if !e.hasVariant(rwIdx, isRead) {
					expanded, err := e.expandSelectionForAppend(rwIdx, isRead, ct)
					if err != nil {
						return nil, err
					}
					setSeq(ct, pos, isRead, append(getSeq(ct, pos, isRead), expanded...))
					next = append(next, ct)
					continue
				}

				candidates, err := e.getIntersectingVariants(rwIdx, isRead, ct)
				if err != nil {
					return nil, err
				}
				if len(candidates) == 0 {
					return nil, errAt(CoverageError, record.Loc{}, "no intersecting variant survives for %q", e.entry(rwIdx, isRead).Name)
				}
				targets := []*PredTransition{ct}
				for range candidates[1:] {
					targets = append(targets, clonePredTransition(ct))
				}
				for ci, cand := range candidates {
					target := targets[ci]
					if err := e.pushVariant(target, pos, isRead, rwIdx, cand); err != nil {
						return nil, err
					}
					next = append(next, target)
				}
			}
			cur = next
		}
		out = append(out, cur...)
	}
	return out, nil
}

// expandSelectionForAppend is the no-variant case of appending an RW to
// an operand sequence: writes are expanded through the plain
// expandRWSequence (sequences only, no alias redirection -- the original's
// pushVariant never resolves SchedAlias during variant substitution),
// reads are left as a single index (§4.4: "for reads, leave as-is").
func (e *Elaborator) expandSelectionForAppend(rwIdx int, isRead bool, t *PredTransition) ([]int, error) {
	if isRead {
		return []int{rwIdx}, nil
	}
	return e.expandRWSequence(rwIdx, false), nil
}

// variantCandidate is one surviving choice getIntersectingVariants
// offers pushVariant: either a predicated SchedVar selection or a plain
// alias-target sequence with no predicate attached.
type variantCandidate struct {
	procIdx   int // -1 when generic (no processor constraint)
	isVar     bool
	predicate *record.Record
	selected  []*record.Record // SchedVar's Selected, when isVar
	seqIdx    int              // alias target's own index, when !isVar
}

// getIntersectingVariants enumerates an RW's own variants plus, through
// each alias, the alias's variants (or the alias target itself when it
// isn't a variant), filters by processor compatibility with the current
// transition, and filters by predicate mutual exclusion against the
// transition's existing PredTerm (§4.4 steps 1-3).
func (e *Elaborator) getIntersectingVariants(rwIdx int, isRead bool, t *PredTransition) ([]variantCandidate, error) {
	entry := e.entry(rwIdx, isRead)
	var candidates []variantCandidate

	addVariantsOf := func(variantEntry *SchedRW, procOverride int) error {
		for _, variant := range variantEntry.TheDef.DefList("Variants") {
			proc := procOverride
			if sm := variant.Def("SchedModel"); sm != nil {
				idx, err := e.modelIndex(sm)
				if err != nil {
					return err
				}
				proc = idx
			}
			candidates = append(candidates, variantCandidate{
				procIdx:   proc,
				isVar:     true,
				predicate: variant.Def("Predicate"),
				selected:  variant.DefList("Selected"),
			})
		}
		return nil
	}

	if entry.HasVariants {
		if err := addVariantsOf(entry, -1); err != nil {
			return nil, err
		}
	}
	for _, al := range entry.Aliases {
		proc := -1
		if sm := al.Def("SchedModel"); sm != nil {
			idx, err := e.modelIndex(sm)
			if err != nil {
				return nil, err
			}
			proc = idx
		}
		targetIdx := e.getSchedRWIdx(al.Def("AliasRW"), isRead)
		targetEntry := e.entry(targetIdx, isRead)
		if targetEntry.HasVariants {
			if err := addVariantsOf(targetEntry, proc); err != nil {
				return nil, err
			}
			continue
		}
		candidates = append(candidates, variantCandidate{procIdx: proc, isVar: false, seqIdx: targetIdx})
	}

	seenProc := make(map[int]int)
	var filtered []variantCandidate
	for _, c := range candidates {
		if c.procIdx >= 0 {
			if !procCompatible(t.ProcIndices, c.procIdx) {
				continue
			}
			seenProc[c.procIdx]++
			if seenProc[c.procIdx] > 1 {
				return nil, errAt(AmbiguityError, record.Loc{}, "processor %d has more than one applicable alias for %q", c.procIdx, entry.Name)
			}
		}
		filtered = append(filtered, c)
	}

	var out []variantCandidate
	for _, c := range filtered {
		if c.isVar && e.mutuallyExclusive(t.PredTerm, c.predicate) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// procCompatible reports whether a candidate constrained to procIdx is
// usable under a transition's current processor set: compatible if the
// transition is still generic ({0} or unconstrained), or if procIdx is
// already a member of the transition's set.
func procCompatible(transProcs []int, procIdx int) bool {
	if len(transProcs) == 0 {
		return true
	}
	if len(transProcs) == 1 && transProcs[0] == 0 {
		return true
	}
	for _, p := range transProcs {
		if p == procIdx {
			return true
		}
	}
	return false
}

// mutuallyExclusive reports whether cand is excluded by some predicate
// already in term, per the precomputed sibling-predicate table built by
// buildExclusionTable.
func (e *Elaborator) mutuallyExclusive(term []PredCheck, cand *record.Record) bool {
	if cand == nil {
		return false
	}
	for _, pc := range term {
		if pc.Predicate == cand {
			continue
		}
		if e.exclusion[pc.Predicate] != nil && e.exclusion[pc.Predicate][cand] {
			return true
		}
	}
	return false
}

// pushVariant extends one transition with a chosen candidate: narrowing
// its processor set when the candidate is processor-constrained,
// appending a PredCheck for predicated choices, and expanding the
// selected RW(s) into the operand sequence -- fanning a variadic write's
// selections across cloned sibling operand slots (§4.4).
func (e *Elaborator) pushVariant(t *PredTransition, pos int, isRead bool, origIdx int, cand variantCandidate) error {
	if cand.procIdx >= 0 {
		t.ProcIndices = []int{cand.procIdx}
	}

	var selected []int
	if cand.isVar {
		t.PredTerm = append(t.PredTerm, PredCheck{IsRead: isRead, RWIdx: origIdx, Predicate: cand.predicate})
		for _, sel := range cand.selected {
			selIdx := e.getSchedRWIdx(sel, isRead)
			if selIdx == 0 {
				return errAt(ReferenceError, sel.Loc, "unresolved variant selection %q", sel.Name)
			}
			selected = append(selected, selIdx)
		}
	} else {
		selected = []int{cand.seqIdx}
	}

	variadic := !isRead && e.Writes[origIdx].IsVariadic && len(selected) > 1

	if variadic {
		base := append([]int(nil), getSeq(t, pos, isRead)...)
		for i := 1; i < len(selected); i++ {
			insertOperand(t, pos+i, isRead, append([]int(nil), base...))
		}
		for i, selIdx := range selected {
			expanded := e.expandForWrite(selIdx)
			setSeq(t, pos+i, isRead, append(getSeq(t, pos+i, isRead), expanded...))
		}
		return nil
	}

	for _, selIdx := range selected {
		var expanded []int
		if isRead {
			expanded = []int{selIdx}
		} else {
			expanded = e.expandForWrite(selIdx)
		}
		setSeq(t, pos, isRead, append(getSeq(t, pos, isRead), expanded...))
	}
	return nil
}

// expandForWrite resolves a write-sequence selection through the plain
// expandRWSequence -- the original's pushVariant never follows SchedAlias
// redirection during variant substitution; alias candidates are already
// surfaced upstream by getIntersectingVariants' explicit Aliases walk.
func (e *Elaborator) expandForWrite(idx int) []int {
	return e.expandRWSequence(idx, false)
}

func insertOperand(t *PredTransition, pos int, isRead bool, seq []int) {
	if isRead {
		t.ReadSequences = append(t.ReadSequences, nil)
		copy(t.ReadSequences[pos+1:], t.ReadSequences[pos:])
		t.ReadSequences[pos] = seq
		return
	}
	t.WriteSequences = append(t.WriteSequences, nil)
	copy(t.WriteSequences[pos+1:], t.WriteSequences[pos:])
	t.WriteSequences[pos] = seq
}

// inferFromTransitions turns one fixed-point PredTransition into a new,
// inferred SchedClass and records a Transition edge from the originating
// class to it (§4.4's final step).
func (e *Elaborator) inferFromTransitions(from *SchedClass, t *PredTransition) error {
	writes := make([]int, len(t.WriteSequences))
	for i, seq := range t.WriteSequences {
		writes[i] = e.findOrInsertRW(seq, false)
	}
	reads := make([]int, len(t.ReadSequences))
	for i, seq := range t.ReadSequences {
		reads[i] = e.findOrInsertRW(seq, true)
	}

	toIdx, err := e.addSchedClass(nil, writes, reads, t.ProcIndices)
	if err != nil {
		return err
	}
	from.Transitions = append(from.Transitions, Transition{
		ToClassIdx:  toIdx,
		ProcIndices: append([]int(nil), t.ProcIndices...),
		PredTerm:    append([]PredCheck(nil), t.PredTerm...),
	})
	return nil
}
