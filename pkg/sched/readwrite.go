package sched

import "github.com/minz/schedgen/pkg/record"

// collectSchedRW builds the writes/reads tables (§4.1): every SchedRW
// reachable from an instruction's SchedRW list, an InstRW/ItinRW's
// OperandReadWrites, or a SchedAlias's MatchRW/AliasRW is walked
// transitively (WriteSequence pulls in Writes, SchedVariant pulls in every
// Variants[i].Selected[j]), then sorted by name into index-1-upward
// tables. Aliases are attached last, and the global predicate-exclusion
// table is built once every SchedVariant is known.
func (e *Elaborator) collectSchedRW() error {
	writeSet := make(map[*record.Record]bool)
	readSet := make(map[*record.Record]bool)
	visited := make(map[*record.Record]bool)

	var walk func(rec *record.Record)
	walk = func(rec *record.Record) {
		if rec == nil || visited[rec] {
			return
		}
		visited[rec] = true
		if rec.IsSubClassOf("SchedRead") {
			readSet[rec] = true
		} else {
			writeSet[rec] = true
		}
		switch {
		case rec.IsSubClassOf("WriteSequence"):
			for _, child := range rec.DefList("Writes") {
				walk(child)
			}
		case rec.IsSubClassOf("SchedVariant"):
			for _, variant := range rec.DefList("Variants") {
				for _, sel := range variant.DefList("Selected") {
					walk(sel)
				}
			}
		}
	}

	for _, inst := range e.Target.InstructionsByEnumValue() {
		for _, rw := range inst.DefList("SchedRW") {
			walk(rw)
		}
	}
	for _, ir := range e.DB.AllDerivedDefinitions("InstRW") {
		for _, rw := range ir.DefList("OperandReadWrites") {
			walk(rw)
		}
	}
	for _, ir := range e.DB.AllDerivedDefinitions("ItinRW") {
		for _, rw := range ir.DefList("OperandReadWrites") {
			walk(rw)
		}
	}
	aliases := sortRecordsByName(e.DB.AllDerivedDefinitions("SchedAlias"))
	for _, al := range aliases {
		if t := al.Def("AliasRW"); t != nil {
			walk(t)
		}
		if m := al.Def("MatchRW"); m != nil {
			walk(m)
		}
	}

	e.installTable(writeSet, false)
	e.installTable(readSet, true)
	e.resolveSequenceChildren(false)
	e.resolveSequenceChildren(true)

	if err := e.attachAliases(aliases); err != nil {
		return err
	}
	e.buildExclusionTable()
	e.collectUnusedRWWarnings(writeSet, readSet)
	return nil
}

// installTable sorts a set of records by name and appends entries for
// each to the write or read table starting at index 1.
func (e *Elaborator) installTable(set map[*record.Record]bool, isRead bool) {
	var recs []*record.Record
	for r := range set {
		recs = append(recs, r)
	}
	recs = sortRecordsByName(recs)

	table := &e.Writes
	idxMap := e.writeIdx
	if isRead {
		table = &e.Reads
		idxMap = e.readIdx
	}
	for _, rec := range recs {
		entry := &SchedRW{
			Index:  len(*table),
			Name:   genRWName(rec, isRead),
			IsRead: isRead,
			TheDef: rec,
		}
		switch {
		case rec.IsSubClassOf("WriteSequence"):
			entry.Kind = RWSequence
			entry.Repeat = rec.IntOr("Repeat", 1)
		case rec.IsSubClassOf("SchedVariant"):
			entry.Kind = RWVariant
			entry.HasVariants = true
		default:
			entry.Kind = RWLeaf
		}
		entry.IsVariadic = rec.Bit("IsVariadic")
		*table = append(*table, entry)
		idxMap[rec] = entry.Index
	}
}

// resolveSequenceChildren fills in Sequence (child RW indices) for every
// WriteSequence entry now that the whole table has stable indices.
func (e *Elaborator) resolveSequenceChildren(isRead bool) {
	table := e.Writes
	if isRead {
		table = e.Reads
	}
	for _, entry := range table {
		if entry.Kind != RWSequence {
			continue
		}
		for _, child := range entry.TheDef.DefList("Writes") {
			entry.Sequence = append(entry.Sequence, e.getSchedRWIdx(child, isRead))
		}
	}
}

// attachAliases marks each SchedAlias's AliasRW target as IsAlias and
// pushes the alias record onto its MatchRW entry's Aliases list.
// Aliasing an entry that is itself already an alias target is rejected
// (spec.md §8 invariant 3). Every AliasRW target is marked first, so the
// check does not depend on the order the aliases are visited in.
func (e *Elaborator) attachAliases(aliases []*record.Record) error {
	for _, al := range aliases {
		matchRec := al.Def("MatchRW")
		aliasRec := al.Def("AliasRW")
		if matchRec == nil || aliasRec == nil {
			return errAt(ShapeError, al.Loc, "SchedAlias requires both MatchRW and AliasRW")
		}
		isRead := matchRec.IsSubClassOf("SchedRead")
		if aliasRec.IsSubClassOf("SchedRead") != isRead {
			return errAt(ShapeError, al.Loc, "SchedAlias MatchRW/AliasRW kind mismatch")
		}

		aliasEntry := e.entry(e.getSchedRWIdx(aliasRec, isRead), isRead)
		aliasEntry.IsAlias = true
	}
	for _, al := range aliases {
		matchRec := al.Def("MatchRW")
		isRead := matchRec.IsSubClassOf("SchedRead")
		matchEntry := e.entry(e.getSchedRWIdx(matchRec, isRead), isRead)
		if matchEntry.IsAlias {
			return errAt(ReferenceError, al.Loc, "cannot alias %q: it is already the target of another alias", matchRec.Name)
		}
		matchEntry.Aliases = append(matchEntry.Aliases, al)
	}
	return nil
}

// buildExclusionTable precomputes, for every pair of sibling predicates
// within a SchedVariant's Variants list, that the pair is mutually
// exclusive -- the global test getIntersectingVariants' predicate filter
// consults (§4.4).
func (e *Elaborator) buildExclusionTable() {
	register := func(entry *SchedRW) {
		if !entry.HasVariants {
			return
		}
		var preds []*record.Record
		for _, variant := range entry.TheDef.DefList("Variants") {
			if p := variant.Def("Predicate"); p != nil {
				preds = append(preds, p)
			}
		}
		for i := range preds {
			for j := range preds {
				if i == j {
					continue
				}
				if e.exclusion[preds[i]] == nil {
					e.exclusion[preds[i]] = make(map[*record.Record]bool)
				}
				e.exclusion[preds[i]][preds[j]] = true
			}
		}
	}
	for _, w := range e.Writes[1:] {
		register(w)
	}
	for _, r := range e.Reads[1:] {
		register(r)
	}
}

// collectUnusedRWWarnings flags SchedWrite/SchedRead records declared in
// the database but never reached by the transitive walk above -- except
// the NoWrite/ReadDefault sentinels, which are deliberately allowed to go
// unreferenced (spec.md §9's open question, resolved in SPEC_FULL.md §7).
func (e *Elaborator) collectUnusedRWWarnings(writeSet, readSet map[*record.Record]bool) {
	for _, w := range e.DB.AllDerivedDefinitions("SchedWrite") {
		if w.Name == "NoWrite" || writeSet[w] {
			continue
		}
		e.Warnings = append(e.Warnings, "unused SchedWrite: "+w.Name)
	}
	for _, r := range e.DB.AllDerivedDefinitions("SchedRead") {
		if r.Name == "ReadDefault" || readSet[r] {
			continue
		}
		e.Warnings = append(e.Warnings, "unused SchedRead: "+r.Name)
	}
}
