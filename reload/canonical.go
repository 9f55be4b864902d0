package reload

import "github.com/chazu/isoreload/vm"

// RehashCanonicalTypeArguments keeps the isolate's canonical
// type-arguments table consistent with a cid renumbering that class-table
// compaction just performed. The swap itself never changes a preserved
// class's cid, so only compaction's renumbering can invalidate an entry;
// renumber maps a pre-compaction cid to its post-compaction cid and
// contains only cids that actually moved.
//
// This isolate has no other cid-keyed structure that needs an analogous
// rehash: canonical constants and enum instances are keyed by declaration
// name on their owning Class, not by cid (see reconcile.go), and inline
// caches are reset outright on every reload rather than renumbered.
func RehashCanonicalTypeArguments(iso *vm.Isolate, renumber map[int32]int32) {
	if len(renumber) == 0 {
		return
	}

	entries := iso.CanonicalTypes.All()
	for _, t := range entries {
		for i, cid := range t.ClassIDs {
			if moved, ok := renumber[cid]; ok {
				t.ClassIDs[i] = moved
			}
		}
	}

	// Rebuild's return value identifies which entries collapsed onto a
	// survivor. Nothing else in this isolate holds a *TypeArguments
	// pointer that would need retargeting onto the survivor: the
	// canonical table is the only structure that indexes them.
	iso.CanonicalTypes.Rebuild(entries)
}
