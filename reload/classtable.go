package reload

import "github.com/chazu/isoreload/vm"

// SwapAndCompact performs the class table's two-part commit step: first
// every matched class pair is swapped so the after-image class adopts
// the before-image class's stable cid, then the holes the swap leaves
// behind (the cids the after-image classes used to occupy) are compacted
// out of the class table.
//
// It returns the renumbering compaction performed, keyed by the cid a
// class held before compaction and valued by the cid it holds after,
// containing only entries that actually moved. RehashCanonicalTypeArguments
// uses this to keep the canonical type-arguments table's dedup index
// consistent with the new cid space.
func SwapAndCompact(iso *vm.Isolate, cp *Checkpoint, cmap *ClassMap, becomes *BecomeMap) map[int32]int32 {
	for _, pair := range cmap.Pairs {
		if pair.Old == pair.New {
			continue
		}

		// ClassTable.Replace mutates pair.New's cid field to the target
		// slot's cid, so the cid it occupied beforehand must be captured
		// first or it is lost.
		vacatedCid := pair.New.ClassID()

		if before, after, ok := iso.ForwardClassBox(pair.Old, pair.New); ok {
			becomes.Add(before, after)
		}

		iso.Classes.Replace(pair.Old.ClassID(), pair.New)
		pair.Old.DisableAllocationStub()

		if vacatedCid != pair.Old.ClassID() {
			iso.Classes.ClearAt(vacatedCid)
		}
	}

	return compact(iso, cp.ClassCount)
}

// compact squeezes the class table's cid space starting at boundary,
// moving every still-live class at or above boundary down to fill any
// holes left by the swap above it, then truncating the table.
func compact(iso *vm.Isolate, boundary int32) map[int32]int32 {
	renumber := make(map[int32]int32)
	write := boundary
	for read := boundary; read < int32(iso.Classes.NumCids()); read++ {
		if !iso.Classes.HasValidAt(read) {
			continue
		}
		if read != write {
			iso.Classes.Move(read, write)
			renumber[read] = write
		}
		write++
	}
	iso.Classes.DropAbove(write)
	return renumber
}
