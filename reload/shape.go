package reload

import (
	"golang.org/x/sync/errgroup"

	"github.com/chazu/isoreload/vm"
)

// CanReload decides whether newClass may take over oldClass's cid: every
// live instance of oldClass must go on being readable through newClass's
// layout without rewriting a single instance, so the two layouts must
// agree exactly on anything an existing instance's slots depend on.
func CanReload(newClass, oldClass *vm.Class) *ReloadError {
	switch oldClass.FinalizationState {
	case vm.ClassFinalized:
		// A finalized class's instances are already on the heap at their
		// final layout; the replacement must reach that same state. This
		// isolate has no separate finalization pass capable of failing
		// partway through, so driving new to finalized is unconditional.
		if newClass.FinalizationState != vm.ClassFinalized {
			newClass.FinalizationState = vm.ClassFinalized
		}
	case vm.ClassPrefinalized:
		if newClass.FinalizationState != vm.ClassPrefinalized {
			return NewShapeError("finalization state changed in %s (prefinalized vs %s)",
				oldClass.FullName(), newClass.FinalizationState)
		}
		if newClass.NumSlots != oldClass.NumSlots {
			return NewShapeError("instance size changed in %s (%d vs %d)",
				oldClass.FullName(), oldClass.NumSlots, newClass.NumSlots)
		}
	}

	oldNames := oldClass.AllInstVarNames()
	newNames := newClass.AllInstVarNames()
	if len(oldNames) != len(newNames) {
		return NewShapeError("number of instance fields changed in %s (%d vs %d)",
			oldClass.FullName(), len(oldNames), len(newNames))
	}
	for i, name := range oldNames {
		if newNames[i] != name {
			return NewShapeError("name of instance field changed (%q vs %q) in %s",
				name, newNames[i], oldClass.FullName())
		}
	}

	if newClass.NativeFieldCount != oldClass.NativeFieldCount {
		return NewShapeError("native field count changed in %s (%d vs %d)",
			oldClass.FullName(), oldClass.NativeFieldCount, newClass.NativeFieldCount)
	}

	return nil
}

// ValidatePairs runs CanReload over every matched class pair concurrently
// and returns the first shape error encountered. Each pair's check only
// reads its own Old and writes its own New, so the pairs are independent
// of one another and safe to fan out across an errgroup; a real reload's
// class map is typically small, but a library graph with hundreds of
// reloaded classes no longer pays for shape-checking one at a time.
func ValidatePairs(cmap *ClassMap) *ReloadError {
	var g errgroup.Group
	errs := make([]*ReloadError, len(cmap.Pairs))
	for i, pair := range cmap.Pairs {
		i, pair := i, pair
		if pair.Old == pair.New {
			continue
		}
		g.Go(func() error {
			errs[i] = CanReload(pair.New, pair.Old)
			return nil
		})
	}
	g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
