package reload

import "github.com/chazu/isoreload/vm"

// Checkpoint is the isolate state Start captures before any loader work
// begins, and Rollback restores verbatim if the loaded program turns out
// to be unreloadable. Everything Checkpoint saves is cheap: shallow
// copies of the two ordered collections a reload can otherwise mutate
// destructively (the class table and the library list). The heap itself
// is never checkpointed — Become never runs until validation has already
// passed, so a rollback never needs to undo a become.
type Checkpoint struct {
	// ClassCount is the number of cid slots the class table held at
	// checkpoint time, before the loader registered any after-image
	// classes into it. Reconciliation and compaction use this as the
	// boundary between "existing, possibly-preserved cid" and "cid
	// introduced by this reload".
	ClassCount int32

	classes     []*vm.Class
	libraries   []*vm.Library
	rootLibrary *vm.Library

	backgroundCompilerEnabled bool
}

// NewCheckpoint captures iso's current class table and library list, and
// disables background compilation for the duration of the reload: a
// speculative compile racing the checkpoint could observe classes and
// functions mid-reconciliation.
func NewCheckpoint(iso *vm.Isolate) *Checkpoint {
	cp := &Checkpoint{
		ClassCount:                int32(iso.Classes.NumCids()),
		classes:                   iso.Classes.Snapshot(),
		libraries:                 iso.Libraries.Snapshot(),
		rootLibrary:               iso.RootLibrary,
		backgroundCompilerEnabled: iso.BackgroundCompilerEnabled,
	}
	iso.BackgroundCompilerEnabled = false
	// Constants folded against the before-image classes must not survive
	// into code compiled against the after-image.
	for k := range iso.ConstantsCache {
		delete(iso.ConstantsCache, k)
	}
	return cp
}

// Rollback restores iso to exactly the state NewCheckpoint captured.
// Only called before any destructive step (Become, the class-table swap,
// cache invalidation) has run, so restoring these two collections is
// sufficient to undo the reload attempt entirely.
func (cp *Checkpoint) Rollback(iso *vm.Isolate) {
	iso.Classes.Restore(cp.classes)
	iso.Libraries.Restore(cp.libraries)
	iso.RootLibrary = cp.rootLibrary
	iso.BackgroundCompilerEnabled = cp.backgroundCompilerEnabled
}

// Commit finalizes a successful reload: background compilation resumes,
// the isolate's root library is repointed if the reload replaced it, and
// the checkpoint no longer needs to keep its snapshots reachable.
func (cp *Checkpoint) Commit(iso *vm.Isolate, lmap *LibraryMap) {
	if cp.rootLibrary != nil {
		iso.RootLibrary = cp.rootLibrary
		for _, pair := range lmap.Pairs {
			if pair.Old == cp.rootLibrary {
				iso.RootLibrary = pair.New
				break
			}
		}
	}
	iso.BackgroundCompilerEnabled = cp.backgroundCompilerEnabled
	cp.classes = nil
	cp.libraries = nil
}
