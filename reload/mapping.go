package reload

import "github.com/chazu/isoreload/vm"

// ClassPair names a before-image class and the after-image class that
// replaces it. Only classes with a matching identity (see SameClass) on
// both sides of a reload appear here; a class with no counterpart on the
// other side never does.
type ClassPair struct {
	Old, New *vm.Class
}

// LibraryPair names a before-image library and the after-image library
// that replaces it, matched by URL.
type LibraryPair struct {
	Old, New *vm.Library
}

// FieldPair names a before-image static field and the after-image field
// that inherits its value.
type FieldPair struct {
	Old, New *vm.Field
}

// ClassMap is the result of matching every class the loader registered
// during a reload attempt against the before-image class set.
type ClassMap struct {
	// Pairs holds every match: an after-image class with a before-image
	// counterpart of the same identity. These are the pairs the shape
	// validator and reconciler operate on.
	Pairs []ClassPair

	// New holds after-image classes with no before-image counterpart:
	// genuinely new classes introduced by this reload. They keep the
	// fresh cid the loader's registration gave them.
	New []*vm.Class

	// Removed holds before-image classes with no after-image
	// counterpart. Reload has no target to forward their instances to,
	// so they are left exactly as they were: still valid at their
	// original cid, simply absent from the reloaded library's dictionary
	// going forward.
	Removed []*vm.Class
}

// BuildClassMap matches every class registered into iso.Classes since cp
// was taken against the whole before-image class set cp captured, using
// SameClass as the equivalence. lmap scopes only Removed: a before-image
// class whose Script names a library outside lmap.Pairs is never
// reported as Removed, so a reload of one library never reports classes
// belonging to every other library in the isolate as dropped.
func BuildClassMap(iso *vm.Isolate, cp *Checkpoint, lmap *LibraryMap) *ClassMap {
	reloaded := make(map[string]bool, len(lmap.Pairs))
	for _, pair := range lmap.Pairs {
		reloaded[pair.Old.URL] = true
	}

	before := make(map[string]*vm.Class)
	for _, c := range cp.classes {
		if c != nil {
			before[classIdentityKey(c)] = c
		}
	}

	cmap := &ClassMap{}
	consumedOld := make(map[string]bool)
	seenNew := make(map[string]bool)

	for _, c := range iso.Classes.All() {
		if c.ClassID() < cp.ClassCount {
			continue // present at checkpoint time already, not a reload candidate
		}
		key := classIdentityKey(c)
		if seenNew[key] {
			internalAbortf("two after-image classes share the identity %q", key)
		}
		seenNew[key] = true

		if old, ok := before[key]; ok {
			if consumedOld[key] {
				internalAbortf("before-image class %q matched by more than one after-image class", key)
			}
			consumedOld[key] = true
			if !SameClass(old, c) {
				internalAbortf("identity key matched but SameClass disagreed for %q", key)
			}
			cmap.Pairs = append(cmap.Pairs, ClassPair{Old: old, New: c})
		} else {
			cmap.New = append(cmap.New, c)
		}
	}

	for key, old := range before {
		if !consumedOld[key] && reloaded[old.Script] {
			cmap.Removed = append(cmap.Removed, old)
		}
	}
	return cmap
}

// LibraryMap is the result of matching every library registered into the
// isolate during a reload attempt against the before-image library set.
type LibraryMap struct {
	Pairs []LibraryPair
	New   []*vm.Library
}

// BuildLibraryMap matches every library in iso.Libraries that was not
// already present at checkpoint time against the before-image library
// set, using SameLibrary (URL equality) as the equivalence.
func BuildLibraryMap(iso *vm.Isolate, cp *Checkpoint) *LibraryMap {
	beforeSet := make(map[*vm.Library]bool, len(cp.libraries))
	beforeByURL := make(map[string]*vm.Library, len(cp.libraries))
	for _, lib := range cp.libraries {
		beforeSet[lib] = true
		beforeByURL[lib.URL] = lib
	}

	lmap := &LibraryMap{}
	seenNew := make(map[string]bool)
	for _, lib := range iso.Libraries.All() {
		if beforeSet[lib] {
			continue
		}
		if seenNew[lib.URL] {
			internalAbortf("two after-image libraries share the URL %q", lib.URL)
		}
		seenNew[lib.URL] = true

		if old, ok := beforeByURL[lib.URL]; ok {
			if !SameLibrary(old, lib) {
				internalAbortf("identity key matched but SameLibrary disagreed for %q", lib.URL)
			}
			lmap.Pairs = append(lmap.Pairs, LibraryPair{Old: old, New: lib})
		} else {
			lmap.New = append(lmap.New, lib)
		}
	}
	return lmap
}

// applyLibraryBits carries properties that are not part of a library's
// source text across a matched reload pair, then replaces the
// before-image library in iso.Libraries with the after-image one so the
// stale entry does not linger alongside it. This is the library
// counterpart of SwapAndCompact's class-table replace-and-clear: without
// it, iso.Libraries.All() would accumulate one dead duplicate per
// reloaded generation.
func applyLibraryBits(iso *vm.Isolate, lmap *LibraryMap) {
	for _, pair := range lmap.Pairs {
		pair.New.Debuggable = pair.Old.Debuggable
		iso.Libraries.Replace(pair.Old.URL, pair.New)
	}
}

// BecomeMap accumulates every forwarding instruction a reload's
// reconciliation produces. Value pairs (ordinary heap objects, and class
// identities boxed via vm.Isolate.ClassAsValue) are real become targets
// swept by Become. Field and library pairs are bookkeeping only: neither
// vm.Field nor vm.Library is a heap Value in this isolate model, so
// their "identity transfer" is a direct field copy performed by the
// reconciler rather than a pointer-forwarding sweep. Recording them here
// keeps every identity transfer a reload performs visible in one place,
// even though only Pairs is ever passed to Become.
type BecomeMap struct {
	values    []BecomeTarget
	fields    []FieldPair
	libraries []LibraryPair
}

// NewBecomeMap creates an empty BecomeMap.
func NewBecomeMap() *BecomeMap { return &BecomeMap{} }

// Add records a value become pair.
func (b *BecomeMap) Add(before, after vm.Value) {
	b.values = append(b.values, BecomeTarget{Before: before, After: after})
}

// AddField records a static-field identity transfer.
func (b *BecomeMap) AddField(old, new *vm.Field) {
	b.fields = append(b.fields, FieldPair{Old: old, New: new})
}

// AddLibrary records a library identity transfer.
func (b *BecomeMap) AddLibrary(old, new *vm.Library) {
	b.libraries = append(b.libraries, LibraryPair{Old: old, New: new})
}

// Pairs returns the accumulated value become targets, ready for Become.
func (b *BecomeMap) Pairs() []BecomeTarget { return b.values }

// FieldPairs returns the accumulated field identity transfers.
func (b *BecomeMap) FieldPairs() []FieldPair { return b.fields }

// LibraryPairs returns the accumulated library identity transfers.
func (b *BecomeMap) LibraryPairs() []LibraryPair { return b.libraries }

// Len returns the total number of pairs of every kind recorded.
func (b *BecomeMap) Len() int { return len(b.values) + len(b.fields) + len(b.libraries) }
