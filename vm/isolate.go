package vm

// Isolate is the complete, reloadable unit of state: its class table,
// its libraries, its heap, its canonical type-argument table, and its
// megamorphic dispatch cache. This is the aggregate the reload package
// operates on as a whole, so that a reload can checkpoint and restore
// every piece of it together rather than one table at a time.
type Isolate struct {
	Classes        *ClassTable
	Libraries      *Libraries
	RootLibrary    *Library
	Heap           *Heap
	CanonicalTypes *CanonicalTypeTable
	Megamorphic    *MegamorphicCache
	Selectors      *SelectorTable
	Symbols        *SymbolTable
	Stack          *CallStack

	// BackgroundCompilerEnabled tracks whether a background JIT thread
	// may run concurrently with interpreted execution. Leaving it true
	// during a reload would let a compile race the checkpoint; reload's
	// NewCheckpoint disables it for the duration of a reload attempt and
	// Checkpoint.Commit or Checkpoint.Rollback restores it.
	BackgroundCompilerEnabled bool

	// ConstantsCache holds compile-time-folded literal values the loader
	// produced, keyed by a loader-assigned token. reload.Checkpoint
	// clears it: constants folded against a before-image class must not
	// leak into code compiled after a reload commits.
	ConstantsCache map[string]Value

	// ClassBoxes gives a Class first-class identity as a heap Value on
	// first use (an expression that evaluates to "the class itself",
	// rather than one of its instances). Nothing else in this isolate
	// stores a *Class pointer as a Value directly, so a reload that
	// replaces a class can carry this identity across the same way it
	// carries every other object identity: by becoming the old box onto
	// a fresh one for the replacement (see ForwardClassBox).
	ClassBoxes map[*Class]*Object
}

// classBoxCid tags a class-box Object: it never occupies a slot in any
// ClassTable, so it can never collide with a real cid.
const classBoxCid int32 = -1

// NewIsolate creates an empty isolate ready for classes and libraries to
// be registered into it.
func NewIsolate() *Isolate {
	return &Isolate{
		Classes:                   NewClassTable(),
		Libraries:                 NewLibraries(),
		Heap:                      NewHeap(),
		CanonicalTypes:            NewCanonicalTypeTable(),
		Megamorphic:               NewMegamorphicCache(),
		Selectors:                 NewSelectorTable(),
		Symbols:                   NewSymbolTable(),
		Stack:                     &CallStack{},
		BackgroundCompilerEnabled: true,
		ConstantsCache:            make(map[string]Value),
		ClassBoxes:                make(map[*Class]*Object),
	}
}

// AllocateObject creates a new Object of class cid and registers it with
// the isolate's heap so it participates in future become sweeps.
func (iso *Isolate) AllocateObject(cid int32, numSlots int) *Object {
	obj := NewObject(cid, numSlots)
	iso.Heap.Register(obj)
	return obj
}

// ClassNamed is a convenience wrapper over Classes.Lookup.
func (iso *Isolate) ClassNamed(name string) *Class {
	return iso.Classes.Lookup(name)
}

// ClassAsValue returns the stable heap Value standing in for c as a
// first-class value, allocating one on first use.
func (iso *Isolate) ClassAsValue(c *Class) Value {
	if box, ok := iso.ClassBoxes[c]; ok {
		return box.ToValue()
	}
	box := NewObject(classBoxCid, 1)
	box.SetSlot(0, FromSmallInt(int64(c.ClassID())))
	iso.Heap.Register(box)
	iso.ClassBoxes[c] = box
	return box.ToValue()
}

// ForwardClassBox reports whether old was ever taken as a first-class
// value and, if so, returns the become pair (old's box -> replacement's
// box), creating replacement's box as needed and forgetting old's. ok is
// false when old was never boxed, meaning there is nothing to forward.
func (iso *Isolate) ForwardClassBox(old, replacement *Class) (before, after Value, ok bool) {
	box, exists := iso.ClassBoxes[old]
	if !exists {
		return Nil, Nil, false
	}
	after = iso.ClassAsValue(replacement)
	before = box.ToValue()
	delete(iso.ClassBoxes, old)
	return before, after, true
}
