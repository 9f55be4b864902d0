package vm

import "sync"

// FinalizationState tracks how far a class has progressed through layout
// finalization. reload's CanReload applies different rules depending on
// the before-image class's state (see reload/shape.go).
type FinalizationState uint8

const (
	ClassAllocated FinalizationState = iota
	ClassPrefinalized
	ClassFinalized
)

func (s FinalizationState) String() string {
	switch s {
	case ClassAllocated:
		return "allocated"
	case ClassPrefinalized:
		return "prefinalized"
	case ClassFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Class represents a class in the isolate's class hierarchy.
//
// cid is the class's identity across a reload: a reload that replaces a
// class's shape and methods keeps its cid unchanged, because every live
// instance's header still names that cid (vm.Object.ClassID). A reload
// that changes an existing class's instance shape is rejected by
// reload.CanReload and rolled back; instances are never migrated onto a
// class at a different cid.
type Class struct {
	cid int32

	Name       string
	Namespace  string
	Superclass *Class

	VTable      *VTable // instance-side method dispatch
	ClassVTable *VTable // class-side (metaclass) method dispatch

	InstVars  []string
	ClassVars []string
	NumSlots  int

	FinalizationState FinalizationState
	NativeFieldCount  int
	IsEnum            bool

	// allocationStubDisabled is set once this class has been retired by
	// a reload's class-table swap. A disabled class can no longer serve
	// NewInstance/NewInstanceWithSlots: any inline allocation the loader
	// generated against this class's layout must not go on producing
	// instances of a class the class table no longer names.
	allocationStubDisabled bool

	// Functions holds the class's own methods and class methods by
	// selector name, independent of VTable's selector-ID indexing. The
	// reload engine walks this map directly when it needs to visit every
	// Function owned by a class, rather than decoding a VTable's
	// selector-ID slots.
	Functions map[string]*Function

	// Fields holds static (class-level) fields declared directly on this
	// class, by name. Reconciliation copies each Field's static cell
	// across a reload that preserves the field's name and staticness.
	Fields map[string]*Field

	// Script names the defining compilation unit (a Library URL). Two
	// classes with the same Name and Script are considered "the same
	// class" across reload even when their memory addresses differ.
	Script string

	// CanonicalConstants holds compile-time-folded instances owned by
	// this class: enum instances for an enum class, and any other
	// canonicalized literal the loader hands the class. Reconciliation
	// rebinds these by name across a reload.
	CanonicalConstants map[string]Value
}

// InstVarIndex returns the slot index for an instance variable by name.
// Returns -1 if the variable is not found.
func (c *Class) InstVarIndex(name string) int {
	for i, n := range c.InstVars {
		if n == name {
			return c.instVarOffset() + i
		}
	}
	if c.Superclass != nil {
		return c.Superclass.InstVarIndex(name)
	}
	return -1
}

// instVarOffset returns the starting slot index for this class's instance
// variables, accounting for inherited ones.
func (c *Class) instVarOffset() int {
	if c.Superclass == nil {
		return 0
	}
	return c.Superclass.NumSlots
}

// AllInstVarNames returns all instance variable names including inherited
// ones.
func (c *Class) AllInstVarNames() []string {
	if c.Superclass == nil {
		return c.InstVars
	}
	inherited := c.Superclass.AllInstVarNames()
	result := make([]string, len(inherited)+len(c.InstVars))
	copy(result, inherited)
	copy(result[len(inherited):], c.InstVars)
	return result
}

// IsSubclassOf returns true if c is a subclass of other (or is other).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// IsSuperclassOf returns true if c is a superclass of other (or is
// other).
func (c *Class) IsSuperclassOf(other *Class) bool {
	return other.IsSubclassOf(c)
}

// ClassID returns the class's cid.
func (c *Class) ClassID() int32 { return c.cid }

// ---------------------------------------------------------------------------
// Class Variables
// ---------------------------------------------------------------------------

// classVarStorage holds the actual values for class variables, keyed by
// the declaring *Class. Reconciliation moves a class's entry across to
// the replacement class's pointer when a reload preserves the variable's
// name (see reload's reconcile.go).
var classVarStorage = make(map[*Class]map[string]Value)
var classVarMu sync.RWMutex

// HasClassVar returns true if this class or a superclass declares name.
func (c *Class) HasClassVar(name string) bool {
	return c.findClassVarOwner(name) != nil
}

func (c *Class) findClassVarOwner(name string) *Class {
	for current := c; current != nil; current = current.Superclass {
		for _, cv := range current.ClassVars {
			if cv == name {
				return current
			}
		}
	}
	return nil
}

// GetClassVar returns the value of a class variable, walking up the
// hierarchy to find the declaring class.
func (c *Class) GetClassVar(name string) Value {
	owner := c.findClassVarOwner(name)
	if owner == nil {
		return Nil
	}
	classVarMu.RLock()
	defer classVarMu.RUnlock()
	if values, ok := classVarStorage[owner]; ok {
		if val, ok := values[name]; ok {
			return val
		}
	}
	return Nil
}

// SetClassVar sets the value of a class variable, walking up the
// hierarchy to find the declaring class.
func (c *Class) SetClassVar(name string, value Value) {
	owner := c.findClassVarOwner(name)
	if owner == nil {
		owner = c
	}
	classVarMu.Lock()
	defer classVarMu.Unlock()
	if classVarStorage[owner] == nil {
		classVarStorage[owner] = make(map[string]Value)
	}
	classVarStorage[owner][name] = value
}

// TransferClassVars moves from's class-variable storage bucket onto to.
// Called by reconcile.go when a static field survives a reload under a
// new Class pointer but the same declared name.
func TransferClassVars(from, to *Class) {
	classVarMu.Lock()
	defer classVarMu.Unlock()
	if values, ok := classVarStorage[from]; ok {
		classVarStorage[to] = values
		delete(classVarStorage, from)
	}
}

// ClassVarIndex returns the index of a class variable by name, or -1.
func (c *Class) ClassVarIndex(name string) int {
	for current := c; current != nil; current = current.Superclass {
		for i, n := range current.ClassVars {
			if n == name {
				return i
			}
		}
	}
	return -1
}

// AllClassVarNames returns all class variable names including inherited
// ones, with subclass declarations shadowing superclass ones of the same
// name.
func (c *Class) AllClassVarNames() []string {
	if c.Superclass == nil {
		return c.ClassVars
	}
	inherited := c.Superclass.AllClassVarNames()
	seen := make(map[string]bool, len(inherited))
	for _, name := range inherited {
		seen[name] = true
	}
	result := make([]string, len(inherited))
	copy(result, inherited)
	for _, name := range c.ClassVars {
		if !seen[name] {
			result = append(result, name)
		}
	}
	return result
}

// NewInstance creates a new instance of this class.
func (c *Class) NewInstance() *Object {
	if c.allocationStubDisabled {
		panic("Class.NewInstance: allocation stub disabled for " + c.FullName())
	}
	return NewObject(c.cid, c.NumSlots)
}

// NewInstanceWithSlots creates a new instance with initial slot values.
func (c *Class) NewInstanceWithSlots(slots []Value) *Object {
	if c.allocationStubDisabled {
		panic("Class.NewInstanceWithSlots: allocation stub disabled for " + c.FullName())
	}
	return NewObjectWithSlots(c.cid, slots)
}

// DisableAllocationStub retires c from allocation. Called on every class
// a reload's class-table swap replaces: the replacement now owns the cid
// and must be the only thing instantiated at it going forward.
func (c *Class) DisableAllocationStub() { c.allocationStubDisabled = true }

// AllocationDisabled reports whether DisableAllocationStub has been
// called on c.
func (c *Class) AllocationDisabled() bool { return c.allocationStubDisabled }

// ---------------------------------------------------------------------------
// Method registration on Class
// ---------------------------------------------------------------------------

// AddMethod registers a method on this class under name, interning the
// selector in selectors.
func (c *Class) AddMethod(selectors *SelectorTable, name string, method Method) {
	selectorID := selectors.Intern(name)
	c.VTable.AddMethod(selectorID, method)
}

func (c *Class) AddMethod0(selectors *SelectorTable, name string, fn Method0Func) {
	c.AddMethod(selectors, name, NewMethod0(name, fn))
}

func (c *Class) AddMethod1(selectors *SelectorTable, name string, fn Method1Func) {
	c.AddMethod(selectors, name, NewMethod1(name, fn))
}

func (c *Class) AddMethod2(selectors *SelectorTable, name string, fn Method2Func) {
	c.AddMethod(selectors, name, NewMethod2(name, fn))
}

func (c *Class) AddMethod3(selectors *SelectorTable, name string, fn Method3Func) {
	c.AddMethod(selectors, name, NewMethod3(name, fn))
}

func (c *Class) AddMethod4(selectors *SelectorTable, name string, fn Method4Func) {
	c.AddMethod(selectors, name, NewMethod4(name, fn))
}

func (c *Class) AddMethod8(selectors *SelectorTable, name string, fn Method8Func) {
	c.AddMethod(selectors, name, NewMethod8(name, fn))
}

func (c *Class) AddPrimitiveMethod(selectors *SelectorTable, name string, fn PrimitiveFunc) {
	c.AddMethod(selectors, name, NewPrimitiveMethod(name, fn))
}

// SetFunction registers fn as one of this class's own methods: by name in
// Functions, where reload's reconciliation and invalidation passes walk
// it, and by selector ID in VTable (or ClassVTable, for a class-side
// function) for actual dispatch. Function implements Method by
// forwarding to its own Code, so the VTable slot never has to be revised
// when reload swaps that Code out later; a lookup through VTable always
// observes the function's current entry point.
func (c *Class) SetFunction(selectors *SelectorTable, fn *Function) {
	c.Functions[fn.Name] = fn
	selectorID := selectors.Intern(fn.Selector)
	if fn.IsClassSide {
		c.ClassVTable.AddMethod(selectorID, fn)
	} else {
		c.VTable.AddMethod(selectorID, fn)
	}
}

// LookupMethod looks up a method by selector name.
func (c *Class) LookupMethod(selectors *SelectorTable, name string) Method {
	selectorID := selectors.Lookup(name)
	if selectorID < 0 {
		return nil
	}
	return c.VTable.Lookup(selectorID)
}

// HasMethod returns true if this class (not superclasses) defines a
// method named name.
func (c *Class) HasMethod(selectors *SelectorTable, name string) bool {
	selectorID := selectors.Lookup(name)
	if selectorID < 0 {
		return false
	}
	return c.VTable.HasMethod(selectorID)
}

// AddClassMethod registers a class-side method under name.
func (c *Class) AddClassMethod(selectors *SelectorTable, name string, method Method) {
	selectorID := selectors.Intern(name)
	c.ClassVTable.AddMethod(selectorID, method)
}

func (c *Class) AddClassMethod0(selectors *SelectorTable, name string, fn Method0Func) {
	c.AddClassMethod(selectors, name, NewMethod0(name, fn))
}

func (c *Class) AddClassMethod1(selectors *SelectorTable, name string, fn Method1Func) {
	c.AddClassMethod(selectors, name, NewMethod1(name, fn))
}

func (c *Class) AddClassMethod2(selectors *SelectorTable, name string, fn Method2Func) {
	c.AddClassMethod(selectors, name, NewMethod2(name, fn))
}

// LookupClassMethod looks up a class-side method by selector name.
func (c *Class) LookupClassMethod(selectors *SelectorTable, name string) Method {
	selectorID := selectors.Lookup(name)
	if selectorID < 0 {
		return nil
	}
	return c.ClassVTable.Lookup(selectorID)
}

// ---------------------------------------------------------------------------
// ClassTable: cid-indexed and name-indexed class registry
// ---------------------------------------------------------------------------

// ClassTable is the isolate's class registry. It supports both name-based
// lookup (for the loader and for the reload engine's SameClass identity
// check) and cid-indexed access (for Object dispatch and for the class
// table swap that a reload commit performs).
type ClassTable struct {
	mu      sync.RWMutex
	byName  map[string]*Class
	classes []*Class // index i holds the class currently occupying cid i, or nil
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		byName:  make(map[string]*Class),
		classes: make([]*Class, 0, 64),
	}
}

// Register adds a class to the table, assigning it a fresh cid if it does
// not already have one. Returns the previous class registered under the
// same name, or nil.
func (ct *ClassTable) Register(c *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if c.cid < 0 {
		c.cid = int32(len(ct.classes))
		ct.classes = append(ct.classes, c)
	} else if int(c.cid) < len(ct.classes) {
		ct.classes[c.cid] = c
	} else {
		for int32(len(ct.classes)) < c.cid {
			ct.classes = append(ct.classes, nil)
		}
		ct.classes = append(ct.classes, c)
	}

	key := ct.classKey(c)
	old := ct.byName[key]
	ct.byName[key] = c
	return old
}

// Lookup finds a class by name.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.byName[name]
}

// LookupInNamespace finds a class by name and namespace.
func (ct *ClassTable) LookupInNamespace(namespace, name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	key := name
	if namespace != "" {
		key = namespace + "::" + name
	}
	return ct.byName[key]
}

// Has returns true if a class with this name is registered.
func (ct *ClassTable) Has(name string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.byName[name]
	return ok
}

// All returns all registered classes, in cid order, skipping freed slots.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	result := make([]*Class, 0, len(ct.classes))
	for _, c := range ct.classes {
		if c != nil {
			result = append(result, c)
		}
	}
	return result
}

// Len returns the number of entries in the name index: classes registered
// under the same name key count once.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.byName)
}

// At returns the class currently occupying cid, or nil if the cid is
// unassigned, freed, or out of range.
func (ct *ClassTable) At(cid int32) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	if cid < 0 || int(cid) >= len(ct.classes) {
		return nil
	}
	return ct.classes[cid]
}

// HasValidAt reports whether cid currently names a live class.
func (ct *ClassTable) HasValidAt(cid int32) bool {
	return ct.At(cid) != nil
}

// NumCids returns the number of cid slots ever allocated, including freed
// ones. This is the length a heap visitor should treat as the valid cid
// range.
func (ct *ClassTable) NumCids() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}

// Replace swaps the class table's slot at cid to point at replacement,
// re-tagging replacement with cid and updating the name index. It returns
// the class that previously occupied the slot. This is the operation that
// makes every existing heap object answer as an instance of replacement
// without the heap being touched: replacement.cid == cid, and every
// existing Object header already stores cid.
func (ct *ClassTable) Replace(cid int32, replacement *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	var old *Class
	if int(cid) < len(ct.classes) {
		old = ct.classes[cid]
	}
	replacement.cid = cid
	for int32(len(ct.classes)) <= cid {
		ct.classes = append(ct.classes, nil)
	}
	ct.classes[cid] = replacement

	if old != nil {
		delete(ct.byName, ct.classKey(old))
	}
	ct.byName[ct.classKey(replacement)] = replacement
	return old
}

// Move relocates the class occupying fromCid onto toCid, retagging it and
// freeing fromCid. Used by reload/classtable.go's post-commit compaction
// pass to squeeze out cids left empty when a replacement class adopts its
// predecessor's cid.
func (ct *ClassTable) Move(fromCid, toCid int32) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if int(fromCid) >= len(ct.classes) || ct.classes[fromCid] == nil {
		return
	}
	c := ct.classes[fromCid]
	c.cid = toCid
	for int32(len(ct.classes)) <= toCid {
		ct.classes = append(ct.classes, nil)
	}
	ct.classes[toCid] = c
	ct.classes[fromCid] = nil
}

// DropAbove truncates the table so no cid greater than or equal to
// boundary remains addressable. Used once compaction has moved every
// still-live class below boundary.
func (ct *ClassTable) DropAbove(boundary int32) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if int(boundary) < len(ct.classes) {
		ct.classes = ct.classes[:boundary]
	}
}

// ClearAt frees the class-table slot at cid without touching the name
// index. Used by reload's class-table swap to vacate the cid a
// replacement class occupied before Replace retagged it onto the cid of
// the class it is replacing.
func (ct *ClassTable) ClearAt(cid int32) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if cid >= 0 && int(cid) < len(ct.classes) {
		ct.classes[cid] = nil
	}
}

// Snapshot returns a shallow copy of the cid-indexed slice, suitable for
// reload's Checkpoint to stash away and Rollback to restore verbatim.
func (ct *ClassTable) Snapshot() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return append([]*Class(nil), ct.classes...)
}

// Restore replaces the table's cid-indexed slice and name index from a
// prior Snapshot, undoing any Replace/Move/DropAbove/ClearAt performed
// since. Used by reload's Rollback to put a failed reload's isolate back
// exactly as Start found it.
func (ct *ClassTable) Restore(classes []*Class) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.classes = append([]*Class(nil), classes...)
	ct.byName = make(map[string]*Class, len(ct.classes))
	for _, c := range ct.classes {
		if c != nil {
			ct.byName[ct.classKey(c)] = c
		}
	}
}

// classKey generates the name-index lookup key for a class.
func (ct *ClassTable) classKey(c *Class) string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "::" + c.Name
}

// ---------------------------------------------------------------------------
// Class creation helpers
// ---------------------------------------------------------------------------

// NewClass creates a new class with the given name and superclass. The
// VTable and ClassVTable are created and linked to the superclass's. The
// class has no cid until it is Register-ed.
func NewClass(name string, superclass *Class) *Class {
	var parentVT *VTable
	var parentClassVT *VTable
	var numSlots int
	if superclass != nil {
		parentVT = superclass.VTable
		parentClassVT = superclass.ClassVTable
		numSlots = superclass.NumSlots
	}

	c := &Class{
		cid:                -1,
		Name:               name,
		Superclass:         superclass,
		NumSlots:           numSlots,
		Functions:          make(map[string]*Function),
		Fields:             make(map[string]*Field),
		CanonicalConstants: make(map[string]Value),
	}
	c.VTable = NewVTable(c, parentVT)
	c.ClassVTable = NewVTable(c, parentClassVT)
	return c
}

// NewClassWithInstVars creates a new class with instance variables.
func NewClassWithInstVars(name string, superclass *Class, instVars []string) *Class {
	c := NewClass(name, superclass)
	c.InstVars = instVars
	c.NumSlots += len(instVars)
	return c
}

// NewClassInNamespace creates a new class in a specific namespace.
func NewClassInNamespace(namespace, name string, superclass *Class) *Class {
	c := NewClass(name, superclass)
	c.Namespace = namespace
	return c
}

// ---------------------------------------------------------------------------
// Naming and hierarchy helpers
// ---------------------------------------------------------------------------

// FullName returns the fully qualified class name (namespace::name or
// just name).
func (c *Class) FullName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "::" + c.Name
}

// String implements fmt.Stringer.
func (c *Class) String() string { return c.FullName() }

// Superclasses returns all superclasses from immediate parent to root.
func (c *Class) Superclasses() []*Class {
	var result []*Class
	for current := c.Superclass; current != nil; current = current.Superclass {
		result = append(result, current)
	}
	return result
}

// Depth returns the inheritance depth (0 for a root class).
func (c *Class) Depth() int {
	depth := 0
	for current := c.Superclass; current != nil; current = current.Superclass {
		depth++
	}
	return depth
}
