package vm

// FunctionOwner is implemented by whatever declares a Function: a Class,
// or a PatchClass holding the functions of a class a reload replaced.
type FunctionOwner interface {
	OwnerName() string
}

// OwnerName identifies c as a Function's owner.
func (c *Class) OwnerName() string { return c.FullName() }

// Function is a single method or class method, generalizing
// chazu-maggie's CompiledMethod into something a reload can retarget:
// Code is the only mutable entry point, and reload replaces it wholesale
// rather than patching an existing method body in place.
type Function struct {
	Name     string
	Selector string
	Owner    FunctionOwner

	// Code is the current entry point. AOT-style: a Go closure wrapped as
	// a Method, not bytecode to interpret. Reload swaps this pointer,
	// never edits through it.
	Code Method

	// ICSites holds one ICData per call site the function's body
	// contains. Reload invalidates every entry here when the function's
	// owning library goes dirty.
	ICSites []*ICData

	UsageCount   int64
	DeoptCount   int64
	EdgeCounters map[int]int64

	// IsOptimized marks a function whose Code is a specialized,
	// speculative compilation rather than the baseline implementation.
	// reload_every_optimized only fires the dev-mode trigger while at
	// least one such function is executing.
	IsOptimized bool

	// IsClassSide marks a class-method Function, as distinct from an
	// instance-method Function; both live in Class.Functions.
	IsClassSide bool
}

// Invoke satisfies Method by forwarding to the function's current entry
// point. A VTable slot holding a Function keeps dispatching through
// whatever Code reload has most recently swapped in, since the slot
// itself never has to change when Code does.
func (f *Function) Invoke(iso *Isolate, receiver Value, args []Value) Value {
	return f.Code.Invoke(iso, receiver, args)
}

// NewFunction creates a Function with the given owner, name and selector.
func NewFunction(owner FunctionOwner, name, selector string, code Method) *Function {
	return &Function{
		Name:         name,
		Selector:     selector,
		Owner:        owner,
		Code:         code,
		EdgeCounters: make(map[int]int64),
	}
}

// AddICSite appends a fresh, empty call-site cache to the function and
// returns it.
func (f *Function) AddICSite(selector string) *ICData {
	ic := NewICData(selector)
	f.ICSites = append(f.ICSites, ic)
	return ic
}

// ResetCaches resets every ICData the function owns.
func (f *Function) ResetCaches() {
	for _, ic := range f.ICSites {
		ic.Reset()
	}
}

// PatchClass is an ephemeral holder for the functions of a class that a
// reload replaced, mirroring the role chazu-maggie's own patch mechanism
// plays for hot-swapped methods. Reconciliation moves the old class's
// functions onto it and leaves Patches pointing at the old class, so a
// retired Function's owner still names its original script; the
// replacement class is not touched.
type PatchClass struct {
	Name      string
	Patches   *Class
	Functions map[string]*Function
}

// OwnerName identifies p as a Function's owner.
func (p *PatchClass) OwnerName() string { return "patch:" + p.Name }

// NewPatchClass creates a patch class targeting patches.
func NewPatchClass(name string, patches *Class) *PatchClass {
	return &PatchClass{Name: name, Patches: patches, Functions: make(map[string]*Function)}
}
