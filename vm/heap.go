package vm

import "sync"

// Heap tracks every live Object allocated in the isolate, in allocation
// order, plus any additional root pointers registered by the embedder
// (globals, saved stack slots).
//
// This project has no garbage collector: Heap exists so reload's Become
// can visit every object and every root pointer without one. Allocation
// and Become both register with the same registry, so the sweep after a
// become always sees every live object.
type Heap struct {
	mu      sync.Mutex
	objects []*Object
	roots   []*Value
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

// Register records obj as live. Called by Isolate.AllocateObject; tests
// that build objects directly with vm.NewObject must call this
// themselves if they want the object to participate in a become sweep.
func (h *Heap) Register(obj *Object) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.objects = append(h.objects, obj)
}

// AddRoot registers an additional root pointer: a Value slot outside the
// heap (a global variable cell, a saved stack slot) that must also be
// swept for corpse references during a become.
func (h *Heap) AddRoot(v *Value) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roots = append(h.roots, v)
}

// VisitAllObjects calls fn once for every object ever registered,
// including forwarding corpses (a corpse still needs to be skipped
// explicitly by callers that only want live objects).
func (h *Heap) VisitAllObjects(fn func(*Object)) {
	h.mu.Lock()
	objs := make([]*Object, len(h.objects))
	copy(objs, h.objects)
	h.mu.Unlock()

	for _, o := range objs {
		fn(o)
	}
}

// VisitAllRootPointers calls fn once for every registered root pointer.
func (h *Heap) VisitAllRootPointers(fn func(*Value)) {
	h.mu.Lock()
	roots := make([]*Value, len(h.roots))
	copy(roots, h.roots)
	h.mu.Unlock()

	for _, r := range roots {
		fn(r)
	}
}

// Len returns the number of objects ever registered (including corpses).
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}
