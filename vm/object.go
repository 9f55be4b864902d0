package vm

import "unsafe"

// Object is a heap-allocated instance in the isolate.
//
// Objects use a hybrid slot layout: four inline slots cover the common
// case of small objects (points, associations, ranges) without a slice
// allocation, and an overflow slice covers everything larger.
//
// The header stores a class id (cid), not a pointer to the Class itself.
// Dispatch always resolves cid through the isolate's ClassTable. This is
// what lets a reload swap every existing instance of a class onto the
// replacement definition without walking the heap: replacing the class
// table's entry at a cid is enough, because every live object's header
// still names that same cid (see reload's class-table swap in
// classtable.go).
type Object struct {
	cid int32 // index into the owning isolate's ClassTable

	slot0 Value
	slot1 Value
	slot2 Value
	slot3 Value

	overflow []Value

	// forwardTo is non-nil once this object has been converted into a
	// forwarding corpse by Become. Its own slots are no longer
	// meaningful; every reference to this object must be redirected to
	// forwardTo instead.
	forwardTo *Object
}

// NumInlineSlots is the number of slots stored directly in Object.
const NumInlineSlots = 4

// NewObject creates a new Object of class cid with numSlots slots, all
// initialized to Nil.
func NewObject(cid int32, numSlots int) *Object {
	obj := &Object{cid: cid, slot0: Nil, slot1: Nil, slot2: Nil, slot3: Nil}
	if numSlots > NumInlineSlots {
		obj.overflow = make([]Value, numSlots-NumInlineSlots)
		for i := range obj.overflow {
			obj.overflow[i] = Nil
		}
	}
	return obj
}

// NewObjectWithSlots creates a new Object of class cid and initializes its
// slots from slots.
func NewObjectWithSlots(cid int32, slots []Value) *Object {
	obj := &Object{cid: cid}

	n := len(slots)
	if n > 0 {
		obj.slot0 = slots[0]
	} else {
		obj.slot0 = Nil
	}
	if n > 1 {
		obj.slot1 = slots[1]
	} else {
		obj.slot1 = Nil
	}
	if n > 2 {
		obj.slot2 = slots[2]
	} else {
		obj.slot2 = Nil
	}
	if n > 3 {
		obj.slot3 = slots[3]
	} else {
		obj.slot3 = Nil
	}

	if n > NumInlineSlots {
		obj.overflow = make([]Value, n-NumInlineSlots)
		copy(obj.overflow, slots[NumInlineSlots:])
	}

	return obj
}

// ---------------------------------------------------------------------------
// Class identity
// ---------------------------------------------------------------------------

// ClassID returns the object's class id.
func (obj *Object) ClassID() int32 { return obj.cid }

// SetClassID retags obj with a new class id. Reload of an existing class
// never needs this because the cid itself does not change across a
// reload.
func (obj *Object) SetClassID(cid int32) { obj.cid = cid }

// ---------------------------------------------------------------------------
// Forwarding (become)
// ---------------------------------------------------------------------------

// IsForwarded reports whether Become has converted this object into a
// forwarding corpse.
func (obj *Object) IsForwarded() bool { return obj.forwardTo != nil }

// ForwardTarget returns the object this corpse now stands in for, or nil
// if obj was never forwarded.
func (obj *Object) ForwardTarget() *Object { return obj.forwardTo }

// BecomeForward converts obj in place into a forwarding corpse pointing at
// target. Only reload.Become calls this, and only under a safepoint: the
// object retains its identity (its Go pointer value) but every slot is
// cleared, and every live reference to it must be swept to target instead.
func (obj *Object) BecomeForward(target *Object) {
	obj.forwardTo = target
	obj.slot0, obj.slot1, obj.slot2, obj.slot3 = Nil, Nil, Nil, Nil
	obj.overflow = nil
}

// ---------------------------------------------------------------------------
// Slot access
// ---------------------------------------------------------------------------

// GetSlot returns the value at the given slot index. Panics if index is out
// of range or obj has been forwarded.
func (obj *Object) GetSlot(index int) Value {
	if obj.forwardTo != nil {
		panic("Object.GetSlot: object has been forwarded")
	}
	switch index {
	case 0:
		return obj.slot0
	case 1:
		return obj.slot1
	case 2:
		return obj.slot2
	case 3:
		return obj.slot3
	default:
		overflowIdx := index - NumInlineSlots
		if overflowIdx < 0 || overflowIdx >= len(obj.overflow) {
			panic("Object.GetSlot: index out of range")
		}
		return obj.overflow[overflowIdx]
	}
}

// SetSlot sets the value at the given slot index. Panics if index is out of
// range or obj has been forwarded.
func (obj *Object) SetSlot(index int, value Value) {
	if obj.forwardTo != nil {
		panic("Object.SetSlot: object has been forwarded")
	}
	switch index {
	case 0:
		obj.slot0 = value
	case 1:
		obj.slot1 = value
	case 2:
		obj.slot2 = value
	case 3:
		obj.slot3 = value
	default:
		overflowIdx := index - NumInlineSlots
		if overflowIdx < 0 || overflowIdx >= len(obj.overflow) {
			panic("Object.SetSlot: index out of range")
		}
		obj.overflow[overflowIdx] = value
	}
}

// NumSlots returns the total number of slots in this object.
func (obj *Object) NumSlots() int {
	return NumInlineSlots + len(obj.overflow)
}

// ---------------------------------------------------------------------------
// Value conversion helpers
// ---------------------------------------------------------------------------

// ToValue converts an Object pointer to a NaN-boxed Value.
func (obj *Object) ToValue() Value {
	return FromObjectPtr(unsafe.Pointer(obj))
}

// ObjectFromValue extracts an Object pointer from a NaN-boxed Value.
// Returns nil if the value is not an object.
func ObjectFromValue(v Value) *Object {
	if !v.IsObject() {
		return nil
	}
	return (*Object)(v.ObjectPtr())
}

// MustObjectFromValue extracts an Object pointer from a NaN-boxed Value.
// Panics if the value is not an object.
func MustObjectFromValue(v Value) *Object {
	if !v.IsObject() {
		panic("MustObjectFromValue: not an object")
	}
	return (*Object)(v.ObjectPtr())
}

// ---------------------------------------------------------------------------
// Slot iteration
// ---------------------------------------------------------------------------

// ForEachSlot calls fn for each slot in the object. A no-op on a forwarding
// corpse, since none of its slots are live anymore.
func (obj *Object) ForEachSlot(fn func(index int, value Value)) {
	if obj.forwardTo != nil {
		return
	}
	fn(0, obj.slot0)
	fn(1, obj.slot1)
	fn(2, obj.slot2)
	fn(3, obj.slot3)
	for i, v := range obj.overflow {
		fn(NumInlineSlots+i, v)
	}
}

// VisitMutableSlots calls fn for every slot and overwrites it with fn's
// return value. This is the one place instance state is mutated outside of
// ordinary program execution: the become sweep uses it to redirect any slot
// that points at a corpse onto the corpse's forward target.
func (obj *Object) VisitMutableSlots(fn func(Value) Value) {
	if obj.forwardTo != nil {
		return
	}
	obj.slot0 = fn(obj.slot0)
	obj.slot1 = fn(obj.slot1)
	obj.slot2 = fn(obj.slot2)
	obj.slot3 = fn(obj.slot3)
	for i, v := range obj.overflow {
		obj.overflow[i] = fn(v)
	}
}

// AllSlots returns all slot values as a slice. This allocates; use
// ForEachSlot for allocation-free iteration.
func (obj *Object) AllSlots() []Value {
	slots := make([]Value, obj.NumSlots())
	slots[0] = obj.slot0
	slots[1] = obj.slot1
	slots[2] = obj.slot2
	slots[3] = obj.slot3
	copy(slots[NumInlineSlots:], obj.overflow)
	return slots
}
