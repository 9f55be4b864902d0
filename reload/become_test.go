package reload

import (
	"testing"

	"github.com/chazu/isoreload/vm"
)

func newTestIsolate() *vm.Isolate {
	return vm.NewIsolate()
}

func TestBecomeRedirectsSlotReferences(t *testing.T) {
	iso := newTestIsolate()
	class := vm.NewClass("Point", nil)
	iso.Classes.Register(class)

	before := class.NewInstance()
	after := class.NewInstance()
	holder := vm.NewObjectWithSlots(class.ClassID(), []vm.Value{before.ToValue()})
	iso.Heap.Register(before)
	iso.Heap.Register(after)
	iso.Heap.Register(holder)

	err := Become(iso, []BecomeTarget{{Before: before.ToValue(), After: after.ToValue()}})
	if err != nil {
		t.Fatalf("Become returned an error: %v", err)
	}

	if vm.ObjectFromValue(holder.GetSlot(0)) != after {
		t.Error("Become should redirect a slot referencing the forwarded object")
	}
	if !before.IsForwarded() {
		t.Error("the before object should become a forwarding corpse")
	}
}

func TestBecomeRedirectsRoots(t *testing.T) {
	iso := newTestIsolate()
	class := vm.NewClass("Point", nil)
	iso.Classes.Register(class)

	before := class.NewInstance()
	after := class.NewInstance()
	iso.Heap.Register(before)
	iso.Heap.Register(after)

	root := before.ToValue()
	iso.Heap.AddRoot(&root)

	if err := Become(iso, []BecomeTarget{{Before: before.ToValue(), After: after.ToValue()}}); err != nil {
		t.Fatalf("Become returned an error: %v", err)
	}

	if vm.ObjectFromValue(root) != after {
		t.Error("Become should redirect a root pointer referencing the forwarded object")
	}
}

func TestBecomeEmptyPairsIsNoop(t *testing.T) {
	iso := newTestIsolate()
	if err := Become(iso, nil); err != nil {
		t.Errorf("Become with no pairs should return nil, got %v", err)
	}
}

func TestBecomeSelfForwardPanics(t *testing.T) {
	iso := newTestIsolate()
	class := vm.NewClass("Point", nil)
	iso.Classes.Register(class)
	obj := class.NewInstance()
	iso.Heap.Register(obj)

	defer func() {
		if recover() == nil {
			t.Error("expected a panic forwarding an object to itself")
		}
	}()
	Become(iso, []BecomeTarget{{Before: obj.ToValue(), After: obj.ToValue()}})
}

func TestBecomeImmediateSourcePanics(t *testing.T) {
	iso := newTestIsolate()
	class := vm.NewClass("Point", nil)
	iso.Classes.Register(class)
	after := class.NewInstance()
	iso.Heap.Register(after)

	defer func() {
		if recover() == nil {
			t.Error("expected a panic forwarding from an immediate value")
		}
	}()
	Become(iso, []BecomeTarget{{Before: vm.FromSmallInt(1), After: after.ToValue()}})
}

func TestBecomeRejectsChainedForward(t *testing.T) {
	iso := newTestIsolate()
	class := vm.NewClass("Point", nil)
	iso.Classes.Register(class)

	a := class.NewInstance()
	b := class.NewInstance()
	c := class.NewInstance()
	iso.Heap.Register(a)
	iso.Heap.Register(b)
	iso.Heap.Register(c)

	// b becomes c, then a attempts to become b: b is already a forwarder,
	// and no indirect chains of forwarding are allowed.
	if err := Become(iso, []BecomeTarget{{Before: b.ToValue(), After: c.ToValue()}}); err != nil {
		t.Fatalf("first Become returned an error: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected a panic forwarding to an already-forwarded object")
		}
	}()
	Become(iso, []BecomeTarget{{Before: a.ToValue(), After: b.ToValue()}})
}

func TestBecomeDuplicateSourcePanics(t *testing.T) {
	iso := newTestIsolate()
	class := vm.NewClass("Point", nil)
	iso.Classes.Register(class)

	a := class.NewInstance()
	b := class.NewInstance()
	c := class.NewInstance()
	iso.Heap.Register(a)
	iso.Heap.Register(b)
	iso.Heap.Register(c)

	defer func() {
		if recover() == nil {
			t.Error("expected a panic when one object is named as the source of two forward pairs")
		}
	}()
	Become(iso, []BecomeTarget{
		{Before: a.ToValue(), After: b.ToValue()},
		{Before: a.ToValue(), After: c.ToValue()},
	})
}

func TestBecomeAlreadyForwardedSourcePanics(t *testing.T) {
	iso := newTestIsolate()
	class := vm.NewClass("Point", nil)
	iso.Classes.Register(class)

	a := class.NewInstance()
	b := class.NewInstance()
	c := class.NewInstance()
	iso.Heap.Register(a)
	iso.Heap.Register(b)
	iso.Heap.Register(c)

	if err := Become(iso, []BecomeTarget{{Before: a.ToValue(), After: b.ToValue()}}); err != nil {
		t.Fatalf("first Become returned an error: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected a panic re-forwarding an already-forwarded object")
		}
	}()
	Become(iso, []BecomeTarget{{Before: a.ToValue(), After: c.ToValue()}})
}
