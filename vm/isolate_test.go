package vm

import "testing"

func TestNewIsolateDefaults(t *testing.T) {
	iso := NewIsolate()
	if !iso.BackgroundCompilerEnabled {
		t.Error("a fresh isolate should start with background compilation enabled")
	}
	if iso.Classes.NumCids() != 0 {
		t.Error("a fresh isolate should have no classes")
	}
}

func TestAllocateObjectRegistersWithHeap(t *testing.T) {
	iso := NewIsolate()
	c := NewClass("Point", nil)
	iso.Classes.Register(c)

	obj := iso.AllocateObject(c.ClassID(), 2)
	if iso.Heap.Len() != 1 {
		t.Fatalf("Heap.Len() = %d, want 1", iso.Heap.Len())
	}
	if obj.ClassID() != c.ClassID() {
		t.Error("allocated object should carry the requested cid")
	}
}

func TestClassNamed(t *testing.T) {
	iso := NewIsolate()
	c := NewClass("Point", nil)
	iso.Classes.Register(c)

	if iso.ClassNamed("Point") != c {
		t.Error("ClassNamed should delegate to Classes.Lookup")
	}
	if iso.ClassNamed("Missing") != nil {
		t.Error("ClassNamed should return nil for an unknown class")
	}
}

func TestClassAsValueIsStable(t *testing.T) {
	iso := NewIsolate()
	c := NewClass("Point", nil)
	iso.Classes.Register(c)

	v1 := iso.ClassAsValue(c)
	v2 := iso.ClassAsValue(c)
	if v1 != v2 {
		t.Error("ClassAsValue should return the same boxed value on repeat calls")
	}
	if !v1.IsObject() {
		t.Error("a class box should be a heap object value")
	}
}

func TestForwardClassBoxUnboxedReportsFalse(t *testing.T) {
	iso := NewIsolate()
	old := NewClass("Point", nil)
	replacement := NewClass("Point", nil)
	iso.Classes.Register(old)

	_, _, ok := iso.ForwardClassBox(old, replacement)
	if ok {
		t.Error("ForwardClassBox should report false when old was never boxed")
	}
}

func TestForwardClassBoxCarriesIdentity(t *testing.T) {
	iso := NewIsolate()
	old := NewClass("Point", nil)
	replacement := NewClass("Point", nil)
	iso.Classes.Register(old)

	before := iso.ClassAsValue(old)
	beforeVal, afterVal, ok := iso.ForwardClassBox(old, replacement)
	if !ok {
		t.Fatal("ForwardClassBox should report true once old has been boxed")
	}
	if beforeVal != before {
		t.Error("ForwardClassBox should return old's existing box as before")
	}
	if afterVal == before {
		t.Error("ForwardClassBox should mint a distinct box for the replacement")
	}
	if _, exists := iso.ClassBoxes[old]; exists {
		t.Error("ForwardClassBox should forget old's box once forwarded")
	}
}
