package reload

import (
	"testing"

	"github.com/chazu/isoreload/vm"
)

func TestSameClassMatchesByNameAndScript(t *testing.T) {
	before := vm.NewClass("Point", nil)
	before.Script = "app:geometry"
	after := vm.NewClass("Point", nil)
	after.Script = "app:geometry"

	if !SameClass(before, after) {
		t.Error("classes with the same name and script should be the same class")
	}

	other := vm.NewClass("Point", nil)
	other.Script = "app:other"
	if SameClass(before, other) {
		t.Error("classes from different scripts should not be the same class")
	}
}

func TestSameLibraryMatchesByURL(t *testing.T) {
	before := vm.NewLibrary("app:main", 0)
	after := vm.NewLibrary("app:main", 0)
	if !SameLibrary(before, after) {
		t.Error("libraries with the same URL should be the same library")
	}

	other := vm.NewLibrary("app:other", 0)
	if SameLibrary(before, other) {
		t.Error("libraries with different URLs should not match")
	}
}

func TestSameFieldDelegatesToDeclaration(t *testing.T) {
	before := vm.NewField(nil, "total", true)
	after := vm.NewField(nil, "total", true)
	if !SameField(before, after) {
		t.Error("fields with the same name and staticness should match")
	}

	other := vm.NewField(nil, "count", true)
	if SameField(before, other) {
		t.Error("fields with different names should not match")
	}
}

func TestClassIdentityKeyDistinguishesScript(t *testing.T) {
	a := vm.NewClass("Point", nil)
	a.Script = "app:geometry"
	b := vm.NewClass("Point", nil)
	b.Script = "app:other"

	if classIdentityKey(a) == classIdentityKey(b) {
		t.Error("classIdentityKey should incorporate the defining script")
	}
}
