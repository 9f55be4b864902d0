package reload

import (
	"testing"

	"github.com/chazu/isoreload/vm"
)

func TestRehashCanonicalTypeArgumentsRemapsClassIDs(t *testing.T) {
	iso := vm.NewIsolate()
	ta := iso.CanonicalTypes.Canonicalize([]int32{5, 9})

	RehashCanonicalTypeArguments(iso, map[int32]int32{9: 2})

	if ta.ClassIDs[1] != 2 {
		t.Errorf("ClassIDs[1] = %d, want 2 after rehash", ta.ClassIDs[1])
	}
	if ta.ClassIDs[0] != 5 {
		t.Error("rehash should leave an untouched cid alone")
	}
}

func TestRehashCanonicalTypeArgumentsEmptyRenumberIsNoop(t *testing.T) {
	iso := vm.NewIsolate()
	ta := iso.CanonicalTypes.Canonicalize([]int32{5})

	RehashCanonicalTypeArguments(iso, nil)

	if ta.ClassIDs[0] != 5 {
		t.Error("an empty renumber should never touch the table")
	}
}

func TestRehashCanonicalTypeArgumentsCollapsesDuplicates(t *testing.T) {
	iso := vm.NewIsolate()
	iso.CanonicalTypes.Canonicalize([]int32{1, 5})
	iso.CanonicalTypes.Canonicalize([]int32{2, 5})

	RehashCanonicalTypeArguments(iso, map[int32]int32{1: 2})

	if len(iso.CanonicalTypes.All()) != 1 {
		t.Errorf("len(All()) = %d, want 1 once renumbering makes two entries identical", len(iso.CanonicalTypes.All()))
	}
}
