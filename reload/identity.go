package reload

import "github.com/chazu/isoreload/vm"

// SameClass reports whether before and after should be treated as "the
// same class" across a reload: identical name and identical defining
// script. Two classes with different Go pointers can be the same class
// this way (the loader always produces a fresh *vm.Class for the
// after-image); two classes at the same cid are never automatically the
// same class by that fact alone, since cids get reassigned by
// compaction.
func SameClass(before, after *vm.Class) bool {
	if before == nil || after == nil {
		return before == after
	}
	return before.FullName() == after.FullName() && before.Script == after.Script
}

// SameLibrary reports whether before and after are the same compilation
// unit across a reload: same URL. A library's Go pointer never survives
// a reload (the loader always constructs a fresh *vm.Library for the
// after-image, even one that changed not at all), so URL is the only
// stable identity a reload has to go on.
func SameLibrary(before, after *vm.Library) bool {
	if before == nil || after == nil {
		return before == after
	}
	return before.URL == after.URL
}

// SameField reports whether before and after describe the same static
// field declaration across a reload: this is exactly vm.Field's own
// SameDeclaration, exposed here so the reload package's mapping and
// reconciliation code has one identity predicate per entity to call,
// matching the shape of SameClass and SameLibrary.
func SameField(before, after *vm.Field) bool {
	if before == nil || after == nil {
		return before == after
	}
	return before.SameDeclaration(after)
}

// classIdentityKey derives the map key BuildClassMap uses to pair a
// before-image class with its after-image counterpart. Kept as a single
// function so the key format used for matching stays in lockstep with
// SameClass's own comparison.
func classIdentityKey(c *vm.Class) string {
	return c.Script + "\x00" + c.FullName()
}
