package reload

import "github.com/chazu/isoreload/vm"

// BecomeTarget is one forwarding instruction: every live reference to
// Before must be redirected to After once Become returns. Before and
// After are heap Values (object identities), not classes or objects
// directly, so the same mechanism forwards ordinary instances and
// class-box identities (see vm.Isolate.ClassAsValue) alike.
type BecomeTarget struct {
	Before vm.Value
	After  vm.Value
}

// Become performs the one-way forwarding pass at the heart of a reload:
// every object named on the left of a pair is turned into a forwarding
// corpse pointing at the object named on the right, and every reachable
// pointer in the isolate that used to name the left-hand object is
// rewritten to name the right-hand one instead.
//
// Become never runs concurrently with anything else touching the
// isolate: callers run it from inside a SafepointWorker request.
func Become(iso *vm.Isolate, pairs []BecomeTarget) error {
	if len(pairs) == 0 {
		return nil
	}

	// Pairs are validated and forwarded one at a time, in order, rather
	// than validated as a batch and forwarded afterward: a pair naming an
	// After that an earlier pair in this same batch already turned into a
	// forwarder must be rejected too, not just an After forwarded by some
	// earlier Become call.
	corpses := make(map[*vm.Object]vm.Value, len(pairs))
	for _, pair := range pairs {
		if pair.Before == pair.After {
			internalAbortf("become: object is its own forward target")
		}
		if pair.Before.IsImmediate() {
			internalAbortf("become: cannot forward an immediate value")
		}
		if pair.After.IsImmediate() {
			internalAbortf("become: cannot forward to an immediate value")
		}

		before := vm.ObjectFromValue(pair.Before)
		after := vm.ObjectFromValue(pair.After)
		if before.IsForwarded() {
			internalAbortf("become: %v is already a forwarding corpse", pair.Before)
		}
		if after.IsForwarded() {
			internalAbortf("become: %v is already a forwarder, no indirect chains of forwarding", pair.After)
		}
		corpses[before] = pair.After
		before.BecomeForward(after)
	}

	sweep := func(v vm.Value) vm.Value {
		if !v.IsObject() {
			return v
		}
		if target, forwarded := corpses[vm.ObjectFromValue(v)]; forwarded {
			return target
		}
		return v
	}

	iso.Heap.VisitAllObjects(func(obj *vm.Object) {
		obj.VisitMutableSlots(sweep)
	})
	iso.Heap.VisitAllRootPointers(func(root *vm.Value) {
		*root = sweep(*root)
	})

	assertNoForwarderReferenced(iso, corpses)
	return nil
}

// assertNoForwarderReferenced is Become's own debug check: after every
// slot and root has been swept, nothing in the isolate should still hold
// a pointer to one of the objects Become just turned into a corpse. A
// violation here means some root pointer or slot Become should have
// swept was invisible to it, which is a bug in the heap's iteration
// contract, not a bad reload.
func assertNoForwarderReferenced(iso *vm.Isolate, corpses map[*vm.Object]vm.Value) {
	check := func(v vm.Value) {
		if !v.IsObject() {
			return
		}
		if _, isCorpse := corpses[vm.ObjectFromValue(v)]; isCorpse {
			internalAbortf("become: a live reference still targets a forwarding corpse after sweep")
		}
	}
	iso.Heap.VisitAllObjects(func(obj *vm.Object) {
		obj.ForEachSlot(func(_ int, v vm.Value) { check(v) })
	})
	iso.Heap.VisitAllRootPointers(func(root *vm.Value) { check(*root) })
}
