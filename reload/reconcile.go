package reload

import "github.com/chazu/isoreload/vm"

// ReconcileAll runs the per-class reconciliation steps over every matched
// class pair whose Old and New differ, in cmap.Pairs order, and returns
// one patch class for each such pair so replaced functions keep a route
// back to the script they were declared in. Fields are not moved onto
// the patch class: they stay owned by the old class, which keeps its
// Script.
func ReconcileAll(cmap *ClassMap, becomes *BecomeMap) []*vm.PatchClass {
	patches := make([]*vm.PatchClass, 0, len(cmap.Pairs))
	for _, pair := range cmap.Pairs {
		if pair.Old == pair.New {
			continue
		}
		reconcileEnumCanonicals(pair, becomes)
		reconcileStaticFields(pair, becomes)
		reconcileCanonicalConstants(pair)
		patches = append(patches, reparentToPatchClass(pair))
	}
	return patches
}

// reconcileEnumCanonicals rebinds every enum-value canonical instance the
// old class owned onto the after-image's own canonical instance of the
// same name, then records the identity transfer so Become can redirect
// every live reference to the old instance.
func reconcileEnumCanonicals(pair ClassPair, becomes *BecomeMap) {
	if !pair.Old.IsEnum || !pair.New.IsEnum {
		return
	}
	if pair.Old.FinalizationState != vm.ClassFinalized || pair.New.FinalizationState != vm.ClassFinalized {
		return
	}
	for name, oldValue := range pair.Old.CanonicalConstants {
		newValue, ok := pair.New.CanonicalConstants[name]
		if !ok {
			continue // enum value removed by this reload: nothing to forward onto
		}
		if oldValue.IsImmediate() || newValue.IsImmediate() || oldValue == newValue {
			continue
		}
		becomes.Add(oldValue, newValue)
	}
}

// reconcileStaticFields copies every static field's current value across
// to the after-image field of the same declaration, and moves the
// class-variable storage bucket wholesale so class variables declared
// through the ClassVars mechanism survive under the replacement's
// pointer too.
func reconcileStaticFields(pair ClassPair, becomes *BecomeMap) {
	for name, oldField := range pair.Old.Fields {
		if !oldField.IsStatic {
			continue
		}
		newField, ok := pair.New.Fields[name]
		if !ok || !oldField.SameDeclaration(newField) {
			continue
		}
		newField.StaticValue = oldField.StaticValue
		becomes.AddField(oldField, newField)
	}
	vm.TransferClassVars(pair.Old, pair.New)
}

// reconcileCanonicalConstants copies every canonical constant the old
// class owned that the after-image did not already reconstruct under the
// same name. Constants that the enum step above already linked via
// Become are left alone: New already holds its own canonical instance
// for those names.
func reconcileCanonicalConstants(pair ClassPair) {
	for name, oldValue := range pair.Old.CanonicalConstants {
		if _, exists := pair.New.CanonicalConstants[name]; !exists {
			pair.New.CanonicalConstants[name] = oldValue
		}
	}
}

// reparentToPatchClass moves every Function the old class owned onto a
// freshly synthesized patch class, so a Function object still reachable
// from a live stack frame or a closure keeps working: FunctionOwner
// still resolves to something naming the original script, even though
// the class it was declared on is no longer reachable from the class
// table. The old class object itself is left in place as a bare
// Name/Script anchor.
func reparentToPatchClass(pair ClassPair) *vm.PatchClass {
	patch := vm.NewPatchClass(pair.Old.FullName(), pair.Old)
	for name, fn := range pair.Old.Functions {
		fn.Owner = patch
		patch.Functions[name] = fn
	}
	pair.Old.Functions = make(map[string]*vm.Function)
	return patch
}
