package reload

import (
	"testing"

	"github.com/chazu/isoreload/vm"
)

type stubHooks struct {
	calls int
}

func (h *stubHooks) EnsureHasCompiledUnoptimized(fn *vm.Function) vm.Method {
	h.calls++
	return vm.NewMethod0(fn.Name, func(iso *vm.Isolate, receiver vm.Value) vm.Value {
		return vm.FromSmallInt(99)
	})
}

func TestInvalidateCodeLeavesCleanLiveFunctionCodeAlone(t *testing.T) {
	iso := vm.NewIsolate()
	lib := vm.NewLibrary("app:main", 0)
	lib.IsClean = true
	iso.Libraries.Add(lib)

	class := vm.NewClass("Point", nil)
	class.Script = "app:main"
	iso.Classes.Register(class)
	code := vm.NewMethod0("dist", func(iso *vm.Isolate, receiver vm.Value) vm.Value {
		return vm.FromSmallInt(1)
	})
	fn := vm.NewFunction(class, "dist", "dist", code)
	fn.UsageCount = 5
	ic := fn.AddICSite("dist")
	ic.Update(3, nil)
	class.Functions["dist"] = fn

	InvalidateCode(iso, nil, &stubHooks{}, isolateStackWalker{})

	if fn.Code != vm.Method(code) {
		t.Error("a live function owned by a clean library must keep its Code pointer")
	}
	if fn.UsageCount != 0 {
		t.Error("InvalidateCode should reset usage counters on live functions")
	}
	if ic.HitRate() != 0 {
		t.Error("InvalidateCode should reset inline-cache state on live functions")
	}
}

func TestInvalidateCodeStubsLiveDirtyFunctions(t *testing.T) {
	iso := vm.NewIsolate()
	lib := vm.NewLibrary("app:main", 0)
	iso.Libraries.Add(lib)

	class := vm.NewClass("Point", nil)
	class.Script = "app:main"
	iso.Classes.Register(class)
	fn := vm.NewFunction(class, "dist", "dist", vm.NewMethod0("dist", func(iso *vm.Isolate, receiver vm.Value) vm.Value {
		return vm.FromSmallInt(1)
	}))
	fn.IsOptimized = true
	fn.ICSites = append(fn.ICSites, vm.NewICData("dist"))
	class.Functions["dist"] = fn

	InvalidateCode(iso, nil, &stubHooks{}, isolateStackWalker{})

	if fn.ICSites != nil {
		t.Error("a live function owned by a dirty library should lose its inline-cache sites entirely")
	}
	if fn.IsOptimized {
		t.Error("a function stubbed by invalidation is no longer optimized")
	}
	if _, isStub := fn.Code.(*lazyCompileStub); !isStub {
		t.Error("a live function owned by a dirty library should have its Code switched to the lazy stub")
	}
}

func TestInvalidateCodeStubsRetiredDirtyFunctions(t *testing.T) {
	iso := vm.NewIsolate()
	lib := vm.NewLibrary("app:main", 0)
	iso.Libraries.Add(lib)

	retired := vm.NewClass("Point", nil)
	retired.Script = "app:main"
	patch := vm.NewPatchClass("Point", retired)
	fn := vm.NewFunction(patch, "dist", "dist", vm.NewMethod0("dist", func(iso *vm.Isolate, receiver vm.Value) vm.Value {
		return vm.FromSmallInt(1)
	}))
	fn.ICSites = append(fn.ICSites, vm.NewICData("dist"))
	patch.Functions["dist"] = fn

	hooks := &stubHooks{}
	InvalidateCode(iso, []*vm.PatchClass{patch}, hooks, isolateStackWalker{})

	if fn.ICSites != nil {
		t.Error("a retired dirty function should lose its inline-cache sites entirely")
	}

	result := fn.Code.Invoke(iso, vm.Nil, nil)
	if result.SmallInt() != 99 {
		t.Error("invoking the lazy stub should defer to CompilerHooks")
	}
	if hooks.calls != 1 {
		t.Errorf("hooks.calls = %d, want 1", hooks.calls)
	}
	if _, stillStub := fn.Code.(*lazyCompileStub); stillStub {
		t.Error("fn.Code should have been replaced with the recompiled method after invocation")
	}
}

func TestInvalidateCodeKeepsRetiredCleanFunctionsCode(t *testing.T) {
	iso := vm.NewIsolate()
	lib := vm.NewLibrary("app:main", 0)
	lib.IsClean = true
	iso.Libraries.Add(lib)

	retired := vm.NewClass("Point", nil)
	retired.Script = "app:main"
	patch := vm.NewPatchClass("Point", retired)
	code := vm.NewMethod0("dist", func(iso *vm.Isolate, receiver vm.Value) vm.Value {
		return vm.FromSmallInt(1)
	})
	fn := vm.NewFunction(patch, "dist", "dist", code)
	patch.Functions["dist"] = fn

	InvalidateCode(iso, []*vm.PatchClass{patch}, &stubHooks{}, isolateStackWalker{})

	if fn.Code != vm.Method(code) {
		t.Error("a retired function owned by a clean library should keep its Code")
	}
}

func TestInvalidateCodeResetsMegamorphicCache(t *testing.T) {
	iso := vm.NewIsolate()
	code := vm.NewMethod0("dist", func(iso *vm.Isolate, receiver vm.Value) vm.Value {
		return vm.FromSmallInt(1)
	})
	iso.Megamorphic.Update(1, "dist", code)

	InvalidateCode(iso, nil, &stubHooks{}, isolateStackWalker{})

	if iso.Megamorphic.Lookup(1, "dist") != nil {
		t.Error("InvalidateCode should reset the megamorphic cache wholesale")
	}
}
