package reload

import "github.com/chazu/isoreload/vm"

// lazyCompileStub is the Method a dirty-owner Function's Code is
// switched to during invalidation. Calling through it asks the
// embedder's compiler hooks to produce fresh code on demand, then
// installs that code and invokes it, so the next call goes straight
// through without the stub in the way.
type lazyCompileStub struct {
	fn    *vm.Function
	hooks CompilerHooks
}

func (s *lazyCompileStub) Invoke(iso *vm.Isolate, receiver vm.Value, args []vm.Value) vm.Value {
	real := s.hooks.EnsureHasCompiledUnoptimized(s.fn)
	s.fn.Code = real
	return real.Invoke(iso, receiver, args)
}

// Name and Arity satisfy vm.NamedMethod and vm.ArityMethod so a trace
// line or debugger built against those interfaces reports the function
// waiting on recompilation by name instead of falling back to
// "<anonymous>".
func (s *lazyCompileStub) Name() string { return s.fn.Name }
func (s *lazyCompileStub) Arity() int   { return -1 }

// InvalidateCode runs the code-world invalidation sweep that follows a
// successful class-table swap: megamorphic caches are dropped wholesale,
// every optimized stack frame is deoptimized, and every Function in the
// isolate — whether still reachable from a live class or retired onto a
// patch class by reconciliation — has its dispatch feedback cleared.
// Only a function owned by a dirty library has its entry point switched
// to the lazy-compilation stub; a function owned by a clean library
// keeps its current Code, optimized or not.
//
// The dirty/clean split governs whether a function's compiled Code is
// actually thrown away or just left in place with fresh cache state: a
// function owned by a dirty library has no still-compilable source
// backing it once this reload lands, so its Code is unconditionally
// replaced by the stub, which asks the compiler hooks for a new
// implementation the first time anything calls through it again. A
// function owned by a clean library was never eligible as a reload
// target and keeps its Code; it only loses cache state, since a cid a
// cache entry names may have shifted meaning under compaction, but the
// code itself was never made stale by the swap the way it would be in a
// system where compiled code embeds direct field offsets — this isolate
// has no such embedding, so a fresh cache miss is enough to recover
// correctness.
func InvalidateCode(iso *vm.Isolate, patches []*vm.PatchClass, hooks CompilerHooks, walker StackWalker) {
	iso.Megamorphic.Reset()
	walker.Deoptimize(iso)

	dirty := dirtyLibrarySet(iso)
	for _, c := range iso.Classes.All() {
		invalidateFunctions(c.Functions, dirty[c.Script], hooks)
	}
	for _, p := range patches {
		invalidateFunctions(p.Functions, dirty[p.Patches.Script], hooks)
	}
}

// dirtyLibrarySet returns the set of library URLs the loader did not
// mark clean: exactly the libraries whose functions must lose their
// compiled code outright rather than just their inline-cache feedback.
func dirtyLibrarySet(iso *vm.Isolate) map[string]bool {
	dirty := make(map[string]bool)
	for _, lib := range iso.Libraries.Dirty() {
		dirty[lib.URL] = true
	}
	return dirty
}

// invalidateFunctions applies the dirty/clean split described on
// InvalidateCode to a single owner's functions, whether that owner is
// still live in the class table or has been retired onto a patch class.
// A dirty owner's functions lose their code outright and switch to the
// lazy-compile stub, which is by definition never an optimized
// specialization, so IsOptimized is cleared along with it. A clean
// owner's functions keep whatever Code and IsOptimized state they had
// and only lose cache and counter state.
func invalidateFunctions(fns map[string]*vm.Function, ownerDirty bool, hooks CompilerHooks) {
	for _, fn := range fns {
		if ownerDirty {
			fn.ICSites = nil
			fn.Code = &lazyCompileStub{fn: fn, hooks: hooks}
			fn.IsOptimized = false
		} else {
			for _, ic := range fn.ICSites {
				ic.Reset()
			}
		}
		fn.UsageCount = 0
		fn.DeoptCount = 0
		fn.EdgeCounters = make(map[int]int64)
	}
}
