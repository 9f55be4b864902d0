package reload

import "github.com/chazu/isoreload/vm"

// DevTrigger implements the reload_every dev-mode flag: fire a reload
// automatically once every N stack-overflow checks, optionally
// restricted to moments when at least one optimized frame is executing.
// A real embedder wires Tick into whatever periodic safepoint-adjacent
// check it already performs (this isolate's nearest analogue is a
// request boundary on the SafepointWorker); Tick itself never blocks or
// runs a reload synchronously, it only reports when one is due.
type DevTrigger struct {
	every     int
	optimized bool
	count     int
}

// NewDevTrigger creates a DevTrigger from the given flags. A trigger
// built from a Flags with ReloadEvery == 0 never fires.
func NewDevTrigger(flags *Flags) *DevTrigger {
	return &DevTrigger{every: flags.ReloadEvery, optimized: flags.ReloadEveryOptimized}
}

// Tick advances the trigger's counter by one check and reports whether a
// reload is due. When restricted to optimized code, a tick taken while
// no optimized frame is on the stack does not advance the counter at
// all: reload_every_optimized counts optimized-code checks specifically,
// not every check.
func (t *DevTrigger) Tick(iso *vm.Isolate) bool {
	if t.every <= 0 {
		return false
	}
	if t.optimized && !iso.Stack.HasAnyOptimizedFrame() {
		return false
	}
	t.count++
	if t.count >= t.every {
		t.count = 0
		return true
	}
	return false
}
