package reload

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/semaphore"

	"github.com/chazu/isoreload/vm"
)

// State names a position in the reload controller's state machine.
type State int

const (
	Idle State = iota
	Checkpointed
	Validating
	Committing
	RollingBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checkpointed:
		return "checkpointed"
	case Validating:
		return "validating"
	case Committing:
		return "committing"
	case RollingBack:
		return "rolling-back"
	default:
		return "unknown"
	}
}

// Flags is the reload engine's dev-mode configuration, loaded from a TOML
// file the way the rest of this codebase's configuration is: a small
// struct decoded wholesale rather than parsed flag by flag.
type Flags struct {
	// TraceReload emits a diagnostic line per phase transition.
	TraceReload bool `toml:"trace_reload"`

	// IdentityReload asserts that every after-image class matched a
	// before-image class: a reload that introduces or drops classes
	// fails validation outright. Used to check the identity invariant in
	// isolation from shape changes.
	IdentityReload bool `toml:"identity_reload"`

	// ReloadEvery triggers a reload automatically every N stack-overflow
	// checks in dev mode; 0 disables the trigger. See devtrigger.go.
	ReloadEvery int `toml:"reload_every"`

	// ReloadEveryOptimized restricts the ReloadEvery trigger to fire only
	// while at least one optimized frame is on the stack.
	ReloadEveryOptimized bool `toml:"reload_every_optimized"`
}

// DefaultFlags returns a Flags value with every dev-mode trigger
// disabled, suitable when no configuration file is supplied.
func DefaultFlags() *Flags {
	return &Flags{}
}

// LoadFlags decodes Flags from a TOML configuration file.
func LoadFlags(path string) (*Flags, error) {
	flags := DefaultFlags()
	if _, err := toml.DecodeFile(path, flags); err != nil {
		return nil, fmt.Errorf("reload: loading flags from %s: %w", path, err)
	}
	return flags, nil
}

// EventKind distinguishes the two outcomes a reload can report.
type EventKind int

const (
	EventSuccess EventKind = iota
	EventFailure
)

// Event is what the controller hands to its EventSink on every terminal
// transition: exactly one per reload attempt, win or lose.
type Event struct {
	Kind    EventKind
	ID      uuid.UUID
	Message string
	Err     error
}

// EventSink is notified exactly once per reload attempt, on success or
// on error. It is the only externally visible signal a reload produces.
type EventSink interface {
	Emit(Event)
}

// LogEventSink emits reload events as structured log lines through
// commonlog, the logging library the rest of this codebase uses.
type LogEventSink struct {
	logger commonlog.Logger
}

// NewLogEventSink creates an EventSink backed by a commonlog logger named
// "reload".
func NewLogEventSink() *LogEventSink {
	return &LogEventSink{logger: commonlog.GetLogger("reload")}
}

func (s *LogEventSink) Emit(ev Event) {
	switch ev.Kind {
	case EventSuccess:
		s.logger.Infof("reload %s committed: %s", ev.ID, ev.Message)
	default:
		s.logger.Errorf("reload %s failed: %s", ev.ID, ev.Message)
	}
}

// ChannelEventSink publishes reload events onto a channel for a
// supervising goroutine (a CLI watch loop, a test) to consume. Emit never
// blocks: an unread event is dropped rather than stalling the safepoint
// that produced it.
type ChannelEventSink struct {
	Events chan Event
}

// NewChannelEventSink creates a ChannelEventSink with the given buffer
// size.
func NewChannelEventSink(buffer int) *ChannelEventSink {
	return &ChannelEventSink{Events: make(chan Event, buffer)}
}

func (s *ChannelEventSink) Emit(ev Event) {
	select {
	case s.Events <- ev:
	default:
	}
}

// Loader is the external collaborator that, given a root library URL,
// parses and resolves new source text and appends the resulting classes
// and libraries directly into the isolate's live class table and
// libraries list. A Loader failure is reported as-is through the
// returned error; it never mutates the isolate in a way a rollback
// cannot undo, since NewCheckpoint runs before Load.
type Loader interface {
	Load(iso *vm.Isolate, rootLibraryURL string) error
}

// StackWalker deoptimizes every optimized frame currently on the
// isolate's stack, so that a function whose Code pointer is about to
// change never has a stale optimized activation resume into it.
type StackWalker interface {
	Deoptimize(iso *vm.Isolate)
}

// isolateStackWalker is the default StackWalker, driven directly off
// vm.CallStack.
type isolateStackWalker struct{}

func (isolateStackWalker) Deoptimize(iso *vm.Isolate) {
	seen := make(map[*vm.Function]bool)
	for _, frame := range iso.Stack.Frames {
		if frame.Optimized && !seen[frame.Function] {
			iso.Stack.Deoptimize(frame.Function)
			seen[frame.Function] = true
		}
	}
}

// CompilerHooks is the external collaborator that turns a Function back
// into runnable code once its Code pointer has been switched to the lazy
// compile stub. This isolate has no real JIT: DefaultCompilerHooks gives
// callers a typed interface to depend on without a code generator behind
// it. NewController always installs DefaultCompilerHooks, and a
// Controller has no way to use another implementation; InvalidateCode
// itself accepts any CompilerHooks.
type CompilerHooks interface {
	EnsureHasCompiledUnoptimized(fn *vm.Function) vm.Method
}

// DefaultCompilerHooks is a minimal CompilerHooks that reports a
// function as still uncompiled: calling through it panics rather than
// silently returning nil, since dispatching to a function this isolate
// cannot actually run is a caller bug, not a runtime condition to hide.
type DefaultCompilerHooks struct{}

func (DefaultCompilerHooks) EnsureHasCompiledUnoptimized(fn *vm.Function) vm.Method {
	return vm.NewMethod0(fn.Name, func(iso *vm.Isolate, receiver vm.Value) vm.Value {
		panic(fmt.Sprintf("reload: %s has no compiler backend to recompile it with", fn.Name))
	})
}

// Context is the per-reload-attempt state a Controller threads through
// StartReload, FinishReload, and commit/rollback. It is single-use and
// destroyed at the end of either path.
type Context struct {
	RootLibraryURL string
	Checkpoint     *Checkpoint
	ClassMap       *ClassMap
	LibraryMap     *LibraryMap
	Becomes        *BecomeMap
	Err            *ReloadError
}

// Controller orchestrates a reload attempt end to end, serializing
// concurrent StartReload calls with a weight-1 semaphore rather than a
// plain mutex so a caller can use TryAcquire semantics (reload-while-
// reload is a caller error, not something to queue behind).
type Controller struct {
	iso    *vm.Isolate
	flags  *Flags
	loader Loader
	sink   EventSink
	hooks  CompilerHooks
	walker StackWalker
	sem    *semaphore.Weighted

	logger commonlog.Logger
	ctx    *Context
}

// NewController creates a Controller ready to drive reloads of iso.
func NewController(iso *vm.Isolate, flags *Flags, loader Loader, sink EventSink) *Controller {
	if flags == nil {
		flags = DefaultFlags()
	}
	return &Controller{
		iso:    iso,
		flags:  flags,
		loader: loader,
		sink:   sink,
		hooks:  DefaultCompilerHooks{},
		walker: isolateStackWalker{},
		sem:    semaphore.NewWeighted(1),
		logger: commonlog.GetLogger("reload.controller"),
	}
}

// State reports the controller's current position in the state machine.
func (c *Controller) State() State {
	if c.ctx == nil {
		return Idle
	}
	if c.ctx.ClassMap != nil {
		return Validating
	}
	return Checkpointed
}

// StartReload begins a reload attempt: it checkpoints the isolate and
// invokes the loader against rootLibraryURL. A loader failure rolls back
// immediately and the context never survives StartReload; a loader
// success returns a Context ready for FinishReload.
func (c *Controller) StartReload(rootLibraryURL string) (*Context, *ReloadError) {
	if !c.sem.TryAcquire(1) {
		return nil, ErrReloadInProgress()
	}

	c.trace("start reload %s", rootLibraryURL)
	ctx := &Context{
		RootLibraryURL: rootLibraryURL,
		Checkpoint:     NewCheckpoint(c.iso),
	}
	c.ctx = ctx

	if err := c.loader.Load(c.iso, rootLibraryURL); err != nil {
		loaderErr := NewLoaderError(err)
		c.rollback(ctx, loaderErr)
		return nil, loaderErr
	}
	return ctx, nil
}

// FinishReload validates the loader's output and, on success, drives the
// commit sequence through to a successful reload event. On any shape
// failure it rolls back instead and returns the failure.
func (c *Controller) FinishReload(ctx *Context) *ReloadError {
	c.trace("finish reload %s", ctx.RootLibraryURL)

	ctx.LibraryMap = BuildLibraryMap(c.iso, ctx.Checkpoint)
	ctx.ClassMap = BuildClassMap(c.iso, ctx.Checkpoint, ctx.LibraryMap)

	if c.flags.IdentityReload && (len(ctx.ClassMap.New) > 0 || len(ctx.ClassMap.Removed) > 0) {
		err := NewShapeError("identity_reload: after-image introduced or dropped a class")
		c.rollback(ctx, err)
		return err
	}

	if err := ValidatePairs(ctx.ClassMap); err != nil {
		c.rollback(ctx, err)
		return err
	}

	c.commit(ctx)
	return nil
}

// commit runs the ordered commit sub-phases — reconcile static fields
// and canonical constants, swap and compact the class table, rehash
// canonical type arguments, forward every live object reference through
// Become, then invalidate stale code and caches — and emits the single
// success event.
func (c *Controller) commit(ctx *Context) {
	ctx.Becomes = NewBecomeMap()
	for _, pair := range ctx.LibraryMap.Pairs {
		ctx.Becomes.AddLibrary(pair.Old, pair.New)
	}

	patches := ReconcileAll(ctx.ClassMap, ctx.Becomes)
	c.trace("commit: reconciled %d replaced class pairs", len(patches))
	renumber := SwapAndCompact(c.iso, ctx.Checkpoint, ctx.ClassMap, ctx.Becomes)
	RehashCanonicalTypeArguments(c.iso, renumber)
	applyLibraryBits(c.iso, ctx.LibraryMap)
	c.trace("commit: class table swapped, canonical type arguments rehashed")

	if err := Become(c.iso, ctx.Becomes.Pairs()); err != nil {
		// Become only ever returns non-nil by way of an internal abort
		// panic; this branch exists so the signature stays honest about
		// the possibility without pretending it is recoverable here.
		panic(err)
	}
	c.trace("commit: become forwarding done")

	InvalidateCode(c.iso, patches, c.hooks, c.walker)
	c.trace("commit: code and caches invalidated")

	ctx.Checkpoint.Commit(c.iso, ctx.LibraryMap)
	c.sink.Emit(Event{Kind: EventSuccess, ID: uuid.New(), Message: fmt.Sprintf("reloaded %s", ctx.RootLibraryURL)})
	c.destroy()
}

// rollback restores the checkpointed isolate state and emits the single
// failure event for this reload attempt.
func (c *Controller) rollback(ctx *Context, err *ReloadError) {
	c.trace("rollback: %s", err.Error())
	ctx.Checkpoint.Rollback(c.iso)
	ctx.Err = err
	c.sink.Emit(Event{Kind: EventFailure, ID: uuid.New(), Message: err.Error(), Err: err})
	c.destroy()
}

// AbortReload cancels the in-flight reload attempt, if any, rolling back
// to the pre-reload state and reporting reason as the failure.
func (c *Controller) AbortReload(reason string) *ReloadError {
	if c.ctx == nil {
		return NewShapeError("no reload is in progress")
	}
	err := NewShapeError("%s", reason)
	c.rollback(c.ctx, err)
	return err
}

// destroy ends the current reload attempt's lifecycle, releasing the
// semaphore so a subsequent StartReload may proceed.
func (c *Controller) destroy() {
	c.ctx = nil
	c.sem.Release(1)
}

func (c *Controller) trace(format string, args ...interface{}) {
	if c.flags.TraceReload {
		c.logger.Debugf(format, args...)
	}
}
