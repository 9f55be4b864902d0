package reload

import (
	"errors"
	"testing"

	"github.com/chazu/isoreload/vm"
)

// fakeLoader replaces the pre-existing "Point" class (matched by name and
// script) with a fresh one whose shape rewrite is controlled per test.
type fakeLoader struct {
	rewrite func(iso *vm.Isolate)
	err     error
}

func (f *fakeLoader) Load(iso *vm.Isolate, rootLibraryURL string) error {
	if f.err != nil {
		return f.err
	}
	f.rewrite(iso)
	return nil
}

func bootstrapController(t *testing.T) (*vm.Isolate, *vm.Class) {
	t.Helper()
	iso := vm.NewIsolate()
	lib := vm.NewLibrary("app:main", 0)
	iso.Libraries.Add(lib)
	iso.RootLibrary = lib

	point := vm.NewClassWithInstVars("Point", nil, []string{"x", "y"})
	point.Script = "app:main"
	point.FinalizationState = vm.ClassFinalized
	iso.Classes.Register(point)
	lib.Define("Point", iso.ClassAsValue(point))
	return iso, point
}

func TestControllerSuccessfulReload(t *testing.T) {
	iso, point := bootstrapController(t)
	oldCid := point.ClassID()

	loader := &fakeLoader{rewrite: func(iso *vm.Isolate) {
		lib := vm.NewLibrary("app:main", 0)
		lib.Debuggable = iso.Libraries.ByURL("app:main").Debuggable
		iso.Libraries.Add(lib)

		replacement := vm.NewClassWithInstVars("Point", nil, []string{"x", "y"})
		replacement.Script = "app:main"
		replacement.FinalizationState = vm.ClassFinalized
		iso.Classes.Register(replacement)
		lib.Define("Point", iso.ClassAsValue(replacement))
	}}

	sink := NewChannelEventSink(1)
	controller := NewController(iso, DefaultFlags(), loader, sink)

	ctx, err := controller.StartReload("app:main")
	if err != nil {
		t.Fatalf("StartReload returned an error: %v", err)
	}
	if ferr := controller.FinishReload(ctx); ferr != nil {
		t.Fatalf("FinishReload returned an error: %v", ferr)
	}

	if iso.Classes.At(oldCid).FullName() != "Point" {
		t.Error("the replacement class should occupy the original cid")
	}
	if controller.State() != Idle {
		t.Error("the controller should return to Idle after a successful commit")
	}

	select {
	case ev := <-sink.Events:
		if ev.Kind != EventSuccess {
			t.Errorf("event kind = %v, want EventSuccess", ev.Kind)
		}
	default:
		t.Error("a successful reload should emit exactly one event")
	}
}

func TestControllerLoaderFailureRollsBack(t *testing.T) {
	iso, point := bootstrapController(t)
	loader := &fakeLoader{err: errors.New("parse error")}
	sink := NewChannelEventSink(1)
	controller := NewController(iso, DefaultFlags(), loader, sink)

	_, err := controller.StartReload("app:main")
	if err == nil {
		t.Fatal("StartReload should surface the loader's failure")
	}
	if err.Kind != LoaderErrorKind {
		t.Errorf("Kind = %v, want LoaderErrorKind", err.Kind)
	}
	if iso.Classes.Lookup("Point") != point {
		t.Error("a loader failure should leave the original class in place")
	}
	if controller.State() != Idle {
		t.Error("a failed reload should return the controller to Idle")
	}
}

func TestControllerShapeFailureRollsBack(t *testing.T) {
	iso, point := bootstrapController(t)
	loader := &fakeLoader{rewrite: func(iso *vm.Isolate) {
		replacement := vm.NewClassWithInstVars("Point", nil, []string{"x", "y", "z"})
		replacement.Script = "app:main"
		replacement.FinalizationState = vm.ClassFinalized
		iso.Classes.Register(replacement)
	}}
	sink := NewChannelEventSink(1)
	controller := NewController(iso, DefaultFlags(), loader, sink)

	ctx, err := controller.StartReload("app:main")
	if err != nil {
		t.Fatalf("StartReload returned an error: %v", err)
	}
	ferr := controller.FinishReload(ctx)
	if ferr == nil {
		t.Fatal("FinishReload should reject an incompatible shape change")
	}
	if ferr.Kind != ShapeErrorKind {
		t.Errorf("Kind = %v, want ShapeErrorKind", ferr.Kind)
	}
	if iso.Classes.Lookup("Point") != point {
		t.Error("a shape failure should roll back to the original class")
	}
}

func TestControllerRejectsConcurrentReload(t *testing.T) {
	iso, _ := bootstrapController(t)
	loader := &fakeLoader{rewrite: func(iso *vm.Isolate) {}}
	controller := NewController(iso, DefaultFlags(), loader, NewChannelEventSink(1))

	ctx, err := controller.StartReload("app:main")
	if err != nil {
		t.Fatalf("StartReload returned an error: %v", err)
	}

	if _, err := controller.StartReload("app:main"); err == nil || err.Kind != ReloadInProgressErrorKind {
		t.Error("a second StartReload should be rejected while one is in flight")
	}

	controller.FinishReload(ctx)
}

func TestControllerIdentityReloadRejectsNewClasses(t *testing.T) {
	iso, _ := bootstrapController(t)
	loader := &fakeLoader{rewrite: func(iso *vm.Isolate) {
		extra := vm.NewClass("Extra", nil)
		extra.Script = "app:main"
		iso.Classes.Register(extra)
	}}
	flags := DefaultFlags()
	flags.IdentityReload = true
	controller := NewController(iso, flags, loader, NewChannelEventSink(1))

	ctx, err := controller.StartReload("app:main")
	if err != nil {
		t.Fatalf("StartReload returned an error: %v", err)
	}
	if ferr := controller.FinishReload(ctx); ferr == nil {
		t.Error("identity_reload should reject a reload that introduces a new class")
	}
}
