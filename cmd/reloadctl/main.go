// Command reloadctl drives a single hot-reload of a running isolate and
// reports the result, the way a compile-and-swap step in an editor or IDE
// integration would.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chazu/isoreload/reload"
	"github.com/chazu/isoreload/vm"
)

const rootLibraryURL = "reloadctl:main"

func main() {
	configPath := flag.String("config", "", "Path to a TOML flags file (trace_reload, identity_reload, reload_every, reload_every_optimized)")
	trace := flag.Bool("trace", false, "Force trace_reload on regardless of -config")
	newResult := flag.Int64("result", 10, "The small integer Program.main should return after reload")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reloadctl [options]\n\n")
		fmt.Fprintf(os.Stderr, "Boots an isolate with a single class whose main() returns 4, calls it,\n")
		fmt.Fprintf(os.Stderr, "reloads main() to return a different value, and calls it again.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  reloadctl                    # default: 4 -> 10\n")
		fmt.Fprintf(os.Stderr, "  reloadctl -result 42 -trace  # 4 -> 42, with phase tracing\n")
	}
	flag.Parse()

	flags := reload.DefaultFlags()
	if *configPath != "" {
		loaded, err := reload.LoadFlags(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		flags = loaded
	}
	if *trace {
		flags.TraceReload = true
	}

	iso := vm.NewIsolate()
	bootstrap(iso)

	result := callMain(iso)
	fmt.Printf("Program.main() = %d\n", result.SmallInt())

	loader := &demoLoader{newResult: *newResult}
	sink := reload.NewLogEventSink()
	controller := reload.NewController(iso, flags, loader, sink)

	ctx, err := controller.StartReload(rootLibraryURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reload failed to start: %v\n", err)
		os.Exit(1)
	}
	if err := controller.FinishReload(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Reload failed: %v\n", err)
		os.Exit(1)
	}

	result = callMain(iso)
	fmt.Printf("Program.main() = %d (after reload)\n", result.SmallInt())
}

// bootstrap builds the pre-reload world: one dirty library holding one
// class with a single method, main, that returns 4.
func bootstrap(iso *vm.Isolate) {
	lib := vm.NewLibrary(rootLibraryURL, 0)
	iso.Libraries.Add(lib)
	iso.RootLibrary = lib

	program := vm.NewClass("Program", nil)
	program.Script = rootLibraryURL
	program.FinalizationState = vm.ClassFinalized
	registerMain(iso, program, 4)
	iso.Classes.Register(program)
	lib.Define("Program", iso.ClassAsValue(program))
}

// registerMain attaches a main function to class that always returns n,
// through SetFunction so the class's VTable dispatches to it too.
func registerMain(iso *vm.Isolate, class *vm.Class, n int64) {
	fn := vm.NewFunction(class, "main", "main", vm.NewMethod0("main", func(iso *vm.Isolate, receiver vm.Value) vm.Value {
		return vm.FromSmallInt(n)
	}))
	class.SetFunction(iso.Selectors, fn)
}

// callMain looks up Program.main through the class's VTable and invokes
// it against a fresh instance, the same path any other method call takes.
func callMain(iso *vm.Isolate) vm.Value {
	program := iso.Classes.Lookup("Program")
	method := program.LookupMethod(iso.Selectors, "main")
	receiver := program.NewInstance()
	return method.Invoke(iso, receiver.ToValue(), nil)
}

// demoLoader stands in for a real parser/resolver: it always produces one
// replacement Program class whose main body returns newResult, matching
// the loader contract of appending classes and libraries directly into
// the isolate's live tables.
type demoLoader struct {
	newResult int64
}

func (d *demoLoader) Load(iso *vm.Isolate, rootLibraryURL string) error {
	lib := vm.NewLibrary(rootLibraryURL, 0)
	lib.Debuggable = iso.Libraries.ByURL(rootLibraryURL).Debuggable
	iso.Libraries.Add(lib)

	program := vm.NewClass("Program", nil)
	program.Script = rootLibraryURL
	program.FinalizationState = vm.ClassFinalized
	registerMain(iso, program, d.newResult)
	iso.Classes.Register(program)
	lib.Define("Program", iso.ClassAsValue(program))
	return nil
}
