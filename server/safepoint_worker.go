// Package server hosts the process that owns an isolate and arbitrates
// safepoint access to it.
package server

import (
	"fmt"

	"github.com/chazu/isoreload/vm"
)

// safepointRequest represents a unit of work to run while the isolate is
// stopped at a safepoint.
type safepointRequest struct {
	fn   func(*vm.Isolate) interface{}
	done chan safepointResult
}

// safepointResult holds the return value from a safepoint operation.
type safepointResult struct {
	value interface{}
	err   error
}

// SafepointWorker serializes every mutator access to an isolate through a
// single goroutine, generalizing chazu-maggie's own VMWorker from "the
// one goroutine allowed to touch the interpreter" into "the one goroutine
// allowed to touch the isolate, including while a reload is in flight".
//
// A reload's Start/Checkpoint/Finish/Commit/Rollback sequence runs as one
// or more Do calls submitted through this worker: every step that reads
// or mutates the isolate happens on the worker goroutine, so the isolate
// is never observed half-migrated by another goroutine racing the
// reload.
type SafepointWorker struct {
	iso      *vm.Isolate
	requests chan safepointRequest
	quit     chan struct{}
}

// NewSafepointWorker creates a SafepointWorker and starts its processing
// goroutine.
func NewSafepointWorker(iso *vm.Isolate) *SafepointWorker {
	w := &SafepointWorker{
		iso:      iso,
		requests: make(chan safepointRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes safepoint requests sequentially on a dedicated
// goroutine.
func (w *SafepointWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			result := w.execute(req.fn)
			req.done <- result
		case <-w.quit:
			return
		}
	}
}

// execute runs fn against the isolate, recovering from panics so one
// failed request cannot take down the worker goroutine.
func (w *SafepointWorker) execute(fn func(*vm.Isolate) interface{}) safepointResult {
	var result safepointResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.iso)
	}()
	return result
}

// Do submits fn for execution on the safepoint goroutine and blocks until
// it completes. Returns fn's result and any error, including a recovered
// panic.
func (w *SafepointWorker) Do(fn func(*vm.Isolate) interface{}) (interface{}, error) {
	req := safepointRequest{
		fn:   fn,
		done: make(chan safepointResult, 1),
	}
	w.requests <- req
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine.
func (w *SafepointWorker) Stop() {
	close(w.quit)
}

// Isolate returns the underlying isolate, for read-only metadata access
// that doesn't require safepoint serialization (e.g. inspecting class
// names for logging).
func (w *SafepointWorker) Isolate() *vm.Isolate {
	return w.iso
}
