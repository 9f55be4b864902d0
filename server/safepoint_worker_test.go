package server

import (
	"testing"

	"github.com/chazu/isoreload/vm"
)

func TestSafepointWorkerDoReturnsValue(t *testing.T) {
	w := NewSafepointWorker(vm.NewIsolate())
	defer w.Stop()

	result, err := w.Do(func(iso *vm.Isolate) interface{} {
		return iso.Classes.Len()
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if result.(int) != 0 {
		t.Errorf("result = %v, want 0", result)
	}
}

func TestSafepointWorkerRecoversPanic(t *testing.T) {
	w := NewSafepointWorker(vm.NewIsolate())
	defer w.Stop()

	_, err := w.Do(func(iso *vm.Isolate) interface{} {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected an error from a panicking request")
	}
}

func TestSafepointWorkerSerializesConcurrentRequests(t *testing.T) {
	iso := vm.NewIsolate()
	w := NewSafepointWorker(iso)
	defer w.Stop()

	const n = 50
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, _ = w.Do(func(iso *vm.Isolate) interface{} {
				c := vm.NewClass("C", nil)
				iso.Classes.Register(c)
				return nil
			})
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}

	if iso.Classes.Len() != 1 {
		t.Errorf("Classes.Len() = %d, want 1 (all registrations collapse onto one name)", iso.Classes.Len())
	}
}
