//go:build !v8

// Package quickjs hosts script workers on the pure-Go QuickJS engine.
package quickjs

import (
	"fmt"

	"github.com/cryguy/fontworker/internal/core"
	"modernc.org/quickjs"
)

// qjsRuntime implements core.JSRuntime for the QuickJS engine.
type qjsRuntime struct {
	vm *quickjs.VM
}

var _ core.JSRuntime = (*qjsRuntime)(nil)

// NewRuntime returns a factory for QuickJS runtimes capped at
// memoryLimitMB (0 for no cap).
func NewRuntime(memoryLimitMB int) core.RuntimeFactory {
	return func() (core.JSRuntime, error) {
		vm, err := quickjs.NewVM()
		if err != nil {
			return nil, fmt.Errorf("creating QuickJS VM: %w", err)
		}
		if memoryLimitMB > 0 {
			vm.SetMemoryLimit(uintptr(memoryLimitMB) * 1024 * 1024)
		}
		return &qjsRuntime{vm: vm}, nil
	}
}

// Eval evaluates JavaScript and discards the result.
func (r *qjsRuntime) Eval(js string) error {
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// EvalBool evaluates JavaScript and returns the result as a Go bool.
func (r *qjsRuntime) EvalBool(js string) (bool, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", result)
	}
	return b, nil
}

// RegisterFunc registers a Go function as a global JavaScript function.
// Multi-value Go returns (T, error) are unwrapped: on success the JS
// function returns T, on error it throws a TypeError. The QuickJS Go
// wrapper otherwise hands multi-value results back as JS arrays.
func (r *qjsRuntime) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return err
	}
	wrapJS := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new TypeError("calling %s: " + r[1]);
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, name, rawName)
	return r.Eval(wrapJS)
}

// RunMicrotasks pumps the QuickJS microtask queue.
func (r *qjsRuntime) RunMicrotasks() {
	executePendingJobs(r.vm)
}

// Interrupt aborts the script currently running on the VM.
func (r *qjsRuntime) Interrupt() {
	r.vm.Interrupt()
}

// Close releases the VM.
func (r *qjsRuntime) Close() {
	r.vm.Close()
}
