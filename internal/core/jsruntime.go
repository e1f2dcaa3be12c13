package core

// JSRuntime abstracts the JavaScript engine (QuickJS or V8) that hosts a
// script worker. A runtime is bound to the goroutine that created it.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalBool evaluates JavaScript and returns the result as a Go bool.
	EvalBool(js string) (bool, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// The function's Go types are automatically marshaled to/from JS types.
	// On error return, the JS wrapper throws a TypeError instead of
	// returning an array.
	RegisterFunc(name string, fn any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.).
	// V8: PerformMicrotaskCheckpoint, QuickJS: ExecutePendingJob loop.
	RunMicrotasks()

	// Interrupt aborts the script currently executing. Safe to call from
	// any goroutine.
	Interrupt()

	// Close releases the engine.
	Close()
}

// RuntimeFactory creates a fresh JSRuntime on the calling goroutine.
type RuntimeFactory func() (JSRuntime, error)
