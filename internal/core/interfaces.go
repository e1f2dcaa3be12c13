package core

import (
	"context"
	"encoding/json"
)

// Port is the controller's handle on a running worker. Messages sent with
// PostMessage and received from Messages are independent copies.
type Port interface {
	// PostMessage delivers msg to the worker. It does not wait for the
	// worker to process it.
	PostMessage(msg Message) error

	// Messages yields everything the worker sends. The channel is closed
	// once the worker has exited.
	Messages() <-chan Message

	// Close terminates the worker.
	Close() error
}

// Spawner starts a worker. script is the bootstrap payload built by the
// loader; spawners that run a native entry point ignore it.
type Spawner interface {
	Spawn(ctx context.Context, script string) (Port, error)
}

// ScriptRequirer is implemented by spawners that can tell whether they need
// the engine source at all. Spawners without it are assumed to need one.
type ScriptRequirer interface {
	RequiresScript() bool
}

// RequiresScript reports whether s needs a bootstrap script.
func RequiresScript(s Spawner) bool {
	if r, ok := s.(ScriptRequirer); ok {
		return r.RequiresScript()
	}
	return true
}

// OrderCache persists solving orders between sessions, keyed by font
// content hash.
type OrderCache interface {
	Lookup(key string) (map[string]json.RawMessage, error)
	Store(key string, orders map[string]json.RawMessage) error
}
