package fontworker

import (
	"github.com/cryguy/fontworker/internal/jsworker"
	"github.com/cryguy/fontworker/internal/native"
	"github.com/cryguy/fontworker/internal/wsport"
	"github.com/sirupsen/logrus"
)

// ScriptSpawner runs the engine script in an embedded JavaScript VM:
// QuickJS by default, V8 when built with -tags v8.
func ScriptSpawner(cfg EngineConfig, logger logrus.FieldLogger) Spawner {
	return &jsworker.Spawner{Factory: newRuntime(cfg.MemoryLimitMB), Config: cfg, Logger: logger}
}

// NativeSpawner runs a Go engine. No engine script is fetched.
func NativeSpawner(newEngine func() Engine, logger logrus.FieldLogger) Spawner {
	return &native.Spawner{New: newEngine, Logger: logger}
}

// RemoteSpawner runs the worker on a fontworkerd host at url
// (ws:// or wss://).
func RemoteSpawner(url string, logger logrus.FieldLogger) Spawner {
	return &wsport.Spawner{URL: url, Logger: logger}
}
