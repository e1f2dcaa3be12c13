//go:build v8

package fontworker

import (
	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/v8engine"
)

func newRuntime(memoryLimitMB int) core.RuntimeFactory {
	return v8engine.NewRuntime(memoryLimitMB)
}
