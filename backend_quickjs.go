//go:build !v8

package fontworker

import (
	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/quickjs"
)

func newRuntime(memoryLimitMB int) core.RuntimeFactory {
	return quickjs.NewRuntime(memoryLimitMB)
}
