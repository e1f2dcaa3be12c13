package core

// EngineConfig holds runtime configuration for script workers.
type EngineConfig struct {
	MemoryLimitMB int // per-VM memory limit, 0 for none
	InboxSize     int // buffered messages per direction
}

// DefaultEngineConfig returns the configuration used when none is given.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MemoryLimitMB: 256,
		InboxSize:     64,
	}
}
