package loader

import (
	"net/http"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/handshake"
	"github.com/sirupsen/logrus"
)

// DefaultMaxResourceSize caps each fetched resource (32 MB).
const DefaultMaxResourceSize = 32 << 20

// Config describes where the font and engine come from and how the worker
// is started.
type Config struct {
	// FontURL is fetched unless FontSource or FontJSON is set.
	FontURL    string
	FontSource *core.FontSource
	FontJSON   []byte

	// EngineURL is fetched unless EngineSource is set or the spawner needs
	// no script.
	EngineURL    string
	EngineSource string

	// BaseURL resolves relative URLs: an http(s) URL, a file:// URL or a
	// directory. Empty means the working directory.
	BaseURL         string
	HTTPClient      *http.Client
	MaxResourceSize int64

	Spawner core.Spawner
	Cache   core.OrderCache // optional
	Policy  handshake.Policy
	Logger  logrus.FieldLogger
}

// DefaultConfig returns the configuration of a stock Prototypo setup.
func DefaultConfig() Config {
	return Config{
		FontURL:         "font.json",
		EngineURL:       "prototypo.js",
		HTTPClient:      http.DefaultClient,
		MaxResourceSize: DefaultMaxResourceSize,
		Policy:          handshake.Ignore,
		Logger:          logrus.StandardLogger(),
	}
}
