package fontworker

import (
	"net/http"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/handshake"
	"github.com/cryguy/fontworker/internal/loader"
	"github.com/sirupsen/logrus"
)

// Option configures Load and New.
type Option func(*options)

type options struct {
	loader loader.Config
	engine core.EngineConfig
	logger logrus.FieldLogger
	onFont func(*FontBuffer)
}

func defaultOptions() *options {
	return &options{
		loader: loader.DefaultConfig(),
		engine: core.DefaultEngineConfig(),
		logger: logrus.StandardLogger(),
	}
}

func (o *options) apply(opts []Option) *options {
	for _, opt := range opts {
		opt(o)
	}
	o.loader.Logger = o.logger
	if o.loader.Spawner == nil {
		o.loader.Spawner = ScriptSpawner(o.engine, o.logger)
	}
	return o
}

// WithFontURL sets where the font JSON is fetched from. Default "font.json".
func WithFontURL(url string) Option {
	return func(o *options) { o.loader.FontURL = url }
}

// WithEngineURL sets where the engine script is fetched from.
// Default "prototypo.js".
func WithEngineURL(url string) Option {
	return func(o *options) { o.loader.EngineURL = url }
}

// WithFontSource provides an already parsed font; nothing is fetched for it.
func WithFontSource(font *FontSource) Option {
	return func(o *options) { o.loader.FontSource = font }
}

// WithFontJSON provides the font as raw JSON; nothing is fetched for it.
func WithFontJSON(data []byte) Option {
	return func(o *options) { o.loader.FontJSON = data }
}

// WithEngineSource provides the engine script text; nothing is fetched
// for it.
func WithEngineSource(src string) Option {
	return func(o *options) { o.loader.EngineSource = src }
}

// WithBaseURL resolves relative font and engine URLs.
func WithBaseURL(base string) Option {
	return func(o *options) { o.loader.BaseURL = base }
}

// WithHTTPClient sets the client used for http(s) URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.loader.HTTPClient = c }
}

// WithSpawner selects how the worker is started. The default runs the
// engine script in an embedded JavaScript VM.
func WithSpawner(s Spawner) Option {
	return func(o *options) { o.loader.Spawner = s }
}

// WithOrderCache reuses solving orders computed in earlier sessions.
func WithOrderCache(c OrderCache) Option {
	return func(o *options) { o.loader.Cache = c }
}

// WithLogger sets the logger. Default logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStrictHandshake makes Load fail with ErrHandshakeProtocol when the
// worker sends an unexpected message before it is ready. By default such
// messages are logged and ignored.
func WithStrictHandshake() Option {
	return func(o *options) { o.loader.Policy = handshake.FailFast }
}

// WithMemoryLimit caps the memory of the default script worker, in MB.
func WithMemoryLimit(mb int) Option {
	return func(o *options) { o.engine.MemoryLimitMB = mb }
}

// WithFontHandler is called with every font buffer produced by update and
// subset jobs, on the goroutine that receives worker messages.
func WithFontHandler(fn func(*FontBuffer)) Option {
	return func(o *options) { o.onFont = fn }
}
