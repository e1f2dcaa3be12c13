package fontworker

import (
	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/handlers"
	"github.com/cryguy/fontworker/internal/jobqueue"
	"github.com/cryguy/fontworker/internal/native"
)

// Type aliases re-exporting internal types so callers can use
// fontworker.Values, fontworker.Result, etc. without importing the
// internal packages.

type FontSource = core.FontSource
type Glyph = core.Glyph
type Values = core.Values
type JobType = core.JobType
type Message = core.Message
type MessageType = core.MessageType
type Port = core.Port
type Spawner = core.Spawner
type OrderCache = core.OrderCache
type EngineConfig = core.EngineConfig
type Result = jobqueue.Result
type FontBuffer = handlers.FontBuffer
type FontFile = handlers.FontFile
type SVGFont = handlers.SVGFont
type Engine = native.Engine

type FetchError = core.FetchError
type ParseError = core.ParseError
type HandlerError = core.HandlerError
type WorkerError = core.WorkerError

const (
	JobUpdate  = core.JobUpdate
	JobSubset  = core.JobSubset
	JobSVGFont = core.JobSVGFont
	JobOTFFont = core.JobOTFFont
)

var (
	ErrUnknownJobType     = core.ErrUnknownJobType
	ErrHandshakeProtocol  = core.ErrHandshakeProtocol
	ErrWorkerUnavailable  = core.ErrWorkerUnavailable
	ErrWorkerClosed       = core.ErrWorkerClosed
	ErrBootstrapTemplate  = core.ErrBootstrapTemplate
	ErrNoSolvingOrderData = core.ErrNoSolvingOrderData
)

// ParseFont parses font JSON.
func ParseFont(data []byte) (*FontSource, error) { return core.ParseFont(data) }
