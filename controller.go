package fontworker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/handlers"
	"github.com/cryguy/fontworker/internal/jobqueue"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// Surface is the preview a Controller keeps in sync with the latest
// parameter values.
type Surface interface {
	// Update recomputes the given glyphs with values.
	Update(values Values, glyphs []string)
	// Repaint redraws the preview.
	Repaint()
}

// Controller is the front end of a font worker. All methods are safe for
// concurrent use and none of them waits for the worker.
type Controller struct {
	disp *jobqueue.Dispatcher
	log  logrus.FieldLogger

	mu         sync.Mutex
	font       *FontSource
	port       Port
	subset     string
	latest     Values
	hasData    bool
	renderVals Values
	glyph      string
	fontBuf    *FontBuffer
	onFont     func(*FontBuffer)

	cancel     context.CancelFunc
	done       chan struct{}
	inCallback atomic.Int32
}

// New creates a Controller for font with no worker attached. Jobs queue up
// until Attach is called.
func New(font *FontSource, opts ...Option) *Controller {
	o := defaultOptions().apply(opts)
	return newController(font, o)
}

func newController(font *FontSource, o *options) *Controller {
	return &Controller{
		disp:   jobqueue.New(handlers.Table(), o.logger),
		log:    o.logger.WithField("component", "controller"),
		font:   font,
		onFont: o.onFont,
	}
}

// Attach hands the worker to the Controller, which owns it from then on.
// A Controller accepts a single worker for its whole lifetime.
func (c *Controller) Attach(port Port) error {
	c.mu.Lock()
	if c.port != nil || c.done != nil {
		c.mu.Unlock()
		return errors.New("fontworker: worker already attached")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.port = port
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.disp.Bind(port)
	go func() {
		defer close(done)
		err := c.disp.Run(ctx, port.Messages())
		if errors.Is(err, core.ErrWorkerClosed) {
			c.log.Warn("worker exited")
		}
	}()
	return nil
}

// Close stops the worker and forgets every job. Callbacks of jobs still
// outstanding are not called. Close waits for the message loop to exit,
// except when called from a job callback, where it returns right away and
// the loop exits once the callback returns.
func (c *Controller) Close() error {
	c.mu.Lock()
	port, cancel, done := c.port, c.cancel, c.done
	c.port = nil
	c.mu.Unlock()
	if port == nil {
		return nil
	}

	c.disp.EmptyQueue()
	cancel()
	err := port.Close()
	if c.inCallback.Load() == 0 {
		<-done
	}
	return err
}

// callback marks cb as running so Close can tell it is being called from
// inside one.
func (c *Controller) callback(cb func(Result)) func(Result) {
	if cb == nil {
		return nil
	}
	return func(r Result) {
		c.inCallback.Add(1)
		defer c.inCallback.Add(-1)
		cb(r)
	}
}

// Font returns the font the worker was loaded with, solving orders
// included.
func (c *Controller) Font() *FontSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.font
}

// Update sends new parameter values to the worker. An update that was not
// sent yet is replaced.
func (c *Controller) Update(values Values) error {
	v := values.Clone()
	job := &jobqueue.Job{Type: core.JobUpdate, Data: v, Callback: c.callback(c.fontResult)}
	return c.disp.EnqueueWith(job, func() {
		c.mu.Lock()
		c.latest = v
		c.renderVals = v
		c.hasData = true
		c.mu.Unlock()
	})
}

// LatestValues returns the values of the last Update.
func (c *Controller) LatestValues() (Values, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasData {
		return nil, false
	}
	return c.latest.Clone(), true
}

// SetSubset restricts the glyphs the worker keeps compiled to the
// characters of set. set is normalized to Unicode NFC first: the worker
// receives the normalized string and Subset returns it, so "e\u0301"
// comes back as "\u00e9". The new subset is visible through Subset right
// away.
func (c *Controller) SetSubset(set string) error {
	set = norm.NFC.String(set)
	job := &jobqueue.Job{Type: core.JobSubset, Data: set, Callback: c.callback(c.fontResult)}
	return c.disp.EnqueueWith(job, func() {
		c.mu.Lock()
		c.subset = set
		c.mu.Unlock()
	})
}

// Subset returns the last subset set.
func (c *Controller) Subset() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subset
}

// FontBuffer returns the last font compiled by an update or subset job.
func (c *Controller) FontBuffer() *FontBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fontBuf
}

func (c *Controller) fontResult(r Result) {
	if r.Err != nil {
		c.log.WithError(r.Err).WithField("job", r.Type).Warn("font job failed")
		return
	}
	buf, ok := r.Value.(*FontBuffer)
	if !ok || buf == nil {
		return
	}
	c.mu.Lock()
	c.fontBuf = buf
	fn := c.onFont
	c.mu.Unlock()
	if fn != nil {
		fn(buf)
	}
}

// ready reports whether exports may be requested: a worker is attached and
// the font has been updated at least once.
func (c *Controller) ready() error {
	bound := c.disp.Bound()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil || !bound || !c.hasData {
		return core.ErrWorkerUnavailable
	}
	return nil
}

// Download asks the worker for an OpenType file named name. cb receives a
// *FontFile. It reports false, without queueing anything, until a worker is
// attached and Update has been called.
func (c *Controller) Download(cb func(Result), name string) bool {
	if err := c.ready(); err != nil {
		c.log.WithError(err).Debug("download refused")
		return false
	}
	if err := c.disp.Enqueue(&jobqueue.Job{Type: core.JobOTFFont, Data: name, Callback: c.callback(cb)}); err != nil {
		return false
	}
	return true
}

// OpenInGlyphr asks the worker for the font as SVG font markup. cb receives
// a *SVGFont. Same readiness rules as Download.
func (c *Controller) OpenInGlyphr(cb func(Result)) bool {
	if err := c.ready(); err != nil {
		c.log.WithError(err).Debug("svg export refused")
		return false
	}
	if err := c.disp.Enqueue(&jobqueue.Job{Type: core.JobSVGFont, Callback: c.callback(cb)}); err != nil {
		return false
	}
	return true
}

// EmptyQueue drops every pending job and stops waiting for the job in
// flight. The worker is not interrupted; its answer is ignored.
func (c *Controller) EmptyQueue() {
	c.disp.EmptyQueue()
}

// SetCurrentGlyph selects the glyph Tick redraws.
func (c *Controller) SetCurrentGlyph(id string) {
	c.mu.Lock()
	c.glyph = id
	c.mu.Unlock()
}

// Tick runs one frame of the preview loop: if values changed since the
// last frame and a glyph is selected, the glyph is recomputed on s and
// repainted. It reports whether s was touched.
func (c *Controller) Tick(s Surface) bool {
	c.mu.Lock()
	values, glyph := c.renderVals, c.glyph
	if values == nil || glyph == "" {
		c.mu.Unlock()
		return false
	}
	c.renderVals = nil
	c.mu.Unlock()

	s.Update(values.Clone(), []string{glyph})
	s.Repaint()
	return true
}
