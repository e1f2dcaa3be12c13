package jobqueue

import (
	"context"
	"fmt"
	"sync"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/sirupsen/logrus"
)

// Sender is the outbound half of a worker port.
type Sender interface {
	PostMessage(msg core.Message) error
}

// Handler turns the worker's answer to a job into the value handed to the
// job's callback.
type Handler interface {
	Handle(msg core.Message) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(msg core.Message) (any, error)

// Handle calls f(msg).
func (f HandlerFunc) Handle(msg core.Message) (any, error) { return f(msg) }

// Handlers maps each job type to its response handler. A missing handler
// passes the raw payload through.
type Handlers [core.NumJobTypes]Handler

// Dispatcher sends queued jobs to the worker one at a time, highest
// priority first, and routes each answer back to the job that asked for it.
type Dispatcher struct {
	mu       sync.Mutex
	queue    Queue
	current  *Job
	port     Sender
	handlers Handlers
	log      logrus.FieldLogger
}

// New creates a Dispatcher with no worker bound.
func New(handlers Handlers, logger logrus.FieldLogger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		handlers: handlers,
		log:      logger.WithField("component", "dispatcher"),
	}
}

// Bind attaches the worker and sends the highest priority pending job.
func (d *Dispatcher) Bind(port Sender) {
	d.mu.Lock()
	d.port = port
	d.mu.Unlock()
	d.dispatch()
}

// Bound reports whether a worker is attached.
func (d *Dispatcher) Bound() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port != nil
}

// Enqueue stores job in its priority slot, replacing any unsent job of the
// same type, and tries to dispatch.
func (d *Dispatcher) Enqueue(job *Job) error {
	return d.EnqueueWith(job, nil)
}

// EnqueueWith is Enqueue with a commit hook. commit runs under the queue
// lock right before job takes its slot, so concurrent submitters observe
// their commits in the same order as their slot writes. commit must not
// call back into the Dispatcher.
func (d *Dispatcher) EnqueueWith(job *Job, commit func()) error {
	if job == nil {
		return fmt.Errorf("enqueue: nil job")
	}
	if !job.Type.Valid() {
		return fmt.Errorf("enqueue %s: %w", job.Type, core.ErrUnknownJobType)
	}
	d.mu.Lock()
	if commit != nil {
		commit()
	}
	if err := d.queue.Put(job); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("enqueue %s: %w", job.Type, err)
	}
	d.mu.Unlock()
	d.dispatch()
	return nil
}

// EmptyQueue forgets every pending job and the job in flight. The worker
// keeps computing whatever it was given; its answer will be discarded.
func (d *Dispatcher) EmptyQueue() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.Clear()
	d.current = nil
}

// Current returns the type of the job in flight.
func (d *Dispatcher) Current() (core.JobType, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return 0, false
	}
	return d.current.Type, true
}

// Pending returns the unsent job of type t, if any.
func (d *Dispatcher) Pending(t core.JobType) *Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Pending(t)
}

// dispatch sends the next job unless one is already in flight.
func (d *Dispatcher) dispatch() {
	for {
		d.mu.Lock()
		if d.current != nil || d.port == nil {
			d.mu.Unlock()
			return
		}
		job := d.queue.Pop()
		if job == nil {
			d.mu.Unlock()
			return
		}
		d.current = job
		port := d.port
		d.mu.Unlock()

		err := send(port, job)
		if err == nil {
			d.log.WithField("job", job.Type).Debug("job sent")
			return
		}

		d.log.WithError(err).WithField("job", job.Type).Error("sending job to worker")
		d.mu.Lock()
		if d.current == job {
			d.current = nil
		}
		d.mu.Unlock()
		d.complete(job, Result{Type: job.Type, Err: err})
	}
}

func send(port Sender, job *Job) error {
	msg, err := core.NewMessage(job.Type.MessageType(), job.Data)
	if err != nil {
		return err
	}
	return port.PostMessage(msg)
}

// OnMessage processes one answer from the worker. Answers arriving while
// no job is in flight, or whose type does not match the job in flight, are
// dropped.
func (d *Dispatcher) OnMessage(msg core.Message) {
	d.mu.Lock()
	job := d.current
	if job == nil {
		d.mu.Unlock()
		d.log.WithField("type", msg.Type).Debug("no job in flight, dropping message")
		return
	}
	if msg.Type != job.Type.MessageType() {
		d.mu.Unlock()
		d.log.WithFields(logrus.Fields{
			"type":    msg.Type,
			"waiting": job.Type,
		}).Warn("message does not answer the job in flight, dropping it")
		return
	}
	handler := d.handlers[job.Type]
	d.mu.Unlock()

	res := handle(handler, job.Type, msg)

	d.mu.Lock()
	stale := d.current != job
	d.mu.Unlock()
	if !stale {
		d.complete(job, res)
		d.mu.Lock()
		if d.current == job {
			d.current = nil
		}
		d.mu.Unlock()
	}
	d.dispatch()
}

func handle(h Handler, t core.JobType, msg core.Message) (res Result) {
	res.Type = t
	if msg.Error != "" {
		res.Err = &core.WorkerError{Type: t, Message: msg.Error}
		return res
	}
	if h == nil {
		res.Value = msg.Data
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res.Value = nil
			res.Err = &core.HandlerError{Type: t, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err := h.Handle(msg)
	if err != nil {
		res.Err = &core.HandlerError{Type: t, Err: err}
		return res
	}
	res.Value = v
	return res
}

func (d *Dispatcher) complete(job *Job, res Result) {
	if job.Callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("job", job.Type).Errorf("job callback panicked: %v", r)
		}
	}()
	job.Callback(res)
}

// Run feeds worker messages to OnMessage until msgs is closed or ctx is
// done. When the worker goes away, the job in flight and every pending job
// fail with core.ErrWorkerClosed and the worker is unbound.
func (d *Dispatcher) Run(ctx context.Context, msgs <-chan core.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				d.workerGone()
				return core.ErrWorkerClosed
			}
			d.OnMessage(msg)
		}
	}
}

func (d *Dispatcher) workerGone() {
	d.mu.Lock()
	var failed []*Job
	if d.current != nil {
		failed = append(failed, d.current)
	}
	for job := d.queue.Pop(); job != nil; job = d.queue.Pop() {
		failed = append(failed, job)
	}
	d.current = nil
	d.port = nil
	d.mu.Unlock()

	if len(failed) > 0 {
		d.log.WithField("jobs", len(failed)).Warn("worker exited with jobs outstanding")
	}
	for _, job := range failed {
		d.complete(job, Result{Type: job.Type, Err: core.ErrWorkerClosed})
	}
}
