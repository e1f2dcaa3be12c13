// Package jsworker runs a bootstrap script as a worker on an embedded
// JavaScript engine. Each worker owns one runtime on a dedicated goroutine
// and talks to the controller through a core.Pipe.
package jsworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/eventloop"
	"github.com/sirupsen/logrus"
)

// Spawner starts script workers on runtimes created by Factory.
type Spawner struct {
	Factory core.RuntimeFactory
	Config  core.EngineConfig
	Logger  logrus.FieldLogger
}

var _ core.Spawner = (*Spawner)(nil)

// ErrNoMessageHandler is returned by Spawn when the script finished without
// installing onmessage or a message listener.
var ErrNoMessageHandler = errors.New("worker script installs no message handler")

// Spawn implements core.Spawner. It returns once the script has been
// evaluated and has installed a message handler, or with the error that
// stopped it.
func (s *Spawner) Spawn(ctx context.Context, script string) (core.Port, error) {
	if s.Factory == nil {
		return nil, errors.New("script spawner has no runtime factory")
	}
	logger := s.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	size := s.Config.InboxSize
	if size == 0 {
		size = core.DefaultEngineConfig().InboxSize
	}

	w := &worker{
		pipe: core.NewPipe(size),
		el:   eventloop.New(),
		log:  logger.WithField("component", "script-worker"),
	}
	w.pipe.OnClose(w.interrupt)

	started := make(chan error, 1)
	go w.run(s.Factory, script, started)

	select {
	case err := <-started:
		if err != nil {
			_ = w.pipe.Close()
			return nil, err
		}
		return w.pipe, nil
	case <-ctx.Done():
		_ = w.pipe.Close()
		return nil, ctx.Err()
	}
}

type worker struct {
	pipe *core.Pipe
	el   *eventloop.EventLoop
	log  logrus.FieldLogger

	mu sync.Mutex
	rt core.JSRuntime // nil once closed

	outbox []core.Message
}

func (w *worker) interrupt() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rt != nil {
		w.rt.Interrupt()
	}
}

func (w *worker) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rt != nil {
		w.rt.Close()
		w.rt = nil
	}
}

func (w *worker) run(factory core.RuntimeFactory, script string, started chan<- error) {
	defer w.pipe.Finish()
	defer w.release()
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("worker goroutine panic: %v", r)
			select {
			case started <- fmt.Errorf("worker panic: %v", r):
			default:
			}
		}
	}()

	rt, err := factory()
	if err != nil {
		started <- fmt.Errorf("creating runtime: %w", err)
		return
	}
	w.mu.Lock()
	w.rt = rt
	w.mu.Unlock()

	if err := w.setup(rt); err != nil {
		started <- fmt.Errorf("setup: %w", err)
		return
	}
	if err := rt.Eval(script); err != nil {
		started <- fmt.Errorf("running worker script: %w", err)
		return
	}
	rt.RunMicrotasks()
	ok, err := rt.EvalBool("__hasMessageHandler()")
	if err != nil {
		started <- fmt.Errorf("checking message handler: %w", err)
		return
	}
	if !ok {
		started <- ErrNoMessageHandler
		return
	}
	started <- nil

	w.loop(rt)
}

func (w *worker) setup(rt core.JSRuntime) error {
	if err := rt.RegisterFunc("__postMessage", func(raw string) {
		var msg core.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			w.log.WithError(err).Warn("dropping unserializable postMessage")
			return
		}
		w.outbox = append(w.outbox, msg)
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__console", func(level, message string) {
		entry := w.log.WithField("source", "worker")
		switch level {
		case "error":
			entry.Error(message)
		case "warn":
			entry.Warn(message)
		case "debug":
			entry.Debug(message)
		default:
			entry.Info(message)
		}
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__timerRegister", func(delayMs int, isInterval bool) int {
		return w.el.RegisterTimer(time.Duration(delayMs)*time.Millisecond, isInterval)
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__timerClear", func(id int) {
		w.el.ClearTimer(id)
	}); err != nil {
		return err
	}
	return rt.Eval(preludeJS)
}

// loop delivers inbound messages and fires timers until the controller
// closes the pipe.
func (w *worker) loop(rt core.JSRuntime) {
	for {
		rt.RunMicrotasks()
		if !w.flush() {
			return
		}

		var timerC <-chan time.Time
		var timer *time.Timer
		if deadline, ok := w.el.NextDeadline(); ok {
			timer = time.NewTimer(time.Until(deadline))
			timerC = timer.C
		}

		select {
		case <-w.pipe.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case msg := <-w.pipe.Inbox():
			w.deliver(rt, msg)
		case <-timerC:
			w.el.RunDue(rt, func(id int, err error) {
				w.log.WithError(err).WithField("timer", id).Error("timer callback failed")
			})
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (w *worker) deliver(rt core.JSRuntime, msg core.Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		w.log.WithError(err).WithField("type", msg.Type).Warn("cannot deliver message")
		return
	}
	if err := rt.Eval("__dispatch(" + string(raw) + ")"); err != nil {
		w.log.WithError(err).WithField("type", msg.Type).Error("dispatching message")
	}
}

// flush hands queued postMessage calls to the controller. It reports false
// once the controller has gone away.
func (w *worker) flush() bool {
	pending := w.outbox
	w.outbox = nil
	for _, msg := range pending {
		if err := w.pipe.Emit(msg); err != nil {
			return false
		}
	}
	return true
}
