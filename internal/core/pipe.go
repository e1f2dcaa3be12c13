package core

import "sync"

// Pipe is an in-process Port. The controller uses the Port methods; the
// worker goroutine reads Inbox, answers with Emit and calls Finish when it
// exits. Every message is copied on the way through.
type Pipe struct {
	inbox  chan Message
	outbox chan Message
	done   chan struct{}

	closeOnce  sync.Once
	finishOnce sync.Once
	onClose    func()
}

var _ Port = (*Pipe)(nil)

// NewPipe creates a pipe buffering size messages in each direction.
func NewPipe(size int) *Pipe {
	if size < 1 {
		size = 1
	}
	return &Pipe{
		inbox:  make(chan Message, size),
		outbox: make(chan Message, size),
		done:   make(chan struct{}),
	}
}

// OnClose registers fn to run once when the controller closes the pipe.
// It must be set before the pipe is handed out.
func (p *Pipe) OnClose(fn func()) { p.onClose = fn }

// PostMessage implements Port.
func (p *Pipe) PostMessage(msg Message) error {
	select {
	case <-p.done:
		return ErrWorkerClosed
	default:
	}
	select {
	case p.inbox <- msg.Clone():
		return nil
	case <-p.done:
		return ErrWorkerClosed
	}
}

// Messages implements Port.
func (p *Pipe) Messages() <-chan Message { return p.outbox }

// Close implements Port.
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.onClose != nil {
			p.onClose()
		}
	})
	return nil
}

// Inbox yields messages posted by the controller.
func (p *Pipe) Inbox() <-chan Message { return p.inbox }

// Done is closed once the controller has closed the pipe.
func (p *Pipe) Done() <-chan struct{} { return p.done }

// Emit sends msg to the controller. It fails once the pipe is closed.
func (p *Pipe) Emit(msg Message) error {
	select {
	case p.outbox <- msg.Clone():
		return nil
	case <-p.done:
		return ErrWorkerClosed
	}
}

// Finish marks the worker as exited. The controller sees Messages close
// after draining what was already emitted.
func (p *Pipe) Finish() {
	p.finishOnce.Do(func() { close(p.outbox) })
}
