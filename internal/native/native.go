// Package native runs a Go font engine as a worker. The engine lives on its
// own goroutine and speaks the same message protocol as a script worker,
// so the controller cannot tell the two apart.
package native

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/sirupsen/logrus"
)

// Engine is a parametric font engine.
type Engine interface {
	// Load prepares the font and returns the solving order of each glyph.
	// Glyphs with no order may be omitted or mapped to null.
	Load(font *core.FontSource) (map[string]json.RawMessage, error)
	// Update applies parameter values and may return the recompiled font.
	Update(values core.Values) ([]byte, error)
	// SetSubset restricts the glyphs kept fully resolved and may return the
	// recompiled font.
	SetSubset(set string) ([]byte, error)
	// SVGFont exports the font as SVG font markup.
	SVGFont() (string, error)
	// OTFFont exports the font as an OpenType file.
	OTFFont(name string) ([]byte, error)
}

// Spawner starts engines created by New.
type Spawner struct {
	New       func() Engine
	InboxSize int
	Logger    logrus.FieldLogger
}

var (
	_ core.Spawner        = (*Spawner)(nil)
	_ core.ScriptRequirer = (*Spawner)(nil)
)

// RequiresScript implements core.ScriptRequirer: native workers need no
// bootstrap script.
func (s *Spawner) RequiresScript() bool { return false }

// Spawn implements core.Spawner. The script is ignored.
func (s *Spawner) Spawn(ctx context.Context, _ string) (core.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.New == nil {
		return nil, errors.New("native spawner has no engine constructor")
	}
	logger := s.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	size := s.InboxSize
	if size == 0 {
		size = core.DefaultEngineConfig().InboxSize
	}
	p := core.NewPipe(size)
	w := &worker{
		engine: s.New(),
		pipe:   p,
		log:    logger.WithField("component", "native-worker"),
	}
	go w.run()
	return p, nil
}

type worker struct {
	engine Engine
	pipe   *core.Pipe
	loaded bool
	log    logrus.FieldLogger
}

func (w *worker) run() {
	defer w.pipe.Finish()
	if err := w.pipe.Emit(core.Message{Type: core.MsgReady}); err != nil {
		return
	}
	for {
		select {
		case <-w.pipe.Done():
			return
		case msg := <-w.pipe.Inbox():
			out, ok := w.handle(msg)
			if !ok {
				continue
			}
			if err := w.pipe.Emit(out); err != nil {
				return
			}
		}
	}
}

// handle answers one message. Engine panics become error answers.
func (w *worker) handle(msg core.Message) (out core.Message, ok bool) {
	reply := msg.Type
	if msg.Type == core.MsgFont {
		reply = core.MsgSolvingOrders
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("type", msg.Type).Errorf("engine panic: %v", r)
			out, ok = core.Message{Type: reply, Error: fmt.Sprintf("engine panic: %v", r)}, true
		}
	}()

	var data any
	var err error
	switch msg.Type {
	case core.MsgFont:
		data, err = w.load(msg)
	case core.MsgUpdate, core.MsgSubset, core.MsgSVGFont, core.MsgOTFFont:
		if !w.loaded {
			err = errors.New("no font loaded")
			break
		}
		data, err = w.job(msg)
	default:
		w.log.WithField("type", msg.Type).Warn("ignoring unknown message")
		return core.Message{}, false
	}
	if err != nil {
		return core.Message{Type: reply, Error: err.Error()}, true
	}
	out, err = core.NewMessage(reply, data)
	if err != nil {
		return core.Message{Type: reply, Error: err.Error()}, true
	}
	return out, true
}

func (w *worker) load(msg core.Message) (any, error) {
	var font core.FontSource
	if err := msg.Decode(&font); err != nil {
		return nil, err
	}
	orders, err := w.engine.Load(&font)
	if err != nil {
		return nil, err
	}
	w.loaded = true
	if orders == nil {
		orders = map[string]json.RawMessage{}
	}
	return orders, nil
}

func (w *worker) job(msg core.Message) (any, error) {
	switch msg.Type {
	case core.MsgUpdate:
		var values core.Values
		if err := msg.Decode(&values); err != nil {
			return nil, err
		}
		return bytesOrNil(w.engine.Update(values))
	case core.MsgSubset:
		var set string
		if err := msg.Decode(&set); err != nil {
			return nil, err
		}
		return bytesOrNil(w.engine.SetSubset(set))
	case core.MsgSVGFont:
		return w.engine.SVGFont()
	default:
		var name string
		if len(msg.Data) > 0 {
			if err := msg.Decode(&name); err != nil {
				return nil, err
			}
		}
		data, err := w.engine.OTFFont(name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"name": name, "data": data}, nil
	}
}

// bytesOrNil keeps an empty engine answer encoded as null rather than "".
func bytesOrNil(b []byte, err error) (any, error) {
	if err != nil || len(b) == 0 {
		return nil, err
	}
	return b, nil
}
