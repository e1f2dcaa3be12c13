// Package handshake runs the one-time exchange that prepares a freshly
// spawned worker: wait for "ready", send the font, and collect the solving
// orders the worker derived from it.
package handshake

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/sirupsen/logrus"
)

// State is a step of the handshake.
type State int

const (
	Created State = iota
	AwaitingReady
	AwaitingSolvingOrders
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case AwaitingReady:
		return "awaiting-ready"
	case AwaitingSolvingOrders:
		return "awaiting-solving-orders"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Policy decides what happens to a message that is not valid in the
// current state.
type Policy int

const (
	// Ignore logs the message and keeps waiting.
	Ignore Policy = iota
	// FailFast aborts the handshake with core.ErrHandshakeProtocol.
	FailFast
)

// Handshake drives a single worker from spawn to Ready. It is not reusable.
type Handshake struct {
	port   core.Port
	font   *core.FontSource
	policy Policy
	state  State
	log    logrus.FieldLogger
}

// New prepares a handshake over port. font is annotated in place with the
// solving orders the worker reports.
func New(port core.Port, font *core.FontSource, policy Policy, logger logrus.FieldLogger) *Handshake {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handshake{
		port:   port,
		font:   font,
		policy: policy,
		state:  Created,
		log:    logger.WithField("component", "handshake"),
	}
}

// State returns the current state.
func (h *Handshake) State() State { return h.state }

// Run waits for the worker to become ready. It returns nil once the
// solving orders have been merged into the font, and never retries.
func (h *Handshake) Run(ctx context.Context) error {
	if h.state != Created {
		return fmt.Errorf("handshake already ran (state %s)", h.state)
	}
	h.state = AwaitingReady
	msgs := h.port.Messages()
	for {
		select {
		case <-ctx.Done():
			prev := h.state
			h.state = Failed
			return fmt.Errorf("handshake interrupted in state %s: %w", prev, ctx.Err())
		case msg, ok := <-msgs:
			if !ok {
				prev := h.state
				h.state = Failed
				return fmt.Errorf("handshake in state %s: %w", prev, core.ErrWorkerClosed)
			}
			if err := h.step(msg); err != nil {
				h.state = Failed
				return err
			}
			if h.state == Ready {
				return nil
			}
		}
	}
}

func (h *Handshake) step(msg core.Message) error {
	switch {
	case h.state == AwaitingReady && msg.Type == core.MsgReady:
		out, err := core.NewMessage(core.MsgFont, h.font)
		if err != nil {
			return err
		}
		if err := h.port.PostMessage(out); err != nil {
			return fmt.Errorf("sending font: %w", err)
		}
		h.log.Debug("worker ready, font sent")
		h.state = AwaitingSolvingOrders
		return nil

	case h.state == AwaitingSolvingOrders && msg.Type == core.MsgSolvingOrders:
		if msg.Error != "" {
			return fmt.Errorf("worker could not load font: %s", msg.Error)
		}
		if len(msg.Data) == 0 {
			return core.ErrNoSolvingOrderData
		}
		var orders map[string]json.RawMessage
		if err := json.Unmarshal(msg.Data, &orders); err != nil {
			return &core.ParseError{What: "solving orders", Err: err}
		}
		applied, unknown := h.font.ApplySolvingOrders(orders)
		if len(unknown) > 0 {
			h.log.WithField("glyphs", unknown).Warn("solving orders for unknown glyphs ignored")
		}
		h.log.WithField("applied", applied).Debug("solving orders merged")
		h.state = Ready
		return nil
	}

	if h.policy == FailFast {
		return fmt.Errorf("%w: %q in state %s", core.ErrHandshakeProtocol, msg.Type, h.state)
	}
	h.log.WithFields(logrus.Fields{
		"type":  msg.Type,
		"state": h.state,
	}).Warn("ignoring unexpected message during handshake")
	return nil
}
