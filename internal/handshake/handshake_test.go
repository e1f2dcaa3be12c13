package handshake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipePort is a Port whose inbound side is fed by the test.
type pipePort struct {
	in   chan core.Message
	mu   sync.Mutex
	sent []core.Message
}

func newPipePort() *pipePort {
	return &pipePort{in: make(chan core.Message, 8)}
}

func (p *pipePort) PostMessage(msg core.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg.Clone())
	return nil
}

func (p *pipePort) Messages() <-chan core.Message { return p.in }
func (p *pipePort) Close() error                  { return nil }

func (p *pipePort) outbound() []core.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Message(nil), p.sent...)
}

func testFont(t *testing.T) *core.FontSource {
	t.Helper()
	f, err := core.ParseFont([]byte(`{"glyphs": {"A": {"unicode": 65}, "B": {"unicode": 66}}}`))
	require.NoError(t, err)
	return f
}

func runAsync(ctx context.Context, h *Handshake) <-chan error {
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	return done
}

func TestHandshake_ReadyThenSolvingOrders(t *testing.T) {
	port := newPipePort()
	font := testFont(t)
	logger, _ := test.NewNullLogger()
	h := New(port, font, Ignore, logger)
	done := runAsync(context.Background(), h)

	port.in <- core.Message{Type: core.MsgReady}
	select {
	case err := <-done:
		t.Fatalf("handshake finished after ready only: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	port.in <- core.Message{Type: core.MsgSolvingOrders, Data: []byte(`{"A": 3, "B": null}`)}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("handshake did not finish")
	}

	assert.Equal(t, Ready, h.State())
	assert.Equal(t, "3", string(font.Glyphs["A"].SolvingOrder))
	assert.Nil(t, font.Glyphs["B"].SolvingOrder)

	sent := port.outbound()
	require.Len(t, sent, 1)
	assert.Equal(t, core.MsgFont, sent[0].Type)
	assert.JSONEq(t, `{"glyphs": {"A": {"unicode": 65}, "B": {"unicode": 66}}}`, string(sent[0].Data))

	// a second run is refused rather than repeating the exchange
	assert.Error(t, h.Run(context.Background()))
}

func TestHandshake_IgnorePolicySkipsOutOfOrder(t *testing.T) {
	port := newPipePort()
	logger, hook := test.NewNullLogger()
	h := New(port, testFont(t), Ignore, logger)

	port.in <- core.Message{Type: core.MsgSolvingOrders, Data: []byte(`{"A": 1}`)}
	port.in <- core.Message{Type: core.MsgUpdate}
	port.in <- core.Message{Type: core.MsgReady}
	port.in <- core.Message{Type: core.MsgReady}
	port.in <- core.Message{Type: core.MsgSolvingOrders, Data: []byte(`{"B": [1, 2]}`)}

	require.NoError(t, h.Run(context.Background()))
	assert.Len(t, port.outbound(), 1, "font is sent once")
	assert.Len(t, hook.AllEntries(), 3)
	assert.Nil(t, h.font.Glyphs["A"].SolvingOrder, "orders sent before the font are not applied")
	assert.JSONEq(t, `[1,2]`, string(h.font.Glyphs["B"].SolvingOrder))
}

func TestHandshake_FailFastPolicy(t *testing.T) {
	port := newPipePort()
	logger, _ := test.NewNullLogger()
	h := New(port, testFont(t), FailFast, logger)

	port.in <- core.Message{Type: core.MsgSolvingOrders, Data: []byte(`{}`)}
	err := h.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrHandshakeProtocol)
	assert.Equal(t, Failed, h.State())
	assert.Empty(t, port.outbound())
}

func TestHandshake_WorkerExits(t *testing.T) {
	port := newPipePort()
	logger, _ := test.NewNullLogger()
	h := New(port, testFont(t), Ignore, logger)

	port.in <- core.Message{Type: core.MsgReady}
	close(port.in)
	err := h.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrWorkerClosed)
}

func TestHandshake_ContextCancel(t *testing.T) {
	port := newPipePort()
	logger, _ := test.NewNullLogger()
	h := New(port, testFont(t), Ignore, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := h.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestHandshake_MalformedOrders(t *testing.T) {
	port := newPipePort()
	logger, _ := test.NewNullLogger()
	h := New(port, testFont(t), Ignore, logger)

	port.in <- core.Message{Type: core.MsgReady}
	port.in <- core.Message{Type: core.MsgSolvingOrders, Data: []byte(`[1,2,3]`)}
	err := h.Run(context.Background())
	var pe *core.ParseError
	assert.ErrorAs(t, err, &pe)
}
