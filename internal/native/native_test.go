package native

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	glyphs []string
	values core.Values
	subset string
}

func (e *stubEngine) Load(font *core.FontSource) (map[string]json.RawMessage, error) {
	e.glyphs = font.GlyphIDs()
	orders := map[string]json.RawMessage{}
	for i, id := range e.glyphs {
		if i == 0 {
			orders[id] = json.RawMessage(`null`)
			continue
		}
		orders[id] = json.RawMessage(`["contour0"]`)
	}
	return orders, nil
}

func (e *stubEngine) Update(values core.Values) ([]byte, error) {
	e.values = values
	return nil, nil
}

func (e *stubEngine) SetSubset(set string) ([]byte, error) {
	e.subset = set
	return []byte(set), nil
}

func (e *stubEngine) SVGFont() (string, error) { return "", errors.New("svg export unsupported") }

func (e *stubEngine) OTFFont(name string) ([]byte, error) {
	panic("otf " + name)
}

func recv(t *testing.T, port core.Port) core.Message {
	t.Helper()
	select {
	case msg, ok := <-port.Messages():
		require.True(t, ok, "worker exited")
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message from worker")
	}
	return core.Message{}
}

func post(t *testing.T, port core.Port, typ core.MessageType, data any) {
	t.Helper()
	msg, err := core.NewMessage(typ, data)
	require.NoError(t, err)
	require.NoError(t, port.PostMessage(msg))
}

func TestNativeWorkerProtocol(t *testing.T) {
	logger, _ := test.NewNullLogger()
	eng := &stubEngine{}
	s := &Spawner{New: func() Engine { return eng }, Logger: logger}
	assert.False(t, core.RequiresScript(s))

	port, err := s.Spawn(context.Background(), "")
	require.NoError(t, err)
	defer port.Close()

	assert.Equal(t, core.MsgReady, recv(t, port).Type)

	// jobs before the font are answered with an error
	post(t, port, core.MsgUpdate, core.Values{"width": 1})
	early := recv(t, port)
	assert.Equal(t, core.MsgUpdate, early.Type)
	assert.Contains(t, early.Error, "no font loaded")

	font, err := core.ParseFont([]byte(`{"glyphs": {"a": {}, "b": {}}}`))
	require.NoError(t, err)
	post(t, port, core.MsgFont, font)
	orders := recv(t, port)
	require.Equal(t, core.MsgSolvingOrders, orders.Type)
	assert.JSONEq(t, `{"a": null, "b": ["contour0"]}`, string(orders.Data))

	post(t, port, core.MsgUpdate, core.Values{"width": 2})
	upd := recv(t, port)
	assert.Equal(t, core.MsgUpdate, upd.Type)
	assert.Empty(t, upd.Error)
	assert.Empty(t, upd.Data)

	post(t, port, core.MsgSubset, "abc")
	sub := recv(t, port)
	var got []byte
	require.NoError(t, sub.Decode(&got))
	assert.Equal(t, "abc", string(got))

	post(t, port, core.MsgSVGFont, nil)
	assert.Equal(t, "svg export unsupported", recv(t, port).Error)

	post(t, port, core.MsgOTFFont, "x.otf")
	assert.Equal(t, "engine panic: otf x.otf", recv(t, port).Error)

	assert.Equal(t, core.Values{"width": 2}, eng.values)
	assert.Equal(t, "abc", eng.subset)
}

func TestNativeWorkerClose(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := &Spawner{New: func() Engine { return &stubEngine{} }, Logger: logger}
	port, err := s.Spawn(context.Background(), "")
	require.NoError(t, err)
	recv(t, port)

	require.NoError(t, port.Close())
	assert.ErrorIs(t, port.PostMessage(core.Message{Type: core.MsgUpdate}), core.ErrWorkerClosed)

	select {
	case _, ok := <-port.Messages():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("messages channel not closed")
	}
}
