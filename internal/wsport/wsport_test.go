package wsport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/loader"
	"github.com/cryguy/fontworker/internal/native"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoEngine struct{}

func (echoEngine) Load(f *core.FontSource) (map[string]json.RawMessage, error) {
	orders := map[string]json.RawMessage{}
	for _, id := range f.GlyphIDs() {
		orders[id] = json.RawMessage(`["` + id + `"]`)
	}
	return orders, nil
}
func (echoEngine) Update(v core.Values) ([]byte, error) { return []byte{byte(v["width"])}, nil }
func (echoEngine) SetSubset(string) ([]byte, error)     { return nil, nil }
func (echoEngine) SVGFont() (string, error)             { return "<svg/>", nil }
func (echoEngine) OTFFont(string) ([]byte, error)       { return nil, errors.New("no otf") }

// scriptSpy records the script it was asked to run.
type scriptSpy struct {
	core.Spawner
	got chan string
}

func (s scriptSpy) Spawn(ctx context.Context, script string) (core.Port, error) {
	s.got <- script
	return s.Spawner.Spawn(ctx, script)
}

type failingSpawner struct{}

func (failingSpawner) Spawn(context.Context, string) (core.Port, error) {
	return nil, errors.New("out of isolates")
}

func serve(t *testing.T, spawner core.Spawner) *Spawner {
	t.Helper()
	logger, _ := test.NewNullLogger()
	srv := httptest.NewServer(&Handler{Spawner: spawner, Logger: logger})
	t.Cleanup(srv.Close)
	return &Spawner{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Logger: logger}
}

func nativeSpawner() core.Spawner {
	logger, _ := test.NewNullLogger()
	return &native.Spawner{New: func() native.Engine { return echoEngine{} }, Logger: logger}
}

func recv(t *testing.T, port core.Port) core.Message {
	t.Helper()
	select {
	case msg, ok := <-port.Messages():
		require.True(t, ok, "remote worker gone")
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message from remote worker")
	}
	return core.Message{}
}

func TestRemoteWorkerRelay(t *testing.T) {
	spy := scriptSpy{Spawner: nativeSpawner(), got: make(chan string, 1)}
	client := serve(t, spy)

	port, err := client.Spawn(context.Background(), "(function(){})();//")
	require.NoError(t, err)
	defer func() { _ = port.Close() }()
	assert.Equal(t, "(function(){})();//", <-spy.got)

	assert.Equal(t, core.MsgReady, recv(t, port).Type)

	font, err := core.ParseFont([]byte(`{"glyphs": {"a": {}}}`))
	require.NoError(t, err)
	msg, err := core.NewMessage(core.MsgFont, font)
	require.NoError(t, err)
	require.NoError(t, port.PostMessage(msg))
	orders := recv(t, port)
	assert.JSONEq(t, `{"a": ["a"]}`, string(orders.Data))

	msg, err = core.NewMessage(core.MsgOTFFont, "x.otf")
	require.NoError(t, err)
	require.NoError(t, port.PostMessage(msg))
	assert.Equal(t, "no otf", recv(t, port).Error)
}

func TestRemoteSpawnFailure(t *testing.T) {
	client := serve(t, failingSpawner{})
	_, err := client.Spawn(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of isolates")
}

func TestRemoteWorkerClose(t *testing.T) {
	client := serve(t, nativeSpawner())
	port, err := client.Spawn(context.Background(), "")
	require.NoError(t, err)
	recv(t, port)

	require.NoError(t, port.Close())
	select {
	case _, ok := <-port.Messages():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("messages channel not closed")
	}
}

func TestLoadThroughRemoteHost(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := loader.DefaultConfig()
	cfg.Logger = logger
	cfg.Spawner = serve(t, nativeSpawner())
	cfg.FontJSON = []byte(`{"glyphs": {"A": {}, "B": {}}}`)
	cfg.EngineSource = `export default {};`

	s, err := loader.Load(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = s.Port.Close() }()
	assert.JSONEq(t, `["B"]`, string(s.Font.Glyphs["B"].SolvingOrder))
}
