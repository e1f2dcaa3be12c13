package wsport

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/cryguy/fontworker/internal/core"
	"github.com/sirupsen/logrus"
)

// Spawner starts workers on a remote host serving Handler.
type Spawner struct {
	URL         string // ws:// or wss://
	DialOptions *websocket.DialOptions
	ReadLimit   int64
	InboxSize   int
	Logger      logrus.FieldLogger
}

var _ core.Spawner = (*Spawner)(nil)

// Spawn implements core.Spawner. It returns once the host confirmed that
// the worker runs.
func (s *Spawner) Spawn(ctx context.Context, script string) (core.Port, error) {
	logger := s.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithFields(logrus.Fields{"component": "wsport", "url": s.URL})

	conn, _, err := websocket.Dial(ctx, s.URL, s.DialOptions)
	if err != nil {
		return nil, fmt.Errorf("dialing worker host: %w", err)
	}
	conn.SetReadLimit(readLimit(s.ReadLimit))

	hello, err := core.NewMessage(MsgSpawn, script)
	if err != nil {
		_ = conn.CloseNow()
		return nil, err
	}
	if err := wsjson.Write(ctx, conn, hello); err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("sending spawn frame: %w", err)
	}
	var ack core.Message
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("waiting for spawn ack: %w", err)
	}
	if ack.Type != MsgSpawn || ack.Error != "" {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("remote spawn failed: %s", ack.Error)
	}

	size := s.InboxSize
	if size == 0 {
		size = core.DefaultEngineConfig().InboxSize
	}
	p := core.NewPipe(size)
	rctx, cancel := context.WithCancel(context.Background())
	p.OnClose(func() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		cancel()
	})

	go func() {
		defer p.Finish()
		for {
			var msg core.Message
			if err := wsjson.Read(rctx, conn, &msg); err != nil {
				log.WithError(err).Debug("remote worker gone")
				return
			}
			if err := p.Emit(msg); err != nil {
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case <-p.Done():
				return
			case msg := <-p.Inbox():
				if err := wsjson.Write(rctx, conn, msg); err != nil {
					log.WithError(err).WithField("type", msg.Type).Warn("sending to remote worker")
				}
			}
		}
	}()
	return p, nil
}
