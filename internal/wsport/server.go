// Package wsport runs workers in another process. The host serves
// Handler; controllers reach it through Spawner. Messages cross the
// websocket as JSON text frames.
package wsport

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/cryguy/fontworker/internal/core"
	"github.com/sirupsen/logrus"
)

// MsgSpawn opens a session. The client sends it first with the bootstrap
// script as data; the host answers with the same type once the worker
// runs, or with an error.
const MsgSpawn core.MessageType = "spawn"

// DefaultReadLimit bounds a single frame (16 MB). Font buffers travel
// base64 encoded inside frames.
const DefaultReadLimit = 16 << 20

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler hosts one worker per websocket connection.
type Handler struct {
	Spawner   core.Spawner
	Logger    logrus.FieldLogger
	ReadLimit int64
	// AcceptOptions are passed to websocket.Accept.
	AcceptOptions *websocket.AcceptOptions
}

var _ http.Handler = (*Handler)(nil)

func (h *Handler) logger() logrus.FieldLogger {
	if h.Logger == nil {
		return logrus.StandardLogger().WithField("component", "wsport")
	}
	return h.Logger.WithField("component", "wsport")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger().WithField("remote", r.RemoteAddr)
	conn, err := websocket.Accept(w, r, h.AcceptOptions)
	if err != nil {
		log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(readLimit(h.ReadLimit))

	ctx := r.Context()
	var first core.Message
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		log.WithError(err).Debug("no spawn frame")
		return
	}
	if first.Type != MsgSpawn {
		_ = conn.Close(websocket.StatusPolicyViolation, "expected spawn")
		return
	}
	var script string
	if len(first.Data) > 0 {
		if err := first.Decode(&script); err != nil {
			_ = wsjson.Write(ctx, conn, core.Message{Type: MsgSpawn, Error: "spawn data must be a string"})
			_ = conn.Close(websocket.StatusUnsupportedData, "bad spawn frame")
			return
		}
	}

	port, err := h.Spawner.Spawn(ctx, script)
	if err != nil {
		log.WithError(err).Error("spawning worker")
		_ = wsjson.Write(ctx, conn, core.Message{Type: MsgSpawn, Error: err.Error()})
		_ = conn.Close(websocket.StatusInternalError, "spawn failed")
		return
	}
	defer func() { _ = port.Close() }()
	if err := wsjson.Write(ctx, conn, core.Message{Type: MsgSpawn}); err != nil {
		return
	}
	log.Info("worker spawned")

	h.relay(ctx, conn, port, log)
	log.Info("worker session ended")
}

// relay copies frames into the worker and worker messages back out until
// either side goes away.
func (h *Handler) relay(ctx context.Context, conn *websocket.Conn, port core.Port, log logrus.FieldLogger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		for {
			var msg core.Message
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			if err := port.PostMessage(msg); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-port.Messages():
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "worker exited")
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, msg)
			wcancel()
			if err != nil {
				log.WithError(err).Warn("relaying worker message")
				return
			}
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func readLimit(n int64) int64 {
	if n <= 0 {
		return DefaultReadLimit
	}
	return n
}
