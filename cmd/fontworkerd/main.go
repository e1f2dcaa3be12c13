// Command fontworkerd hosts script font workers for remote controllers.
// Each websocket connection to /worker gets its own JavaScript VM.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cryguy/fontworker"
	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/wsport"
	"github.com/sirupsen/logrus"
)

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	defaults := core.DefaultEngineConfig()
	var (
		addr     = flag.String("addr", envOr("FONTWORKER_ADDR", ":8787"), "listen address")
		memory   = flag.Int("memory", envInt("FONTWORKER_MEMORY_MB", defaults.MemoryLimitMB), "per-worker memory limit in MB")
		inbox    = flag.Int("inbox", envInt("FONTWORKER_INBOX", defaults.InboxSize), "buffered messages per worker direction")
		logLevel = flag.String("log-level", envOr("FONTWORKER_LOG_LEVEL", "info"), "log level")
		logJSON  = flag.Bool("log-json", os.Getenv("FONTWORKER_LOG_JSON") != "", "log as JSON")
	)
	flag.Parse()

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.WithError(err).Warn("unknown log level, using info")
	}
	if *logJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	cfg := core.EngineConfig{MemoryLimitMB: *memory, InboxSize: *inbox}
	mux := http.NewServeMux()
	mux.Handle("/worker", &wsport.Handler{
		Spawner: fontworker.ScriptSpawner(cfg, logger),
		Logger:  logger,
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithFields(logrus.Fields{"addr": *addr, "memory_mb": *memory}).Info("fontworkerd listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server failed")
	}
	logger.Info("fontworkerd stopped")
}
