// Package loader turns a font and a parametric engine into a ready worker:
// it fetches what was not given inline, builds the bootstrap script,
// spawns the worker and drives the handshake.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/handshake"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Session is a worker that finished its handshake, together with the font
// it was initialized with.
type Session struct {
	Port core.Port
	Font *core.FontSource
}

// Load prepares a worker. The font in the returned session carries the
// solving orders reported by the worker. ctx bounds the whole setup,
// handshake included.
func Load(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Spawner == nil {
		return nil, errors.New("loader: no spawner configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "loader")
	needScript := core.RequiresScript(cfg.Spawner)

	f := &fetcher{client: cfg.HTTPClient, base: cfg.BaseURL, maxSize: cfg.MaxResourceSize}
	var (
		fontData []byte
		engine   = cfg.EngineSource
	)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.FontSource == nil && cfg.FontJSON == nil {
		if cfg.FontURL == "" {
			return nil, errors.New("loader: no font source or URL")
		}
		g.Go(func() error {
			data, err := f.fetch(gctx, cfg.FontURL)
			fontData = data
			return err
		})
	}
	if needScript && engine == "" {
		if cfg.EngineURL == "" {
			return nil, errors.New("loader: no engine source or URL")
		}
		g.Go(func() error {
			data, err := f.fetch(gctx, cfg.EngineURL)
			engine = string(data)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	font := cfg.FontSource
	if font == nil {
		raw := cfg.FontJSON
		if raw == nil {
			raw = fontData
		}
		var err error
		if font, err = core.ParseFont(raw); err != nil {
			return nil, err
		}
	}

	var script string
	if needScript {
		var err error
		if script, err = BuildScript(engine); err != nil {
			return nil, err
		}
	}

	var key string
	if cfg.Cache != nil {
		key = preannotate(cfg.Cache, font, log)
	}

	port, err := cfg.Spawner.Spawn(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("spawning worker: %w", err)
	}
	if err := handshake.New(port, font, cfg.Policy, logger).Run(ctx); err != nil {
		_ = port.Close()
		return nil, err
	}

	if key != "" {
		if err := cfg.Cache.Store(key, font.SolvingOrders()); err != nil {
			log.WithError(err).Warn("could not cache solving orders")
		}
	}
	log.WithField("glyphs", len(font.Glyphs)).Info("worker ready")
	return &Session{Port: port, Font: font}, nil
}

// preannotate applies cached solving orders to font and returns the key
// the fresh orders should be stored under. Cache failures only cost the
// shortcut.
func preannotate(cache core.OrderCache, font *core.FontSource, log logrus.FieldLogger) string {
	key, err := font.Key()
	if err != nil {
		log.WithError(err).Warn("cannot compute font key, order cache disabled")
		return ""
	}
	orders, err := cache.Lookup(key)
	if err != nil {
		log.WithError(err).Warn("order cache lookup failed")
		return key
	}
	if applied, _ := font.ApplySolvingOrders(orders); applied > 0 {
		log.WithField("glyphs", applied).Debug("solving orders restored from cache")
	}
	return key
}
