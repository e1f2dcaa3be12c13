package fontworker

import (
	"context"

	"github.com/cryguy/fontworker/internal/loader"
)

// Load fetches the font and engine, starts the worker and waits until it
// has reported the solving orders of the font. ctx bounds the setup only;
// the returned Controller lives until Close.
func Load(ctx context.Context, opts ...Option) (*Controller, error) {
	o := defaultOptions().apply(opts)
	session, err := loader.Load(ctx, o.loader)
	if err != nil {
		return nil, err
	}
	c := newController(session.Font, o)
	if err := c.Attach(session.Port); err != nil {
		_ = session.Port.Close()
		return nil, err
	}
	return c, nil
}
