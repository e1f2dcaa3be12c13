// Package fontworker keeps a parametric font engine busy without ever
// blocking its caller.
//
// A Controller owns exactly one worker: a goroutine running a Go engine,
// an embedded JavaScript VM running an engine script, or a process reached
// over a websocket. Load fetches the font and engine, spawns the worker and
// waits for it to report the glyph solving orders. From then on every
// request (a parameter update, a subset change, an export) is a job in a
// priority queue with one slot per job type. Only one job is in flight at a
// time and a newer job of a type replaces the older unsent one, so a burst
// of slider moves costs a single worker round trip.
//
//	ctrl, err := fontworker.Load(ctx,
//		fontworker.WithFontURL("fonts/spectral.json"),
//		fontworker.WithEngineURL("prototypo.js"))
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//	ctrl.Update(fontworker.Values{"width": 1.2})
//	ctrl.Download(func(r fontworker.Result) { ... }, "Spectral.otf")
package fontworker
