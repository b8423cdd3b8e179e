package handler

import "sync/atomic"

// Gate admits one scrape run at a time. The portal is scraped strictly
// sequentially, so a second request is refused rather than queued.
type Gate struct {
	busy atomic.Bool
}

// TryEnter claims the gate, reporting false if a run is in progress.
func (g *Gate) TryEnter() bool { return g.busy.CompareAndSwap(false, true) }

// Leave releases the gate.
func (g *Gate) Leave() { g.busy.Store(false) }

// Busy reports whether a run is in progress.
func (g *Gate) Busy() bool { return g.busy.Load() }
