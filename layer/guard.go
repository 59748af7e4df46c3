package layer

import "sync"

// guard stripes parameter rows over a fixed set of RWMutexes. A nil guard
// is valid and makes every method a no-op, which is the lock-free mode.
type guard struct {
	rows []sync.RWMutex
	bias sync.RWMutex
}

func newGuard(strict bool, rows int) *guard {
	if !strict {
		return nil
	}
	return &guard{rows: make([]sync.RWMutex, max(1, min(rows, DefaultStripes)))}
}

func (g *guard) rlock(row int) {
	if g != nil {
		g.rows[row%len(g.rows)].RLock()
	}
}

func (g *guard) runlock(row int) {
	if g != nil {
		g.rows[row%len(g.rows)].RUnlock()
	}
}

func (g *guard) lock(row int) {
	if g != nil {
		g.rows[row%len(g.rows)].Lock()
	}
}

func (g *guard) unlock(row int) {
	if g != nil {
		g.rows[row%len(g.rows)].Unlock()
	}
}

func (g *guard) rlockBias() {
	if g != nil {
		g.bias.RLock()
	}
}

func (g *guard) runlockBias() {
	if g != nil {
		g.bias.RUnlock()
	}
}

func (g *guard) lockBias() {
	if g != nil {
		g.bias.Lock()
	}
}

func (g *guard) unlockBias() {
	if g != nil {
		g.bias.Unlock()
	}
}

// lockAll takes every stripe and the bias lock for whole-layer replacement.
func (g *guard) lockAll() {
	if g == nil {
		return
	}
	for i := range g.rows {
		g.rows[i].Lock()
	}
	g.bias.Lock()
}

func (g *guard) unlockAll() {
	if g == nil {
		return
	}
	g.bias.Unlock()
	for i := range g.rows {
		g.rows[i].Unlock()
	}
}
