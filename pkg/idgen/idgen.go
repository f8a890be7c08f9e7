// Package idgen hands out process-unique int64 identifiers: millisecond
// timestamp shifted left, low bits a per-millisecond sequence. Good enough
// for a single writer per deployment; not a coordination-free cluster scheme.
package idgen

import (
	"sync"
	"time"
)

const seqBits = 12

type Generator struct {
	mu    sync.Mutex
	last  int64
	seq   int64
	nowMs func() int64
}

func New() *Generator {
	return &Generator{
		nowMs: func() int64 { return time.Now().UnixMilli() },
	}
}

func (g *Generator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowMs()
	if now == g.last {
		g.seq++
		if g.seq >= 1<<seqBits {
			// Sequence exhausted within one millisecond; spin to the next.
			for now <= g.last {
				now = g.nowMs()
			}
			g.seq = 0
		}
	} else {
		g.seq = 0
	}
	g.last = now

	return now<<seqBits | g.seq
}
