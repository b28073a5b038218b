package lib

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var DefaultTickerDuration = 1 * time.Second

// na + nr equal the total number of acquires
// na + nr - np equal the number still held by callers.
type PoolMetrics struct {
	na uint32 // number of new acquires
	nr uint32 // number of reuse from pool
	np uint32 // number of put back to pool

	mu  sync.Mutex // serializes folding into the accumulators
	naa uint64     // accumulative
	nra uint64     // accumulative
	npa uint64     // accumulative

	done chan struct{}
}

func newPoolMetrics() *PoolMetrics {
	return &PoolMetrics{}
}

func (p *PoolMetrics) setMetrics() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.naa += uint64(atomic.SwapUint32(&p.na, uint32(0)))
	p.nra += uint64(atomic.SwapUint32(&p.nr, uint32(0)))
	p.npa += uint64(atomic.SwapUint32(&p.np, uint32(0)))
}

func (p *PoolMetrics) start() {
	p.mu.Lock()
	if p.done != nil {
		p.mu.Unlock()
		return
	}
	done := make(chan struct{})
	p.done = done
	p.mu.Unlock()

	ticker := time.NewTicker(DefaultTickerDuration)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.setMetrics()
			case <-done:
				p.setMetrics()
				return
			}
		}
	}()
}

func (p *PoolMetrics) release() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()

	if done != nil {
		close(done)
	}
}

// totals returns new acquires, reuses and put backs since the process started.
func (p *PoolMetrics) totals() (na, nr, np uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.naa + uint64(atomic.LoadUint32(&p.na)),
		p.nra + uint64(atomic.LoadUint32(&p.nr)),
		p.npa + uint64(atomic.LoadUint32(&p.np))
}

func (p *PoolMetrics) metricsString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("[ %v|%v|%v, %v|%v|%v ]",
		atomic.LoadUint32(&p.na), atomic.LoadUint32(&p.nr), atomic.LoadUint32(&p.np),
		p.naa, p.nra, p.npa)
}
