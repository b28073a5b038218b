package lib

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimerPool recycles the timers the connect rendezvous sleeps on between attach polls.
type TimerPool struct {
	sp sync.Pool
	m  *PoolMetrics
}

func (p *TimerPool) acquire(d time.Duration) *time.Timer {
	v := p.sp.Get()
	if v == nil {
		atomic.AddUint32(&p.m.na, uint32(1))
		return time.NewTimer(d)
	}
	atomic.AddUint32(&p.m.nr, uint32(1))
	t := v.(*time.Timer)
	t.Reset(d)
	return t
}

// release stops t and drains a pending fire so the next acquire starts clean.
func (p *TimerPool) release(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	p.sp.Put(t)
	atomic.AddUint32(&p.m.np, uint32(1))
}

// sleep blocks for d on a pooled timer.
func (p *TimerPool) sleep(d time.Duration) {
	t := p.acquire(d)
	<-t.C
	p.release(t)
}
