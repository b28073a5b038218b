package lib

import (
	"sync"
	"sync/atomic"
)

// pendingRequest backs the blocking Wait* calls.
type pendingRequest struct {
	wg sync.WaitGroup // signals the caller that the worker has serviced the request
}

type PendingRequestPool struct {
	sp sync.Pool
	m  *PoolMetrics
}

func (p *PendingRequestPool) acquire() *pendingRequest {
	v := p.sp.Get()
	if v == nil {
		v = &pendingRequest{}
		atomic.AddUint32(&p.m.na, uint32(1))
	} else {
		atomic.AddUint32(&p.m.nr, uint32(1))
	}
	pr := v.(*pendingRequest)
	pr.wg.Add(1)
	return pr
}

func (p *PendingRequestPool) release(pr *pendingRequest) {
	p.sp.Put(pr)
	atomic.AddUint32(&p.m.np, uint32(1))
}

// waitCallback completes the pendingRequest passed as arg.
func waitCallback(_ *Trans, _ *Data, arg interface{}) {
	arg.(*pendingRequest).wg.Done()
}
