package lib

import (
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// pendingWrite owns a copy of a payload handed to Send or SendNoWait.
type pendingWrite struct {
	buf  *bytebufferpool.ByteBuffer // payload
	data Data                       // view of buf posted to the send queue
}

type PendingWritePool struct {
	sp sync.Pool
	m  *PoolMetrics
}

func (p *PendingWritePool) acquire(payload []byte) *pendingWrite {
	v := p.sp.Get()
	if v == nil {
		v = &pendingWrite{}
		atomic.AddUint32(&p.m.na, uint32(1))
	} else {
		atomic.AddUint32(&p.m.nr, uint32(1))
	}

	pw := v.(*pendingWrite)
	pw.buf = bytebufferpool.Get()
	_, _ = pw.buf.Write(payload)
	pw.data = Data{Buf: pw.buf.B, Size: len(pw.buf.B)}
	return pw
}

func (p *PendingWritePool) release(pw *pendingWrite) {
	bytebufferpool.Put(pw.buf)
	pw.buf = nil
	pw.data = Data{}
	p.sp.Put(pw)
	atomic.AddUint32(&p.m.np, uint32(1))
}

// releaseWriteCallback returns the pendingWrite passed as arg once the worker sent it.
func releaseWriteCallback(_ *Trans, _ *Data, arg interface{}) {
	pendingWritePool.release(arg.(*pendingWrite))
}
