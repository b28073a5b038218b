package lib

import "sync/atomic"

// slot tracks one posted request. Slots live in a fixed array and are recycled, never freed.
type slot struct {
	used     bool
	data     *Data
	callback Callback
	arg      interface{}
}

// slotPool is a fixed-capacity array of slots. Every method expects Trans.mu to be held;
// the counters are atomic so metrics can be read without it.
type slotPool struct {
	slots []slot
	inUse int

	acquires uint64 // number of slots handed out
	waits    uint64 // number of acquires that had to wait for a free slot
	releases uint64 // number of slots put back
}

func newSlotPool(depth int) *slotPool {
	return &slotPool{slots: make([]slot, depth)}
}

// acquire returns the first free slot in scan order, or nil if every slot is in use.
func (p *slotPool) acquire(d *Data, cb Callback, arg interface{}) *slot {
	for i := range p.slots {
		s := &p.slots[i]
		if s.used {
			continue
		}
		s.used = true
		s.data = d
		s.callback = cb
		s.arg = arg
		p.inUse++
		atomic.AddUint64(&p.acquires, 1)
		return s
	}
	return nil
}

func (p *slotPool) release(s *slot) {
	if !s.used {
		return
	}
	s.used = false
	s.data = nil
	s.callback = nil
	s.arg = nil
	p.inUse--
	atomic.AddUint64(&p.releases, 1)
}

func (p *slotPool) waited() { atomic.AddUint64(&p.waits, 1) }

// SlotStats is a snapshot of one slot pool.
type SlotStats struct {
	Depth    int
	InUse    int
	Acquires uint64
	Waits    uint64
	Releases uint64
}
