package lib

// slotQueue is a FIFO of slots awaiting a worker, backed by a ring sized to the pool depth.
// A pool never has more slots in use than the ring holds, so push cannot overflow.
type slotQueue struct {
	ring []*slot
	head int
	n    int
}

func newSlotQueue(depth int) *slotQueue {
	return &slotQueue{ring: make([]*slot, depth)}
}

func (q *slotQueue) len() int { return q.n }

func (q *slotQueue) push(s *slot) bool {
	if q.n == len(q.ring) {
		return false
	}
	q.ring[(q.head+q.n)%len(q.ring)] = s
	q.n++
	return true
}

func (q *slotQueue) pop() *slot {
	if q.n == 0 {
		return nil
	}
	s := q.ring[q.head]
	q.ring[q.head] = nil
	q.head = (q.head + 1) % len(q.ring)
	q.n--
	return s
}

// drain empties the queue and returns what it held, oldest first.
func (q *slotQueue) drain() []*slot {
	out := make([]*slot, 0, q.n)
	for q.n > 0 {
		out = append(out, q.pop())
	}
	return out
}
