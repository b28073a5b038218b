// Package lib implements an RDMA-style messaging API between two processes on one host. Payload
// bytes cross the process boundary through a single SysV shared-memory mailbox, coordinated by
// three SysV semaphores; each Trans runs a sender and a receiver goroutine that service the
// requests posted by the caller.
package lib

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheSmallBoat/shmtrans/ipc"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 3000000 * time.Millisecond
	DefaultSQDepth = 5
	DefaultRQDepth = 5
)

type State int

const (
	StateInit State = iota
	StateConnected
	StateClosed
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Attr configures a Trans. Zero values select the defaults.
type Attr struct {
	Server bool

	// Timeout bounds the connect rendezvous. Posts and waits are not bounded by it.
	Timeout time.Duration

	SQDepth int // send slots
	RQDepth int // receive slots

	// DisconnectCallback runs once, on the receiver goroutine, when the peer goes away. It may
	// call Destroy. It is skipped if a local Destroy starts first.
	DisconnectCallback func(t *Trans)

	Logger *zap.Logger

	// Keys and MailboxSize must match on both peers.
	Keys        ipc.Keys
	MailboxSize int
}

// channel is the per-direction state: a slot pool and the queue of slots awaiting a worker.
type channel struct {
	name  string
	pool  *slotPool
	queue *slotQueue

	messages uint64 // serviced requests
	bytes    uint64 // payload bytes moved through the mailbox
}

func newChannel(name string, depth int) *channel {
	return &channel{name: name, pool: newSlotPool(depth), queue: newSlotQueue(depth)}
}

var transIDs uint64

// Trans is one end of a connection.
type Trans struct {
	id      uint64
	server  bool
	timeout time.Duration
	keys    ipc.Keys
	size    int

	disconnectCallback func(t *Trans)
	logger             *zap.Logger

	// mu guards both channels, state and stopping. cond is shared by every waiter: producers
	// waiting for a free slot and workers waiting for queued work. Each waiter rechecks its
	// own predicate after waking.
	mu       sync.Mutex
	cond     sync.Cond
	state    State
	started  bool
	stopping bool

	send *channel
	recv *channel

	mailbox *ipc.Mailbox
	gate    *ipc.Gate

	wg         sync.WaitGroup // worker goroutines
	destroy    sync.Once
	destroyErr error

	disconnect sync.Once
	callbacks  sync.WaitGroup // pending disconnect callback
	inCallback bool
}

// Init allocates a Trans in StateInit. Receives and sends may be posted right away; they are
// serviced once AcceptOne or Connect has started the workers.
func Init(attr Attr) (*Trans, error) {
	if attr.Timeout < 0 || attr.SQDepth < 0 || attr.RQDepth < 0 || attr.MailboxSize < 0 {
		return nil, ErrInvalidAttr
	}
	if attr.MailboxSize != 0 && attr.MailboxSize <= ipc.HeaderSize {
		return nil, ErrInvalidAttr
	}

	t := &Trans{
		id:                 atomic.AddUint64(&transIDs, 1),
		server:             attr.Server,
		timeout:            attr.Timeout,
		keys:               attr.Keys.OrDefault(),
		size:               attr.MailboxSize,
		disconnectCallback: attr.DisconnectCallback,
		logger:             attr.Logger,
	}
	if t.timeout == 0 {
		t.timeout = DefaultTimeout
	}
	if t.size == 0 {
		t.size = ipc.DefaultMailboxSize
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	t.logger = t.logger.Named("shmtrans").With(zap.String("role", t.Role()), zap.Uint64("trans", t.id))

	sq, rq := attr.SQDepth, attr.RQDepth
	if sq == 0 {
		sq = DefaultSQDepth
	}
	if rq == 0 {
		rq = DefaultRQDepth
	}
	t.send = newChannel("send", sq)
	t.recv = newChannel("recv", rq)

	t.cond.L = &t.mu

	return t, nil
}

func (t *Trans) ID() uint64             { return t.id }
func (t *Trans) IsServer() bool         { return t.server }
func (t *Trans) Timeout() time.Duration { return t.timeout }
func (t *Trans) Keys() ipc.Keys         { return t.keys }
func (t *Trans) Logger() *zap.Logger    { return t.logger }
func (t *Trans) MaxMessageSize() int    { return t.size - ipc.HeaderSize }
func (t *Trans) SendDepth() int         { return len(t.send.pool.slots) }
func (t *Trans) RecvDepth() int         { return len(t.recv.pool.slots) }

func (t *Trans) Role() string {
	if t.server {
		return "server"
	}
	return "client"
}

func (t *Trans) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SendStats and RecvStats snapshot the slot pools.
func (t *Trans) SendStats() SlotStats { return t.stats(t.send) }
func (t *Trans) RecvStats() SlotStats { return t.stats(t.recv) }

func (t *Trans) stats(c *channel) SlotStats {
	t.mu.Lock()
	inUse := c.pool.inUse
	t.mu.Unlock()
	return SlotStats{
		Depth:    len(c.pool.slots),
		InUse:    inUse,
		Acquires: atomic.LoadUint64(&c.pool.acquires),
		Waits:    atomic.LoadUint64(&c.pool.waits),
		Releases: atomic.LoadUint64(&c.pool.releases),
	}
}

// BindServer is kept for API compatibility with RDMA transports; the mailbox needs no address.
func (t *Trans) BindServer() error {
	if t == nil {
		return ErrInvalidTrans
	}
	return nil
}

// StartCMThread is kept for API compatibility with RDMA transports; there are no connection
// manager events to process.
func (t *Trans) StartCMThread() error {
	if t == nil {
		return ErrInvalidTrans
	}
	return nil
}
