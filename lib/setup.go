package lib

import (
	"time"

	"github.com/TheSmallBoat/shmtrans/ipc"
	"github.com/jpillora/backoff"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var openGate = ipc.OpenGate

// setupResources opens the mailbox and the semaphore gate. On failure everything opened so far
// is released. Caller holds t.mu.
func (t *Trans) setupResources() error {
	mailbox, err := ipc.OpenMailbox(t.keys.Shm, t.size)
	if err != nil {
		t.logger.Error("open mailbox failed", zap.Error(err))
		return err
	}

	gate, err := openGate(t.keys, t.server)
	if err != nil {
		t.logger.Error("open semaphores failed", zap.Error(err))
		return multierr.Append(err, mailbox.Unwind())
	}

	t.mailbox = mailbox
	t.gate = gate
	return nil
}

// AcceptOne finalizes the server side: it opens the shared resources, starts the workers and
// waits for a client to attach to the same mailbox. The mailbox carries one peer per key set,
// so the accepted connection is t itself.
func (t *Trans) AcceptOne() (*Trans, error) {
	if t == nil {
		return nil, ErrInvalidTrans
	}
	if err := t.start(true); err != nil {
		return nil, err
	}
	return t, nil
}

// Connect finalizes the client side. See AcceptOne.
func (t *Trans) Connect() error {
	if t == nil {
		return ErrInvalidTrans
	}
	return t.start(false)
}

func (t *Trans) start(accept bool) error {
	if err := t.launch(); err != nil {
		return err
	}
	return t.handshake(accept)
}

// launch opens the shared resources and starts both workers.
func (t *Trans) launch() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopping {
		return ErrClosed
	}
	if t.started {
		return ErrAlreadyStarted
	}
	if err := t.setupResources(); err != nil {
		return err
	}
	t.started = true

	// Both workers block on t.mu until the Trans is fully set up.
	t.wg.Add(2)
	go t.sendLoop()
	go t.recvLoop()

	return nil
}

func (t *Trans) handshake(accept bool) error {
	if err := t.rendezvous(accept); err != nil {
		t.logger.Error("rendezvous failed", zap.Error(err))
		return multierr.Append(err, t.Destroy())
	}

	t.mu.Lock()
	if t.state == StateInit {
		t.state = StateConnected
	}
	t.mu.Unlock()

	t.logger.Debug("connected", zap.Int("mailbox_key", t.keys.Shm))
	return nil
}

// rendezvous waits until both peers are attached to the mailbox segment, passing the mailbox
// token once along the way. The peer may already hold the token for a message it sent right
// after its own setup, so the token is only tried, never waited for. Every step is bounded by
// the timeout.
func (t *Trans) rendezvous(accept bool) error {
	b := &backoff.Backoff{
		Factor: 1.25,
		Jitter: true,
		Min:    1 * time.Millisecond,
		Max:    100 * time.Millisecond,
	}
	deadline := time.Now().Add(t.timeout)
	exchanged := false

	for {
		if !exchanged {
			ok, err := t.exchangeToken(accept)
			if err != nil {
				return err
			}
			exchanged = ok
		}

		n, err := t.mailbox.Attached()
		if err != nil {
			return err
		}
		// A token we could not take is held by a message the attached peer already sent.
		if n >= 2 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrRendezvousTimeout
		}
		timerPool.sleep(b.Duration())
	}
}

// exchangeToken takes and returns the mailbox token if it is free. It reports false when the
// token is held elsewhere.
func (t *Trans) exchangeToken(accept bool) (bool, error) {
	ok, err := t.gate.Mutex.TryAcquire()
	if err != nil || !ok {
		return false, err
	}
	if accept {
		if err := t.gate.Mutex.WaitZero(); err != nil {
			return false, multierr.Append(err, t.gate.Mutex.Release())
		}
	}
	return true, t.gate.Mutex.Release()
}

// Destroy tears the connection down: it stops the sender, removes the semaphores (which ends
// the receiver and signals the peer), waits for both workers, drops every queued request and
// removes the mailbox. Queued requests are dropped without their callbacks running.
//
// Destroy is idempotent. It must not be called from a completion callback. A disconnect
// callback that has not started when Destroy begins is skipped and Destroy returns only after
// the receiver has let go of it. A disconnect callback that is already running is not waited
// for, since it may be the caller.
func (t *Trans) Destroy() error {
	if t == nil {
		return ErrInvalidTrans
	}
	t.destroy.Do(func() { t.destroyErr = t.teardown() })
	return t.destroyErr
}

func (t *Trans) teardown() error {
	t.mu.Lock()
	t.stopping = true
	t.cond.Broadcast()
	gate, mailbox := t.gate, t.mailbox
	running := t.inCallback
	t.mu.Unlock()

	var err error
	if gate != nil {
		err = multierr.Append(err, gate.Remove())
	}

	t.wg.Wait()
	if !running {
		t.callbacks.Wait()
	}

	t.mu.Lock()
	dropped := t.drop(t.send) + t.drop(t.recv)
	t.state = StateDestroyed
	t.cond.Broadcast()
	t.mu.Unlock()

	if dropped > 0 {
		t.logger.Warn("dropped queued requests", zap.Int("count", dropped))
	}

	if mailbox != nil {
		err = multierr.Append(err, mailbox.Remove())
		err = multierr.Append(err, mailbox.Close())
	}

	if err != nil {
		t.logger.Error("destroy failed", zap.Error(err))
	}
	return err
}

// drop releases every queued slot of c. Caller holds t.mu.
func (t *Trans) drop(c *channel) int {
	slots := c.queue.drain()
	for _, s := range slots {
		c.pool.release(s)
	}
	return len(slots)
}
