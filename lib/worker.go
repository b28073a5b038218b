package lib

import (
	"errors"
	"sync/atomic"

	"github.com/TheSmallBoat/shmtrans/ipc"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// sendLoop services the send queue in post order. It exits when the Trans is being destroyed
// or the semaphores disappear underneath it.
func (t *Trans) sendLoop() {
	defer t.wg.Done()

	for {
		s, ok := t.next(t.send)
		if !ok {
			return
		}

		if err := t.transmit(s); err != nil {
			t.logger.Error("send failed", zap.Error(err), zap.Int("size", s.data.Size))
			t.releaseSlot(t.send, s)
			if errors.Is(err, ipc.ErrRemoved) {
				return
			}
			continue
		}

		atomic.AddUint64(&t.send.messages, 1)
		atomic.AddUint64(&t.send.bytes, uint64(s.data.Size))

		if s.callback != nil {
			s.callback(t, s.data, s.arg)
		}
		t.releaseSlot(t.send, s)
	}
}

// transmit takes the mailbox token, writes the payload and raises the peer's ready semaphore.
// The token stays taken until the peer has read the message.
func (t *Trans) transmit(s *slot) error {
	if err := t.gate.Mutex.Acquire(); err != nil {
		return err
	}
	if err := t.mailbox.Write(s.data.Buf[:s.data.Size]); err != nil {
		return multierr.Append(err, t.gate.Mutex.Release())
	}
	return t.gate.Send.Release()
}

// recvLoop waits for messages from the peer and hands each one to the oldest posted receive.
func (t *Trans) recvLoop() {
	err := t.receive()

	t.mu.Lock()
	local := t.stopping
	if t.state != StateDestroyed {
		t.state = StateClosed
	}
	notify := !local && t.disconnectCallback != nil
	if notify {
		t.callbacks.Add(1)
	}
	t.cond.Broadcast()
	t.mu.Unlock()

	if !local {
		t.logger.Warn("peer disconnected", zap.Error(err))
	}
	t.wg.Done()

	if notify {
		t.notifyDisconnect()
	}
}

// notifyDisconnect runs the disconnect callback unless a local Destroy got there first.
func (t *Trans) notifyDisconnect() {
	defer t.callbacks.Done()

	t.mu.Lock()
	if t.stopping {
		t.mu.Unlock()
		return
	}
	t.inCallback = true
	t.mu.Unlock()

	t.disconnect.Do(func() { t.disconnectCallback(t) })

	t.mu.Lock()
	t.inCallback = false
	t.mu.Unlock()
}

func (t *Trans) receive() error {
	for {
		if err := t.gate.Recv.Acquire(); err != nil {
			return err
		}

		// A message is waiting and we hold its token. Leave it in the mailbox until a receive
		// has been posted for it.
		s, ok := t.next(t.recv)
		if !ok {
			return ErrClosed
		}

		err := t.deliver(s)

		if s.callback != nil {
			s.callback(t, s.data, s.arg)
		}
		t.releaseSlot(t.recv, s)

		if err != nil {
			return err
		}
	}
}

// deliver copies the mailbox into the slot's buffer and returns the token to the writer.
func (t *Trans) deliver(s *slot) error {
	n, size, err := t.mailbox.Read(s.data.Buf)
	switch {
	case err != nil:
		t.logger.Error("read mailbox failed", zap.Error(err), zap.Int("size", size))
		s.data.Size = 0
	case n < size:
		t.logger.Warn("receive buffer too small, message truncated",
			zap.Int("size", size), zap.Int("buf", len(s.data.Buf)))
		s.data.Size = n
	default:
		s.data.Size = n
	}

	atomic.AddUint64(&t.recv.messages, 1)
	atomic.AddUint64(&t.recv.bytes, uint64(s.data.Size))

	return t.gate.Mutex.Release()
}

// next blocks until c has queued work and pops it. It reports false once the Trans is
// stopping.
func (t *Trans) next(c *channel) (*slot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for c.queue.len() == 0 && !t.stopping {
		t.cond.Wait()
	}
	if t.stopping {
		return nil, false
	}
	return c.queue.pop(), true
}

func (t *Trans) releaseSlot(c *channel, s *slot) {
	t.mu.Lock()
	c.pool.release(s)
	t.cond.Broadcast()
	t.mu.Unlock()
}
