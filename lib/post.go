package lib

import "go.uber.org/zap"

// PostRecv queues d to receive the next message from the peer. cb runs on the receiver
// goroutine once d has been filled. numSGE, mr and errCb are accepted for API compatibility
// and ignored. The returned error only reports whether the request was queued.
//
// PostRecv blocks while every receive slot is in use.
func (t *Trans) PostRecv(d *Data, numSGE int, mr *MR, cb, errCb Callback, arg interface{}) error {
	if t == nil {
		return ErrInvalidTrans
	}
	if d == nil {
		return ErrInvalidData
	}
	return t.post(t.recv, d, cb, arg)
}

// PostSend queues d[:Size] for the peer. cb runs on the sender goroutine once the payload is
// in the mailbox. See PostRecv.
func (t *Trans) PostSend(d *Data, numSGE int, mr *MR, cb, errCb Callback, arg interface{}) error {
	if t == nil {
		return ErrInvalidTrans
	}
	if d == nil || d.Size < 0 || d.Size > len(d.Buf) {
		return ErrInvalidData
	}
	if d.Size > t.MaxMessageSize() {
		return ErrMessageTooLarge
	}
	return t.post(t.send, d, cb, arg)
}

func (t *Trans) post(c *channel, d *Data, cb Callback, arg interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.acquireSlot(c, d, cb, arg)
	if err != nil {
		return err
	}
	c.queue.push(s)
	t.cond.Broadcast()
	return nil
}

// acquireSlot takes the first free slot of c, waiting for one to be released if needed.
// Caller holds t.mu.
func (t *Trans) acquireSlot(c *channel, d *Data, cb Callback, arg interface{}) (*slot, error) {
	waited := false
	for {
		if t.stopping || t.state == StateDestroyed {
			return nil, ErrClosed
		}
		if s := c.pool.acquire(d, cb, arg); s != nil {
			return s, nil
		}
		if !waited {
			waited = true
			c.pool.waited()
			t.logger.Debug("slot pool exhausted", zap.String("dir", c.name), zap.Int("depth", len(c.pool.slots)))
		}
		t.cond.Wait()
	}
}

// WaitRecv posts d and blocks until a message has been copied into it.
//
// If the peer goes away before the receive is serviced, WaitRecv blocks until Destroy is
// called on t; Destroy drops the request without completing it, so it may block forever.
func (t *Trans) WaitRecv(d *Data, numSGE int, mr *MR) error {
	return t.wait(t.PostRecv, d, numSGE, mr)
}

// WaitSend posts d and blocks until it has been written to the mailbox. See WaitRecv.
func (t *Trans) WaitSend(d *Data, numSGE int, mr *MR) error {
	return t.wait(t.PostSend, d, numSGE, mr)
}

type postFunc func(d *Data, numSGE int, mr *MR, cb, errCb Callback, arg interface{}) error

func (t *Trans) wait(post postFunc, d *Data, numSGE int, mr *MR) error {
	pr := pendingRequestPool.acquire()
	defer pendingRequestPool.release(pr)

	if err := post(d, numSGE, mr, waitCallback, nil, pr); err != nil {
		pr.wg.Done()
		return err
	}

	pr.wg.Wait()
	return nil
}

// Send copies buf and blocks until the copy has been written to the mailbox.
func (t *Trans) Send(buf []byte) error {
	pw := pendingWritePool.acquire(buf)
	defer pendingWritePool.release(pw)

	return t.WaitSend(&pw.data, 1, nil)
}

// SendNoWait copies buf and queues the copy, returning without waiting for the sender.
func (t *Trans) SendNoWait(buf []byte) error {
	pw := pendingWritePool.acquire(buf)

	if err := t.PostSend(&pw.data, 1, nil, releaseWriteCallback, nil, pw); err != nil {
		pendingWritePool.release(pw)
		return err
	}
	return nil
}
