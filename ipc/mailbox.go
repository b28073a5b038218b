package ipc

import (
	"github.com/lithdew/bytesutil"
	"go.uber.org/multierr"
)

// Mailbox is a shared segment holding at most one length-prefixed message:
//
//	[ uint32 BE length ][ payload ... ]
//
// Mailbox does no locking of its own. Callers must hold the Gate's Mutex token while calling
// Write or Read.
type Mailbox struct {
	key     int
	id      int
	created bool // this process created the segment
	data    []byte
}

func (m *Mailbox) Key() int { return m.key }

// Created reports whether the segment was created (rather than attached) by this process.
func (m *Mailbox) Created() bool { return m.created }

// Unwind releases a mailbox whose setup is being abandoned: it detaches, and removes the segment
// if this process created it.
func (m *Mailbox) Unwind() error {
	var err error
	if m.created {
		err = m.Remove()
	}
	return multierr.Append(err, m.Close())
}

// Capacity is the largest payload the mailbox accepts.
func (m *Mailbox) Capacity() int {
	if len(m.data) < HeaderSize {
		return 0
	}
	return len(m.data) - HeaderSize
}

// Write stores p as the current message.
func (m *Mailbox) Write(p []byte) error {
	if m.data == nil {
		return ErrClosed
	}
	if len(p) > m.Capacity() {
		return ErrMessageTooLarge
	}
	bytesutil.AppendUint32BE(m.data[:0], uint32(len(p)))
	copy(m.data[HeaderSize:], p)
	return nil
}

// Read copies the current message into dst. It returns the number of bytes copied and the
// length of the stored message; n < size means dst was too small.
func (m *Mailbox) Read(dst []byte) (n, size int, err error) {
	if m.data == nil {
		return 0, 0, ErrClosed
	}
	size = int(bytesutil.Uint32BE(m.data[:HeaderSize]))
	if size > m.Capacity() {
		return 0, size, ErrCorruptFrame
	}
	n = copy(dst, m.data[HeaderSize:HeaderSize+size])
	return n, size, nil
}
