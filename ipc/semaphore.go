// Package ipc wraps the SysV primitives two processes on the same host share: a set of
// semaphores keyed by role (the Gate) and a single shared segment used as a one-message
// mailbox.
package ipc

import (
	"sync"

	"go.uber.org/multierr"
)

// Semaphore is a SysV semaphore set holding exactly one semaphore.
type Semaphore struct {
	key     int
	id      int
	created bool   // this process created the set
	removed uint32 // set to 1 once Remove ran
}

func (s *Semaphore) Key() int { return s.key }

// Created reports whether the set was created (rather than attached) by this process.
func (s *Semaphore) Created() bool { return s.created }

// Gate is the three semaphores coordinating a mailbox between a server and a client.
//
// Mutex guards the mailbox: whoever holds its single token may write the mailbox. Send is
// raised by this role after writing; Recv is the peer's Send and is awaited before reading.
// The Mutex token travels with the message: the writer acquires it and the reader returns it.
type Gate struct {
	Mutex *Semaphore
	Send  *Semaphore
	Recv  *Semaphore

	once sync.Once
	err  error
}

// OpenGate creates or attaches the three semaphores for the given role. Semaphores created by
// this call are removed again if a later one fails.
func OpenGate(keys Keys, server bool) (*Gate, error) {
	keys = keys.OrDefault()

	mutex, err := OpenSemaphore(keys.Mutex, 1)
	if err != nil {
		return nil, err
	}

	send, err := OpenSemaphore(keys.SendKey(server), 0)
	if err != nil {
		return nil, multierr.Append(err, unwind(mutex))
	}

	recv, err := OpenSemaphore(keys.RecvKey(server), 0)
	if err != nil {
		return nil, multierr.Combine(err, unwind(send), unwind(mutex))
	}

	return &Gate{Mutex: mutex, Send: send, Recv: recv}, nil
}

func unwind(s *Semaphore) error {
	if !s.created {
		return nil
	}
	return s.Remove()
}

// Remove removes all three semaphore sets. Only the first call does any work; later calls
// return the first call's result.
func (g *Gate) Remove() error {
	g.once.Do(func() {
		g.err = multierr.Combine(g.Send.Remove(), g.Recv.Remove(), g.Mutex.Remove())
	})
	return g.err
}
