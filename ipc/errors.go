package ipc

import "errors"

var (
	// ErrRemoved is returned by a semaphore wait when the set was removed, usually by the peer.
	ErrRemoved = errors.New("ipc: semaphore set removed")

	// ErrUnsupported is returned on platforms without SysV semaphores and shared memory.
	ErrUnsupported = errors.New("ipc: sysv ipc not supported on this platform")

	// ErrMessageTooLarge is returned when a payload does not fit the mailbox.
	ErrMessageTooLarge = errors.New("ipc: message larger than mailbox capacity")

	// ErrCorruptFrame is returned when the mailbox length header exceeds the capacity.
	ErrCorruptFrame = errors.New("ipc: mailbox length header out of range")

	// ErrClosed is returned when using a detached mailbox.
	ErrClosed = errors.New("ipc: mailbox closed")
)
