package lib

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	// ErrInvalidTrans is returned when an operation needs an initialized Trans and got nil.
	ErrInvalidTrans = fmt.Errorf("trans must be initialized first: %w", unix.EINVAL)

	// ErrInvalidData is returned when a post is given a nil Data or a Size outside its Buf.
	ErrInvalidData = fmt.Errorf("data size out of range: %w", unix.EINVAL)

	// ErrInvalidAttr is returned by Init for negative depths or timeouts.
	ErrInvalidAttr = fmt.Errorf("invalid trans attributes: %w", unix.EINVAL)

	// ErrInvalidMR is returned when a memory region handle is nil.
	ErrInvalidMR = fmt.Errorf("memory region must be registered first: %w", unix.EINVAL)

	// ErrMessageTooLarge is returned by PostSend when the payload cannot fit the mailbox.
	ErrMessageTooLarge = fmt.Errorf("message larger than mailbox: %w", unix.EMSGSIZE)

	// ErrAlreadyStarted is returned when AcceptOne or Connect runs twice on one Trans.
	ErrAlreadyStarted = fmt.Errorf("trans already connected: %w", unix.EISCONN)

	// ErrClosed is returned by operations on a Trans that has been destroyed.
	ErrClosed = errors.New("trans destroyed")

	// ErrRendezvousTimeout is returned when the peer did not attach to the mailbox in time.
	ErrRendezvousTimeout = fmt.Errorf("peer did not attach to the mailbox: %w", unix.ETIMEDOUT)
)
