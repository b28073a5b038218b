//go:build linux && (amd64 || arm64)

package ipc

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// semctl commands, from <linux/sem.h>.
const (
	semGetVal  = 12
	semGetNcnt = 14
	semSetVal  = 16
)

type sembuf struct {
	num uint16
	op  int16
	flg int16
}

// OpenSemaphore creates the semaphore set for key with the given initial value, or attaches to
// it if it already exists (in which case initial is ignored).
func OpenSemaphore(key, initial int) (*Semaphore, error) {
	s := &Semaphore{key: key}

	id, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(key), 1, uintptr(unix.IPC_CREAT|unix.IPC_EXCL|0666))
	switch errno {
	case 0:
		s.id = int(id)
		s.created = true
		if _, err := s.ctl(semSetVal, initial); err != nil {
			_, _ = s.ctl(unix.IPC_RMID, 0)
			return nil, fmt.Errorf("semctl(key=0x%x, SETVAL=%d): %w", key, initial, err)
		}
	case unix.EEXIST:
		id, _, errno = unix.Syscall(unix.SYS_SEMGET, uintptr(key), 1, 0666)
		if errno != 0 {
			return nil, fmt.Errorf("semget(key=0x%x, existing): %w", key, errno)
		}
		s.id = int(id)
	default:
		return nil, fmt.Errorf("semget(key=0x%x, create): %w", key, errno)
	}

	return s, nil
}

// Acquire decrements the semaphore, blocking while it is zero.
func (s *Semaphore) Acquire() error { return s.op(-1, 0) }

// Release increments the semaphore.
func (s *Semaphore) Release() error { return s.op(1, 0) }

// WaitZero blocks until the semaphore value is zero.
func (s *Semaphore) WaitZero() error { return s.op(0, 0) }

// TryAcquire decrements the semaphore if it is positive and reports whether it did.
func (s *Semaphore) TryAcquire() (bool, error) {
	err := s.op(-1, unix.IPC_NOWAIT)
	if errors.Is(err, unix.EAGAIN) {
		return false, nil
	}
	return err == nil, err
}

// Value returns the current semaphore value.
func (s *Semaphore) Value() (int, error) { return s.ctl(semGetVal, 0) }

// Waiters returns how many processes are blocked decrementing the semaphore.
func (s *Semaphore) Waiters() (int, error) { return s.ctl(semGetNcnt, 0) }

// Remove removes the set from the system, waking every waiter with EIDRM. A set that is
// already gone (removed by the peer) is not an error.
func (s *Semaphore) Remove() error {
	if !atomic.CompareAndSwapUint32(&s.removed, 0, 1) {
		return nil
	}
	_, err := s.ctl(unix.IPC_RMID, 0)
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EIDRM) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("semctl(key=0x%x, IPC_RMID): %w", s.key, err)
	}
	return nil
}

// op runs a single semop. The Go runtime preempts threads with signals and the kernel never
// restarts semop, so EINTR is retried here.
func (s *Semaphore) op(op, flg int16) error {
	sb := sembuf{num: 0, op: op, flg: flg}
	for {
		_, _, errno := unix.Syscall(unix.SYS_SEMOP, uintptr(s.id), uintptr(unsafe.Pointer(&sb)), 1)
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		case unix.EIDRM, unix.EINVAL:
			return fmt.Errorf("semop(key=0x%x, op=%d): %w: %w", s.key, op, ErrRemoved, errno)
		}
		return fmt.Errorf("semop(key=0x%x, op=%d): %w", s.key, op, errno)
	}
}

func (s *Semaphore) ctl(cmd, arg int) (int, error) {
	r, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(s.id), 0, uintptr(cmd), uintptr(arg), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}
