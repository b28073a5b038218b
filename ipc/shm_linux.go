//go:build linux && (amd64 || arm64)

package ipc

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// OpenMailbox creates the segment for key, or attaches to it if the peer created it first,
// and maps it into this process. A segment created here is removed again if mapping fails.
func OpenMailbox(key, size int) (*Mailbox, error) {
	if size <= HeaderSize {
		return nil, fmt.Errorf("mailbox size %d: %w", size, unix.EINVAL)
	}

	m := &Mailbox{key: key}

	id, err := unix.SysvShmGet(key, size, unix.IPC_CREAT|unix.IPC_EXCL|0666)
	switch {
	case err == nil:
		m.created = true
	case errors.Is(err, unix.EEXIST):
		id, err = unix.SysvShmGet(key, size, 0666)
		if err != nil {
			return nil, fmt.Errorf("shmget(key=0x%x, size=%d, existing): %w", key, size, err)
		}
	default:
		return nil, fmt.Errorf("shmget(key=0x%x, size=%d, create): %w", key, size, err)
	}
	m.id = id

	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		err = fmt.Errorf("shmat(id=%d): %w", id, err)
		if m.created {
			err = multierr.Append(err, m.Remove())
		}
		return nil, err
	}
	m.data = data

	return m, nil
}

// Attached returns the number of processes (attachments) currently mapping the segment.
func (m *Mailbox) Attached() (int, error) {
	var desc unix.SysvShmDesc
	if _, err := unix.SysvShmCtl(m.id, unix.IPC_STAT, &desc); err != nil {
		return 0, fmt.Errorf("shmctl(id=%d, IPC_STAT): %w", m.id, err)
	}
	return int(desc.Nattch), nil
}

// Close unmaps the segment from this process.
func (m *Mailbox) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.SysvShmDetach(m.data)
	m.data = nil
	if err != nil {
		return fmt.Errorf("shmdt(id=%d): %w", m.id, err)
	}
	return nil
}

// Remove marks the segment for destruction once every attachment is gone. A segment already
// removed by the peer is not an error.
func (m *Mailbox) Remove() error {
	_, err := unix.SysvShmCtl(m.id, unix.IPC_RMID, nil)
	if err == nil || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EIDRM) {
		return nil
	}
	return fmt.Errorf("shmctl(id=%d, IPC_RMID): %w", m.id, err)
}
