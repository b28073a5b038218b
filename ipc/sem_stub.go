//go:build !linux || !(amd64 || arm64)

package ipc

func OpenSemaphore(key, initial int) (*Semaphore, error) { return nil, ErrUnsupported }

func (s *Semaphore) Acquire() error            { return ErrUnsupported }
func (s *Semaphore) Release() error            { return ErrUnsupported }
func (s *Semaphore) WaitZero() error           { return ErrUnsupported }
func (s *Semaphore) TryAcquire() (bool, error) { return false, ErrUnsupported }
func (s *Semaphore) Value() (int, error)       { return 0, ErrUnsupported }
func (s *Semaphore) Waiters() (int, error)     { return 0, ErrUnsupported }
func (s *Semaphore) Remove() error             { return nil }
