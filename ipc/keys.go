package ipc

// Fixed SysV keys shared by both peers. A server and a client using the same Keys agree on
// which semaphore signals which direction.
const (
	DefaultShmKey       = 4213
	DefaultSemKey       = 4241
	DefaultServerSemKey = 4242 // server -> client "ready"
	DefaultClientSemKey = 4243 // client -> server "ready"
)

// HeaderSize is the size of the length prefix in front of the mailbox payload.
const HeaderSize = 4

// DefaultMailboxSize is the size of the shared segment, header included.
const DefaultMailboxSize = 100 * 1024 * 1025

var DefaultKeys = Keys{
	Shm:       DefaultShmKey,
	Mutex:     DefaultSemKey,
	ServerSem: DefaultServerSemKey,
	ClientSem: DefaultClientSemKey,
}

// Keys identifies the mailbox segment and the three semaphores of a Gate.
type Keys struct {
	Shm       int
	Mutex     int
	ServerSem int
	ClientSem int
}

// OrDefault fills every zero key from DefaultKeys.
func (k Keys) OrDefault() Keys {
	if k.Shm == 0 {
		k.Shm = DefaultKeys.Shm
	}
	if k.Mutex == 0 {
		k.Mutex = DefaultKeys.Mutex
	}
	if k.ServerSem == 0 {
		k.ServerSem = DefaultKeys.ServerSem
	}
	if k.ClientSem == 0 {
		k.ClientSem = DefaultKeys.ClientSem
	}
	return k
}

// SendKey is the key of the semaphore the given role increments after writing the mailbox.
func (k Keys) SendKey(server bool) int {
	if server {
		return k.ServerSem
	}
	return k.ClientSem
}

// RecvKey is the key of the semaphore the given role waits on before reading the mailbox.
func (k Keys) RecvKey(server bool) int {
	if server {
		return k.ClientSem
	}
	return k.ServerSem
}
