package lib

import (
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TheSmallBoat/shmtrans/ipc"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"
)

var keySeq int32

func testKeys() ipc.Keys {
	base := 0x50000000 | (os.Getpid()&0xfffff)<<8 | int(atomic.AddInt32(&keySeq, 4)&0xfc)
	return ipc.Keys{Shm: base, Mutex: base, ServerSem: base + 1, ClientSem: base + 2}
}

func requireSysV(t *testing.T) {
	t.Helper()

	s, err := ipc.OpenSemaphore(testKeys().Mutex, 0)
	if errors.Is(err, ipc.ErrUnsupported) || errors.Is(err, unix.ENOSYS) ||
		errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		t.Skipf("sysv ipc unavailable: %v", err)
	}
	require.NoError(t, err)
	require.NoError(t, s.Remove())
}

func testAttr(t *testing.T, keys ipc.Keys, depth int) Attr {
	return Attr{
		Timeout:     10 * time.Second,
		SQDepth:     depth,
		RQDepth:     depth,
		Logger:      zaptest.NewLogger(t),
		Keys:        keys,
		MailboxSize: 64 * 1024,
	}
}

// connect brings up a server and a client Trans on the same keys.
func connect(t *testing.T, srvAttr, cliAttr Attr) (*Trans, *Trans) {
	t.Helper()

	srvAttr.Server = true
	cliAttr.Server = false

	srv, err := Init(srvAttr)
	require.NoError(t, err)
	cli, err := Init(cliAttr)
	require.NoError(t, err)

	accepted := make(chan error, 1)
	go func() {
		_, err := srv.AcceptOne()
		accepted <- err
	}()

	require.NoError(t, cli.Connect())
	require.NoError(t, <-accepted)

	require.Equal(t, StateConnected, srv.State())
	require.Equal(t, StateConnected, cli.State())

	return srv, cli
}

func newPair(t *testing.T, depth int) (*Trans, *Trans) {
	t.Helper()

	requireSysV(t)

	keys := testKeys()
	return connect(t, testAttr(t, keys, depth), testAttr(t, keys, depth))
}

func destroy(t *testing.T, ts ...*Trans) {
	for _, tr := range ts {
		require.NoError(t, tr.Destroy())
		require.Equal(t, StateDestroyed, tr.State())
	}
}

// recvN runs n blocking receives on tr and returns the payloads in arrival order.
func recvN(tr *Trans, n, size int) <-chan [][]byte {
	out := make(chan [][]byte, 1)
	go func() {
		var got [][]byte
		for i := 0; i < n; i++ {
			d := NewData(size)
			if err := tr.WaitRecv(d, 1, nil); err != nil {
				break
			}
			got = append(got, append([]byte(nil), d.Bytes()...))
		}
		out <- got
	}()
	return out
}

func TestInit(t *testing.T) {
	tr, err := Init(Attr{})
	require.NoError(t, err)
	defer tr.Destroy()

	require.False(t, tr.IsServer())
	require.Equal(t, "client", tr.Role())
	require.Equal(t, DefaultTimeout, tr.Timeout())
	require.Equal(t, DefaultSQDepth, tr.SendDepth())
	require.Equal(t, DefaultRQDepth, tr.RecvDepth())
	require.Equal(t, ipc.DefaultKeys, tr.Keys())
	require.Equal(t, ipc.DefaultMailboxSize-ipc.HeaderSize, tr.MaxMessageSize())
	require.Equal(t, StateInit, tr.State())
	require.NotNil(t, tr.Logger())

	srv, err := Init(Attr{Server: true, SQDepth: 2, RQDepth: 3, MailboxSize: 128})
	require.NoError(t, err)
	defer srv.Destroy()

	require.True(t, srv.IsServer())
	require.Equal(t, 2, srv.SendDepth())
	require.Equal(t, 3, srv.RecvDepth())
	require.Equal(t, 128-ipc.HeaderSize, srv.MaxMessageSize())
	require.NotEqual(t, tr.ID(), srv.ID())

	for _, attr := range []Attr{
		{Timeout: -1},
		{SQDepth: -1},
		{RQDepth: -1},
		{MailboxSize: -1},
		{MailboxSize: ipc.HeaderSize},
	} {
		_, err := Init(attr)
		require.ErrorIs(t, err, ErrInvalidAttr)
		require.ErrorIs(t, err, unix.EINVAL)
	}
}

func TestNilTrans(t *testing.T) {
	var tr *Trans

	_, err := tr.AcceptOne()
	require.ErrorIs(t, err, ErrInvalidTrans)
	require.ErrorIs(t, err, unix.EINVAL)

	require.ErrorIs(t, tr.Connect(), ErrInvalidTrans)
	require.ErrorIs(t, tr.BindServer(), ErrInvalidTrans)
	require.ErrorIs(t, tr.StartCMThread(), ErrInvalidTrans)
	require.ErrorIs(t, tr.PostSend(NewData(1), 1, nil, nil, nil, nil), ErrInvalidTrans)
	require.ErrorIs(t, tr.PostRecv(NewData(1), 1, nil, nil, nil, nil), ErrInvalidTrans)
	require.ErrorIs(t, tr.WaitSend(NewData(1), 1, nil), ErrInvalidTrans)
	require.ErrorIs(t, tr.WaitRecv(NewData(1), 1, nil), ErrInvalidTrans)
	require.ErrorIs(t, tr.Destroy(), ErrInvalidTrans)

	_, err = tr.RegMR(nil, AccessLocalWrite)
	require.ErrorIs(t, err, ErrInvalidTrans)
}

func TestPostValidation(t *testing.T) {
	tr, err := Init(Attr{MailboxSize: 16})
	require.NoError(t, err)

	require.ErrorIs(t, tr.PostSend(nil, 1, nil, nil, nil, nil), ErrInvalidData)
	require.ErrorIs(t, tr.PostRecv(nil, 1, nil, nil, nil, nil), ErrInvalidData)
	require.ErrorIs(t, tr.PostSend(&Data{Buf: make([]byte, 2), Size: 3}, 1, nil, nil, nil, nil), ErrInvalidData)
	require.ErrorIs(t, tr.PostSend(&Data{Buf: make([]byte, 2), Size: -1}, 1, nil, nil, nil, nil), ErrInvalidData)

	err = tr.PostSend(&Data{Buf: make([]byte, 13), Size: 13}, 1, nil, nil, nil, nil)
	require.ErrorIs(t, err, ErrMessageTooLarge)
	require.ErrorIs(t, err, unix.EMSGSIZE)
	require.ErrorIs(t, tr.Send(make([]byte, 13)), ErrMessageTooLarge)
	require.ErrorIs(t, tr.SendNoWait(make([]byte, 13)), ErrMessageTooLarge)

	// Posting before connecting queues the request.
	require.NoError(t, tr.PostSend(&Data{Buf: make([]byte, 12), Size: 12}, 1, nil, nil, nil, nil))
	require.NoError(t, tr.PostRecv(NewData(12), 1, nil, nil, nil, nil))
	require.Equal(t, 1, tr.SendStats().InUse)
	require.Equal(t, 1, tr.RecvStats().InUse)

	require.NoError(t, tr.Destroy())
	require.NoError(t, tr.Destroy())
	require.Equal(t, StateDestroyed, tr.State())

	require.Zero(t, tr.SendStats().InUse)
	require.Zero(t, tr.RecvStats().InUse)

	require.ErrorIs(t, tr.PostSend(NewData(1), 1, nil, nil, nil, nil), ErrClosed)
	require.ErrorIs(t, tr.Connect(), ErrClosed)
}

func TestStubs(t *testing.T) {
	tr, err := Init(Attr{})
	require.NoError(t, err)
	defer tr.Destroy()

	require.NoError(t, tr.BindServer())
	require.NoError(t, tr.StartCMThread())

	buf := make([]byte, 64)
	mr, err := tr.RegMR(buf, AccessLocalWrite|AccessRemoteRead)
	require.NoError(t, err)
	require.Equal(t, 64, mr.Len())
	require.Equal(t, mr.LKey, mr.RKey)

	mr2, err := tr.RegMR(buf, AccessRemoteWrite)
	require.NoError(t, err)
	require.NotEqual(t, mr.RKey, mr2.RKey)

	loc, err := MakeRLoc(mr, 0x1000, 32)
	require.NoError(t, err)
	require.Equal(t, RLoc{RAddr: 0x1000, RKey: mr.RKey, Size: 32}, *loc)

	_, err = MakeRLoc(nil, 0, 0)
	require.ErrorIs(t, err, ErrInvalidMR)

	d := NewData(8)
	called := false
	cb := func(*Trans, *Data, interface{}) { called = true }

	require.NoError(t, tr.PostRead(d, mr, loc, cb, cb, nil))
	require.NoError(t, tr.PostWrite(d, mr, loc, cb, cb, nil))
	require.NoError(t, tr.WaitRead(d, mr, loc))
	require.NoError(t, tr.WaitWrite(d, mr, loc))
	require.False(t, called)
	require.Zero(t, d.Size)

	require.NoError(t, tr.DeregMR(mr))
	require.Nil(t, mr.Buf)
	require.ErrorIs(t, tr.DeregMR(nil), ErrInvalidMR)
}

func TestConnectTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, cli := newPair(t, 2)
	defer destroy(t, srv, cli)

	require.ErrorIs(t, cli.Connect(), ErrAlreadyStarted)

	_, err := srv.AcceptOne()
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestRendezvousTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	requireSysV(t)

	attr := testAttr(t, testKeys(), 1)
	attr.Server = true
	attr.Timeout = 50 * time.Millisecond

	srv, err := Init(attr)
	require.NoError(t, err)

	_, err = srv.AcceptOne()
	require.ErrorIs(t, err, ErrRendezvousTimeout)
	require.ErrorIs(t, err, unix.ETIMEDOUT)
	require.Equal(t, StateDestroyed, srv.State())
}
