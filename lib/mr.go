package lib

import "sync/atomic"

type Access int

const (
	AccessLocalWrite Access = 1 << iota
	AccessRemoteRead
	AccessRemoteWrite
)

// MR is a registered memory region. Registration pins nothing; the handle only carries the
// buffer and a pair of keys so RDMA-style callers can build remote locations.
type MR struct {
	Buf    []byte
	Access Access
	LKey   uint32
	RKey   uint32
}

func (mr *MR) Len() int { return len(mr.Buf) }

// RLoc addresses a range inside a peer's registered region.
type RLoc struct {
	RAddr uint64
	RKey  uint32
	Size  uint32
}

var mrKeys uint32

func (t *Trans) RegMR(buf []byte, access Access) (*MR, error) {
	if t == nil {
		return nil, ErrInvalidTrans
	}
	key := atomic.AddUint32(&mrKeys, 1)
	return &MR{Buf: buf, Access: access, LKey: key, RKey: key}, nil
}

func (t *Trans) DeregMR(mr *MR) error {
	if t == nil {
		return ErrInvalidTrans
	}
	if mr == nil {
		return ErrInvalidMR
	}
	mr.Buf = nil
	return nil
}

// MakeRLoc builds the remote location of size bytes at addr inside mr.
func MakeRLoc(mr *MR, addr uint64, size uint32) (*RLoc, error) {
	if mr == nil {
		return nil, ErrInvalidMR
	}
	return &RLoc{RAddr: addr, RKey: mr.RKey, Size: size}, nil
}
