package lib

// Data is a caller-owned buffer handed to a post call. The transport borrows it until the
// completion callback has run.
//
// A send transmits Buf[:Size]. A receive fills Buf from the start, accepting at most len(Buf)
// bytes, and sets Size to the number of bytes stored.
type Data struct {
	Buf  []byte
	Size int
}

// NewData returns a Data backed by a fresh buffer of the given size.
func NewData(size int) *Data { return &Data{Buf: make([]byte, size)} }

func (d *Data) Bytes() []byte { return d.Buf[:d.Size] }

// Callback is invoked from a worker goroutine once a posted request has been serviced.
type Callback func(t *Trans, d *Data, arg interface{})
