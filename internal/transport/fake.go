package transport

import (
	"fmt"
	"time"
)

// FakeTransport is an in-memory BlockTransport standing in for real USB
// hardware in tests, the same role the teacher's strategy flags
// (useUSB/useKernel/useCGMiner) play in letting higher layers of the
// device be exercised without an attached ASIC.
type FakeTransport struct {
	// Inbox holds bytes returned by successive Read calls, in order.
	Inbox []byte
	// Outbox accumulates every byte written.
	Outbox []byte
	// ShortReadAt, if >= 0, makes the read of that absolute inbox offset
	// return fewer bytes than requested (simulating a dropped block).
	ShortReadAt int
	// FailWrite/FailRead force the respective call to return err.
	FailWrite error
	FailRead  error

	readPos int
	closed  bool
}

// NewFakeTransport returns a FakeTransport primed with inbox as the bytes
// it will hand back on Read calls.
func NewFakeTransport(inbox []byte) *FakeTransport {
	return &FakeTransport{Inbox: inbox, ShortReadAt: -1}
}

func (f *FakeTransport) Write(data []byte, _ time.Duration) error {
	if f.FailWrite != nil {
		return f.FailWrite
	}
	f.Outbox = append(f.Outbox, data...)
	return nil
}

func (f *FakeTransport) Read(length int, _ time.Duration) ([]byte, error) {
	if f.FailRead != nil {
		return nil, f.FailRead
	}
	out := make([]byte, 0, length)
	for len(out) < length {
		if f.readPos >= len(f.Inbox) {
			return nil, fmt.Errorf("transport: fake inbox exhausted after %d bytes", len(out))
		}
		want := length - len(out)
		if want > BlockSize {
			want = BlockSize
		}
		if f.readPos+want > len(f.Inbox) {
			want = len(f.Inbox) - f.readPos
		}
		if f.ShortReadAt == f.readPos && want > 1 {
			want = 1
		}
		out = append(out, f.Inbox[f.readPos:f.readPos+want]...)
		f.readPos += want
		if want < BlockSize && len(out) < length {
			break
		}
	}
	return out, nil
}

func (f *FakeTransport) Close() error {
	f.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (f *FakeTransport) Closed() bool {
	return f.closed
}
