// Package transport implements the USB side of the ASM protocol: the bulk
// IN/OUT pipe the dialogue and extended-data layers move frames over, and
// the HID-keyboard-to-comms "mode flip" the Neo requires before it will
// speak ASM at all. Grounded on the teacher's
// internal/driver/device/usb_device.go (gousb-based bulk device) and
// cmd/monitor/main.go (control-transfer / endpoint-claim sequencing).
package transport

import (
	"fmt"
	"time"
)

// BlockTransport is the minimal 8-byte-chunked I/O surface the dialogue and
// extended-data layers depend on. USBTransport is the real implementation;
// tests substitute a FakeTransport so protocol logic can be exercised
// without hardware — the same split the teacher uses between its
// USBDevice/KernelDevice/CGMinerClient strategies.
type BlockTransport interface {
	// Write slices data into 8-byte blocks and writes them sequentially,
	// each under the given timeout.
	Write(data []byte, timeout time.Duration) error
	// Read reads up to length bytes in 8-byte blocks, returning early
	// (with a shorter slice, no error) on any short underlying read.
	Read(length int, timeout time.Duration) ([]byte, error)
	// Close releases the transport's underlying resources.
	Close() error
}

// BlockSize is the USB-transaction granularity the transport moves bytes in.
const BlockSize = 8

// DefaultTimeout is the timeout §4.3 specifies for ordinary request/response
// exchanges.
const DefaultTimeout = 1000 * time.Millisecond

// ExtendedDataTimeout scales the read timeout with block size, per §4.3:
// roughly 10*size + 600 ms.
func ExtendedDataTimeout(size int) time.Duration {
	return time.Duration(10*size+600) * time.Millisecond
}

var errShortWrite = fmt.Errorf("transport: short write")
