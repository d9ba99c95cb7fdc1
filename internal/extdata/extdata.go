// Package extdata implements the multi-block extended-data transfer used
// for file reads and writes, file-attribute writes, and applet fetches.
// Applet-header lists and settings blobs are moved with single direct
// reads and writes instead, and applet installs use their own block loop
// in internal/neo. Grounded on the
// teacher's chunked stratum submission in controller.go, generalized from a
// fixed share-size loop to the ASM block-read/block-write sub-protocol
// (spec.md §4.5).
package extdata

import (
	"fmt"

	"asmgo/internal/codec"
	"asmgo/internal/dialogue"
	"asmgo/internal/frame"
	"asmgo/internal/transport"
)

// WriteBlockSize is the maximum number of bytes sent per REQUEST_BLOCK_WRITE,
// per spec.md §4.5.
const WriteBlockSize = 0x400

// Read drives the REQUEST_BLOCK_READ loop until size bytes have been
// received or the device signals RESPONSE_BLOCK_READ_EMPTY. Each block's
// advertised checksum is verified against the bytes actually read; any
// mismatch is reported rather than silently accepted.
func Read(d *dialogue.Dialogue, size int) ([]byte, error) {
	result := make([]byte, 0, size)

	for len(result) < size {
		req, err := frame.New(frame.RequestBlockRead)
		if err != nil {
			return nil, err
		}
		resp, err := d.Exchange(req, transport.DefaultTimeout)
		if err != nil {
			return nil, fmt.Errorf("extdata: block read request: %w", err)
		}

		switch resp.Command() {
		case frame.ResponseBlockReadEmpty:
			return result, nil
		case frame.ResponseBlockRead:
			size32, err := resp.Argument(1, 4)
			if err != nil {
				return nil, fmt.Errorf("extdata: block size argument: %w", err)
			}
			checksum32, err := resp.Argument(5, 2)
			if err != nil {
				return nil, fmt.Errorf("extdata: block checksum argument: %w", err)
			}
			blockSize := int(size32)
			wantChecksum := uint16(checksum32)

			buf, err := d.ReadRaw(blockSize, transport.ExtendedDataTimeout(blockSize))
			if err != nil {
				return nil, fmt.Errorf("extdata: reading %d-byte block: %w", blockSize, err)
			}
			if got := codec.Checksum16(buf); got != wantChecksum {
				return nil, fmt.Errorf("extdata: block checksum mismatch: got 0x%04x want 0x%04x", got, wantChecksum)
			}
			result = append(result, buf...)
		default:
			if frame.IsDeviceError(resp.Command()) {
				return nil, fmt.Errorf("extdata: device error: %s", frame.DeviceErrorMessages[resp.Command()])
			}
			return nil, fmt.Errorf("extdata: unexpected response opcode 0x%02x", resp.Command())
		}
	}
	return result, nil
}

// Write drives the REQUEST_BLOCK_WRITE loop, chunking buf into pieces of at
// most WriteBlockSize bytes, per spec.md §4.5.
func Write(d *dialogue.Dialogue, buf []byte) error {
	for offset := 0; offset < len(buf); {
		end := offset + WriteBlockSize
		if end > len(buf) {
			end = len(buf)
		}
		block := buf[offset:end]
		checksum := codec.Checksum16(block)

		req, err := frame.New(frame.RequestBlockWrite,
			frame.A(uint32(len(block)), 1, 4),
			frame.A(uint32(checksum), 5, 2),
		)
		if err != nil {
			return err
		}
		if _, err := d.ExchangeExpect(req, frame.ResponseBlockWrite, transport.DefaultTimeout); err != nil {
			return fmt.Errorf("extdata: block write request: %w", err)
		}

		if err := d.WriteRaw(block, transport.ExtendedDataTimeout(len(block))); err != nil {
			return fmt.Errorf("extdata: writing %d-byte block: %w", len(block), err)
		}

		done, err := d.ReadResponse(transport.DefaultTimeout)
		if err != nil {
			return fmt.Errorf("extdata: block write done: %w", err)
		}
		if done.Command() != frame.ResponseBlockWriteDone {
			if frame.IsDeviceError(done.Command()) {
				return fmt.Errorf("extdata: device error: %s", frame.DeviceErrorMessages[done.Command()])
			}
			return fmt.Errorf("extdata: unexpected response opcode 0x%02x (want block-write-done)", done.Command())
		}

		offset = end
	}
	return nil
}
