// Package dialogue implements the ASM session bracket: hello, reset, and
// applet-select, plus the request/response exchange primitive every other
// high-level operation is built on. Grounded on the teacher's
// controller.go initializeASIC/ComputeBatch request-then-response
// sequencing, generalized from a single fixed protocol to the full ASM
// opcode catalog.
package dialogue

import (
	"fmt"
	"log"
	"time"

	"asmgo/internal/frame"
	"asmgo/internal/transport"
)

// MinProtocolVersion is the lowest ASM protocol version this driver speaks,
// per spec.md §3.
const MinProtocolVersion = 0x0230

const (
	helloByte   = 0x01
	helloRetries = 10
	helloRetryPause = 100 * time.Millisecond

	resetSequence = "?\xFF\x00reset"

	switchAppletPrefix = "?Swtch"
	switchAppletReply  = "Switched"
)

// Dialogue is a bracketed ASM session bound to one BlockTransport. It is
// not reentrant: the device is a single-threaded, shared resource (§5).
type Dialogue struct {
	t       transport.BlockTransport
	version uint16
}

// New wraps t in a Dialogue. Start must be called before any exchange.
func New(t transport.BlockTransport) *Dialogue {
	return &Dialogue{t: t}
}

// ProtocolVersion returns the version learned during Start's hello.
func (d *Dialogue) ProtocolVersion() uint16 {
	return d.version
}

// Start performs hello (with retries), the first reset, and applet-select,
// per spec.md §4.4.
func (d *Dialogue) Start(appletID uint16) error {
	version, err := d.hello()
	if err != nil {
		return fmt.Errorf("dialogue: hello: %w", err)
	}
	if version < MinProtocolVersion {
		return fmt.Errorf("dialogue: protocol version 0x%04x is below minimum 0x%04x", version, MinProtocolVersion)
	}
	d.version = version

	if err := d.reset(); err != nil {
		return fmt.Errorf("dialogue: reset after hello: %w", err)
	}

	if err := d.switchApplet(appletID); err != nil {
		// Best-effort reset so the device is not left wedged mid-switch;
		// the switch failure itself is what we report.
		_ = d.reset()
		return fmt.Errorf("dialogue: switch applet 0x%04x: %w", appletID, err)
	}
	return nil
}

// End performs the closing reset. Per spec.md §3 every Start must be
// matched by exactly one End, even when the dialogue body failed.
func (d *Dialogue) End() error {
	if err := d.reset(); err != nil {
		return fmt.Errorf("dialogue: closing reset: %w", err)
	}
	return nil
}

// Run brackets fn between Start(appletID) and End, guaranteeing End runs
// even if fn fails. If Start fails, End is not called; a switch-applet
// failure is followed by Start's own best-effort reset. This is the
// scoped-acquisition construct design note §9 calls for in place of the
// source's ambient global connection.
func Run(t transport.BlockTransport, appletID uint16, fn func(d *Dialogue) error) error {
	d := New(t)
	if err := d.Start(appletID); err != nil {
		return err
	}
	defer func() {
		if err := d.End(); err != nil {
			log.Printf("dialogue: warning: %v", err)
		}
	}()
	return fn(d)
}

func (d *Dialogue) hello() (uint16, error) {
	var lastErr error
	for attempt := 0; attempt < helloRetries; attempt++ {
		if attempt > 0 {
			if err := d.reset(); err != nil {
				lastErr = err
				continue
			}
			time.Sleep(helloRetryPause)
		}

		if err := d.t.Write([]byte{helloByte}, transport.DefaultTimeout); err != nil {
			lastErr = err
			continue
		}
		reply, err := d.t.Read(2, transport.DefaultTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		if len(reply) != 2 {
			lastErr = fmt.Errorf("dialogue: hello reply truncated to %d bytes", len(reply))
			continue
		}
		version := uint16(reply[0])<<8 | uint16(reply[1])
		return version, nil
	}
	return 0, fmt.Errorf("dialogue: hello failed after %d attempts: %w", helloRetries, lastErr)
}

func (d *Dialogue) reset() error {
	return d.t.Write([]byte(resetSequence), transport.DefaultTimeout)
}

func (d *Dialogue) switchApplet(appletID uint16) error {
	payload := make([]byte, 0, transport.BlockSize)
	payload = append(payload, switchAppletPrefix...)
	payload = append(payload, byte(appletID>>8), byte(appletID))

	if err := d.t.Write(payload, transport.DefaultTimeout); err != nil {
		return err
	}
	reply, err := d.t.Read(len(switchAppletReply), transport.DefaultTimeout)
	if err != nil {
		return err
	}
	if string(reply) != switchAppletReply {
		return fmt.Errorf("dialogue: unexpected switch-applet reply %q (want %q)", reply, switchAppletReply)
	}
	return nil
}

// Exchange sends an ASM request frame and returns the response frame. The
// dialogue does not pipeline: every request is immediately followed by its
// response (§5).
func (d *Dialogue) Exchange(req frame.Message, timeout time.Duration) (frame.Message, error) {
	if err := d.t.Write(req.Bytes(), timeout); err != nil {
		return frame.Message{}, fmt.Errorf("dialogue: exchange write: %w", err)
	}
	raw, err := d.t.Read(frame.Size, timeout)
	if err != nil {
		return frame.Message{}, fmt.Errorf("dialogue: exchange read: %w", err)
	}
	resp, err := frame.Parse(raw)
	if err != nil {
		return frame.Message{}, fmt.Errorf("dialogue: exchange parse: %w", err)
	}
	return resp, nil
}

// ReadRaw reads length raw bytes directly off the transport, bypassing the
// 8-byte frame format. Extended-data transfers (§4.5) use this for the
// payload that follows a BLOCK_READ/BLOCK_WRITE header exchange.
func (d *Dialogue) ReadRaw(length int, timeout time.Duration) ([]byte, error) {
	buf, err := d.t.Read(length, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialogue: raw read: %w", err)
	}
	return buf, nil
}

// WriteRaw writes data directly to the transport, bypassing the 8-byte
// frame format.
func (d *Dialogue) WriteRaw(data []byte, timeout time.Duration) error {
	if err := d.t.Write(data, timeout); err != nil {
		return fmt.Errorf("dialogue: raw write: %w", err)
	}
	return nil
}

// ReadResponse reads a single response frame without first writing a
// request, for protocol steps where the payload write IS the request (the
// data block following a BLOCK_WRITE header exchange).
func (d *Dialogue) ReadResponse(timeout time.Duration) (frame.Message, error) {
	raw, err := d.t.Read(frame.Size, timeout)
	if err != nil {
		return frame.Message{}, fmt.Errorf("dialogue: read response: %w", err)
	}
	resp, err := frame.Parse(raw)
	if err != nil {
		return frame.Message{}, fmt.Errorf("dialogue: parse response: %w", err)
	}
	return resp, nil
}

// ExchangeExpect is Exchange plus a check that the response opcode is
// exactly want. Any other opcode is either a recognized device error
// (opcodes 0x86-0x94, §7, reported with its human message) or an
// unexpected-opcode protocol error (§4.2/§7).
func (d *Dialogue) ExchangeExpect(req frame.Message, want byte, timeout time.Duration) (frame.Message, error) {
	resp, err := d.Exchange(req, timeout)
	if err != nil {
		return resp, err
	}
	if resp.Command() == want {
		return resp, nil
	}
	if frame.IsDeviceError(resp.Command()) {
		return resp, fmt.Errorf("dialogue: device error: %s", frame.DeviceErrorMessages[resp.Command()])
	}
	return resp, fmt.Errorf("dialogue: unexpected response opcode 0x%02x (want 0x%02x)", resp.Command(), want)
}

// RestartToKeyboard sends the REQUEST_RESTART opcode within an already-open
// dialogue, asking the device to resume its HID keyboard personality on
// physical teardown (§4.3/§5). Callers invoke this as the last exchange
// before tearing down the dialogue and the USB transport.
func (d *Dialogue) RestartToKeyboard() error {
	req, err := frame.New(frame.RequestRestart)
	if err != nil {
		return err
	}
	if _, err := d.ExchangeExpect(req, frame.ResponseRestart, transport.DefaultTimeout); err != nil {
		return fmt.Errorf("dialogue: restart-to-keyboard: %w", err)
	}
	return nil
}
