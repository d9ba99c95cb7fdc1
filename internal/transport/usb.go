package transport

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/gousb"
)

// USB identifiers, per spec.md §4.3/§6.
const (
	VendorID        gousb.ID = 0x081E
	ProductIDHID    gousb.ID = 0xBD04
	ProductIDComms  gousb.ID = 0xBD01
	usbInterfaceNum        = 0
	usbAltSetting          = 0
	usbEndpointOut         = 0x02
	usbEndpointIn          = 0x81
)

// Mode-flip control transfer parameters, per spec.md §4.3/§6.
const (
	flipRequestType byte = 0x20 // class, device recipient, host-to-device
	flipRequest     byte = 9
	flipValue       uint16 = 0x0200
	flipIndex       uint16 = 1
)

var flipPayloads = []byte{0xE0, 0xE1, 0xE2, 0xE3, 0xE4}

// flipPollInterval/flipDeadline bound the wait for the comms personality to
// re-enumerate after a mode flip (design note §9: "express as a bounded
// retry ... with a total deadline", replacing the source's bare sleep loop).
const (
	flipPollInterval = 100 * time.Millisecond
	flipDeadline     = 15 * time.Second
)

// USBTransport is the gousb-backed BlockTransport. It owns one USB device
// handle and the single bulk IN/OUT endpoint pair the Neo's comms interface
// exposes.
type USBTransport struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint

	wasHID bool
}

// interface and endpoints follow the gousb Config.Interface(num, alt)
// (*Interface, error) shape the teacher's usb_device.go binds against,
// not the Device.DefaultInterface() convenience wrapper.

// Open enumerates the Neo, performing the HID-to-comms mode flip if the
// device currently presents as a keyboard, then claims the bulk endpoints.
// The acquire sequence matches §5: enumerate -> optional flip -> bind
// endpoints.
func Open() (*USBTransport, error) {
	ctx := gousb.NewContext()

	dev, wasHID, err := openAnyPersonality(ctx)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	t := &USBTransport{ctx: ctx, wasHID: wasHID}

	if wasHID {
		log.Printf("transport: device enumerated as HID (0x%04x), flipping to comms", uint16(ProductIDHID))
		if err := flipToComms(dev); err != nil {
			dev.Close()
			ctx.Close()
			return nil, fmt.Errorf("transport: mode flip: %w", err)
		}
		dev, err = waitForComms(ctx)
		if err != nil {
			ctx.Close()
			return nil, fmt.Errorf("transport: waiting for comms re-enumeration: %w", err)
		}
	}

	if err := t.bind(dev); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return t, nil
}

// WasHID reports whether the device originally enumerated in its HID
// keyboard personality, i.e. whether Close must attempt to flip it back.
func (t *USBTransport) WasHID() bool {
	return t.wasHID
}

func openAnyPersonality(ctx *gousb.Context) (dev *gousb.Device, wasHID bool, err error) {
	dev, err = ctx.OpenDeviceWithVIDPID(VendorID, ProductIDComms)
	if err != nil {
		return nil, false, fmt.Errorf("transport: opening comms device: %w", err)
	}
	if dev != nil {
		return dev, false, nil
	}

	dev, err = ctx.OpenDeviceWithVIDPID(VendorID, ProductIDHID)
	if err != nil {
		return nil, false, fmt.Errorf("transport: opening HID device: %w", err)
	}
	if dev == nil {
		return nil, false, fmt.Errorf("transport: no AlphaSmart Neo found (vendor 0x%04x)", uint16(VendorID))
	}
	return dev, true, nil
}

// flipToComms detaches any kernel HID claim, asserts SET_CONFIGURATION, and
// emits the five class-to-device control transfers that switch the Neo out
// of its keyboard personality, per spec.md §4.3/§6.
func flipToComms(dev *gousb.Device) error {
	if err := dev.SetAutoDetach(true); err != nil {
		log.Printf("transport: warning: could not enable kernel driver auto-detach: %v", err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		return fmt.Errorf("set configuration: %w", err)
	}
	defer cfg.Close()

	for _, payload := range flipPayloads {
		if _, err := dev.Control(flipRequestType, flipRequest, flipValue, flipIndex, []byte{payload}); err != nil {
			return fmt.Errorf("control transfer 0x%02x: %w", payload, err)
		}
	}
	return nil
}

// waitForComms polls USB enumeration until the comms personality (0xBD01)
// appears, bounded by flipDeadline — a fixed-backoff bounded retry in place
// of the source's bare sleep loop (design note §9).
func waitForComms(ctx *gousb.Context) (*gousb.Device, error) {
	deadline := time.Now().Add(flipDeadline)
	for {
		dev, err := ctx.OpenDeviceWithVIDPID(VendorID, ProductIDComms)
		if err == nil && dev != nil {
			return dev, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for comms personality to enumerate")
		}
		time.Sleep(flipPollInterval)
	}
}

func (t *USBTransport) bind(dev *gousb.Device) error {
	t.device = dev

	cfg, err := dev.Config(1)
	if err != nil {
		return fmt.Errorf("transport: set configuration: %w", err)
	}
	t.config = cfg

	intf, err := cfg.Interface(usbInterfaceNum, usbAltSetting)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("transport: claim interface: %w", err)
	}
	t.intf = intf

	epOut, err := intf.OutEndpoint(usbEndpointOut)
	if err != nil {
		intf.Close()
		cfg.Close()
		return fmt.Errorf("transport: open OUT endpoint: %w", err)
	}
	epIn, err := intf.InEndpoint(usbEndpointIn)
	if err != nil {
		intf.Close()
		cfg.Close()
		return fmt.Errorf("transport: open IN endpoint: %w", err)
	}
	t.epOut = epOut
	t.epIn = epIn
	return nil
}

// Write slices data into 8-byte blocks and writes them sequentially.
func (t *USBTransport) Write(data []byte, timeout time.Duration) error {
	for offset := 0; offset < len(data); offset += BlockSize {
		end := offset + BlockSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		n, err := t.epOut.WriteContext(ctx, chunk)
		cancel()
		if err != nil {
			return fmt.Errorf("transport: write at offset %d: %w", offset, err)
		}
		if n != len(chunk) {
			return fmt.Errorf("transport: %w: wrote %d of %d bytes at offset %d", errShortWrite, n, len(chunk), offset)
		}
	}
	return nil
}

// Read reads up to length bytes in 8-byte blocks, stopping early (without
// error) on the first short underlying read.
func (t *USBTransport) Read(length int, timeout time.Duration) ([]byte, error) {
	out := make([]byte, 0, length)
	buf := make([]byte, BlockSize)
	for len(out) < length {
		want := length - len(out)
		if want > BlockSize {
			want = BlockSize
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		n, err := t.epIn.ReadContext(ctx, buf[:want])
		cancel()
		if err != nil {
			return nil, fmt.Errorf("transport: read at offset %d: %w", len(out), err)
		}
		out = append(out, buf[:n]...)
		if n < want {
			break
		}
	}
	return out, nil
}

// Close tears down the USB handle. It does not itself attempt the
// HID-restart restore — that requires sending an ASM frame within a
// dialogue, which is the caller's (neo.Device's) responsibility since it
// owns the dialogue layer; see neo.Device.Close.
func (t *USBTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
	}
	if t.config != nil {
		t.config.Close()
	}
	var err error
	if t.device != nil {
		err = t.device.Close()
	}
	if t.ctx != nil {
		t.ctx.Close()
	}
	return err
}
