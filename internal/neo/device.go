package neo

import (
	"errors"
	"log"
	"sync"

	"asmgo/internal/dialogue"
	"asmgo/internal/records"
	"asmgo/internal/transport"
)

// Device is the mutex-guarded entry point for every ASM operation. The
// mutex enforces spec.md §5's single-threaded, non-reentrant resource
// model: the Neo is a shared device that does not pipeline requests, so
// two concurrent callers must queue rather than race. Grounded on the
// teacher's mutex-guarded session wrapper, generalized from one command
// set to the full ASM opcode catalog.
//
// Device depends only on transport.BlockTransport, not the concrete
// USBTransport, so tests can drive it against transport.FakeTransport the
// same way internal/dialogue's tests do.
type Device struct {
	mu     sync.Mutex
	t      transport.BlockTransport
	wasHID bool
}

// Connect enumerates and binds the Neo over USB, performing the
// HID-to-comms mode flip transparently if needed (transport.Open).
func Connect() (*Device, error) {
	t, err := transport.Open()
	if err != nil {
		return nil, wrapErr(KindTransport, "connect", err)
	}
	return &Device{t: t, wasHID: t.WasHID()}, nil
}

// Close releases the device. If it originally enumerated as a HID
// keyboard, Close restarts it back into that personality before disposing
// the USB handle, completing the release sequence spec.md §5 describes:
// "if the device was originally HID, restart into keyboard mode; dispose
// handle."
func (dv *Device) Close() error {
	dv.mu.Lock()
	defer dv.mu.Unlock()

	if dv.wasHID {
		err := dialogue.Run(dv.t, records.AppletIDSystem, func(d *dialogue.Dialogue) error {
			return d.RestartToKeyboard()
		})
		if err != nil {
			log.Printf("neo: warning: restart to keyboard mode failed: %v", err)
		}
	}
	return dv.t.Close()
}

// RestartToKeyboard explicitly flips the device back to its HID keyboard
// personality, regardless of how it originally enumerated. Used by "asmctl
// mode --keyboard", which asks for keyboard mode unconditionally rather
// than relying on Close's originally-HID memory.
func (dv *Device) RestartToKeyboard() error {
	return dv.withDialogue("restart_to_keyboard", func(d *dialogue.Dialogue) error {
		return d.RestartToKeyboard()
	})
}

// CloseRaw disposes the USB handle without attempting the keyboard restart
// Close performs. Used by "asmctl mode", which manages the device's final
// personality itself rather than deferring to the originally-HID rule.
func (dv *Device) CloseRaw() error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.t.Close()
}

// withDialogue brackets fn in a dialogue scoped to the system applet. Every
// high-level operation opens its own dialogue this way: the source always
// calls dialogue_start() with its default applet id (SYSTEM) regardless of
// which applet a given operation's request arguments target, since the
// target applet travels as a message argument, not as the dialogue's
// switch-applet selection.
func (dv *Device) withDialogue(op string, fn func(d *dialogue.Dialogue) error) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()

	err := dialogue.Run(dv.t, records.AppletIDSystem, fn)
	if err == nil {
		return nil
	}
	return wrapErr(classifyDialogueErr(op, err), op, err)
}

// classifyDialogueErr picks a Kind for an error surfacing from the dialogue
// layer. It cannot inspect the underlying cause precisely (that
// information was already folded into the error's message by the time it
// reaches here), so it falls back to KindProtocol — the catch-all for
// exchange-level failures — unless the operation already wrapped a more
// specific Error itself.
func classifyDialogueErr(op string, err error) Kind {
	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr.Kind
	}
	return KindProtocol
}
