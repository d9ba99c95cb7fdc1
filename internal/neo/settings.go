package neo

import (
	"fmt"

	"asmgo/internal/codec"
	"asmgo/internal/dialogue"
	"asmgo/internal/frame"
	"asmgo/internal/records"
	settingspkg "asmgo/internal/settings"
	"asmgo/internal/transport"
)

// Common flags values for GetSettings, per spec.md §4.9: "different flag
// values yield overlapping subsets; common values are {0, 7, 15}."
const (
	SettingsFlagsMinimal uint32 = 0
	SettingsFlagsDefault uint32 = 7
	SettingsFlagsAll     uint32 = 15
)

// GetSettings retrieves and classifies an applet's settings blob.
// Like list_applets and unlike fetch_applet, the advertised payload is read
// in a single direct read rather than the block-read loop — grounded on
// neotools/applet/settings.py's get_settings, which calls device.read(
// response_size) directly.
func (dv *Device) GetSettings(appletID uint16, flags uint32) (settingspkg.Collection, error) {
	var coll settingspkg.Collection
	err := dv.withDialogue("get_settings", func(d *dialogue.Dialogue) error {
		req, err := frame.New(frame.RequestGetSettings, frame.A(flags, 1, 4), frame.A(uint32(appletID), 5, 2))
		if err != nil {
			return err
		}
		resp, err := d.ExchangeExpect(req, frame.ResponseGetSettings, transport.DefaultTimeout)
		if err != nil {
			return err
		}
		size, err := resp.Argument(1, 4)
		if err != nil {
			return err
		}
		checksum, err := resp.Argument(5, 2)
		if err != nil {
			return err
		}
		buf, err := d.ReadRaw(int(size), transport.ExtendedDataTimeout(int(size)))
		if err != nil {
			return fmt.Errorf("reading %d-byte settings blob: %w", size, err)
		}
		if got := codec.Checksum16(buf); got != uint16(checksum) {
			return fmt.Errorf("checksum mismatch: got 0x%04x want 0x%04x", got, checksum)
		}
		items, err := records.DecodeSettingsItems(buf)
		if err != nil {
			return fmt.Errorf("decoding settings items: %w", err)
		}
		coll = settingspkg.NewCollection(items)
		return nil
	})
	if err != nil {
		return settingspkg.Collection{}, fmt.Errorf("neo: get_settings applet 0x%04x: %w", appletID, err)
	}
	return coll, nil
}

// SetSettings writes back a settings collection, then asks the device to
// apply it to appletID via REQUEST_SET_APPLET, per
// neotools/applet/settings.py's set_settings.
func (dv *Device) SetSettings(appletID uint16, coll settingspkg.Collection) error {
	raw, err := records.EncodeSettingsItems(coll.ToRaw())
	if err != nil {
		return fmt.Errorf("neo: set_settings applet 0x%04x: encoding: %w", appletID, err)
	}
	checksum := codec.Checksum16(raw)

	err = dv.withDialogue("set_settings", func(d *dialogue.Dialogue) error {
		req, err := frame.New(frame.RequestSetSettings, frame.A(uint32(len(raw)), 1, 4), frame.A(uint32(checksum), 5, 2))
		if err != nil {
			return err
		}
		if _, err := d.ExchangeExpect(req, frame.ResponseBlockWrite, transport.DefaultTimeout); err != nil {
			return fmt.Errorf("requesting write: %w", err)
		}
		if err := d.WriteRaw(raw, transport.ExtendedDataTimeout(len(raw))); err != nil {
			return fmt.Errorf("writing settings blob: %w", err)
		}
		done, err := d.ReadResponse(transport.DefaultTimeout)
		if err != nil {
			return fmt.Errorf("awaiting block-write-done: %w", err)
		}
		if done.Command() != frame.ResponseBlockWriteDone {
			if frame.IsDeviceError(done.Command()) {
				return fmt.Errorf("device error: %s", frame.DeviceErrorMessages[done.Command()])
			}
			return fmt.Errorf("unexpected response opcode 0x%02x (want block-write-done)", done.Command())
		}

		setReq, err := frame.New(frame.RequestSetApplet, frame.A(0, 1, 4), frame.A(uint32(appletID), 5, 2))
		if err != nil {
			return err
		}
		_, err = d.ExchangeExpect(setReq, frame.ResponseSetApplet, transport.DefaultTimeout)
		return err
	})
	if err != nil {
		return fmt.Errorf("neo: set_settings applet 0x%04x: %w", appletID, err)
	}
	return nil
}
