package neo

import (
	"fmt"
	"log"

	"asmgo/internal/dialogue"
	"asmgo/internal/frame"
	"asmgo/internal/records"
	"asmgo/internal/transport"
)

// GetVersion retrieves the device's OS version text. The device's declared
// checksum is known to be wrong on some firmware (spec.md §9 design note
// 3); a mismatch is logged, not treated as failure.
func (dv *Device) GetVersion() (records.Version, error) {
	var version records.Version
	err := dv.withDialogue("get_version", func(d *dialogue.Dialogue) error {
		req, err := frame.New(frame.RequestVersion)
		if err != nil {
			return err
		}
		resp, err := d.ExchangeExpect(req, frame.ResponseVersion, transport.DefaultTimeout)
		if err != nil {
			return err
		}
		size, err := resp.Argument(1, 4)
		if err != nil {
			return err
		}
		declaredChecksum, err := resp.Argument(5, 2)
		if err != nil {
			return err
		}
		payload, err := d.ReadRaw(int(size), transport.ExtendedDataTimeout(int(size)))
		if err != nil {
			return fmt.Errorf("reading %d-byte version payload: %w", size, err)
		}
		version, err = records.DecodeVersion(payload, uint16(declaredChecksum))
		if err != nil {
			return err
		}
		if !version.ChecksumOK() {
			log.Printf("neo: get_version: advisory checksum mismatch: declared 0x%04x, computed 0x%04x", version.DeclaredChecksum, version.ComputedChecksum)
		}
		return nil
	})
	if err != nil {
		return records.Version{}, fmt.Errorf("neo: get_version: %w", err)
	}
	return version, nil
}
