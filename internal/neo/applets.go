package neo

import (
	"fmt"

	"asmgo/internal/codec"
	"asmgo/internal/dialogue"
	"asmgo/internal/extdata"
	"asmgo/internal/frame"
	"asmgo/internal/records"
	"asmgo/internal/transport"
)

// ListApplets retrieves every installed applet's header, paging through
// REQUEST_LIST_APPLETS at records.MaxAppletsPerListRequest headers per
// round and stopping once a round returns fewer than that — the device's
// own signal that the list is exhausted (grounded on
// neotools/applet/applet.py's read_applet_list/raw_read_applet_headers).
func (dv *Device) ListApplets() ([]records.AppletHeader, error) {
	var headers []records.AppletHeader
	op := "list_applets"

	err := dv.withDialogue(op, func(d *dialogue.Dialogue) error {
		for {
			req, err := frame.New(frame.RequestListApplets,
				frame.A(uint32(len(headers)), 1, 4),
				frame.A(records.MaxAppletsPerListRequest, 5, 2),
			)
			if err != nil {
				return err
			}
			resp, err := d.Exchange(req, transport.DefaultTimeout)
			if err != nil {
				return fmt.Errorf("list_applets: request: %w", err)
			}
			if frame.IsDeviceError(resp.Command()) {
				return fmt.Errorf("list_applets: device error: %s", frame.DeviceErrorMessages[resp.Command()])
			}

			size32, err := resp.Argument(1, 4)
			if err != nil {
				return err
			}
			checksum32, err := resp.Argument(5, 2)
			if err != nil {
				return err
			}
			size := int(size32)
			if size > records.MaxAppletsPerListRequest*records.HeaderSize {
				return fmt.Errorf("list_applets: response advertises %d bytes, more than %d headers could hold", size, records.MaxAppletsPerListRequest)
			}
			if size == 0 {
				return nil
			}

			buf, err := d.ReadRaw(size, transport.ExtendedDataTimeout(size))
			if err != nil {
				return fmt.Errorf("list_applets: reading %d bytes: %w", size, err)
			}
			if got := codec.Checksum16(buf); got != uint16(checksum32) {
				return fmt.Errorf("list_applets: checksum mismatch: got 0x%04x want 0x%04x", got, checksum32)
			}

			headerCount := len(buf) / records.HeaderSize
			for i := 0; i < headerCount; i++ {
				h, err := records.DecodeAppletHeader(buf[i*records.HeaderSize : (i+1)*records.HeaderSize])
				if err != nil {
					return fmt.Errorf("list_applets: header %d: %w", len(headers), err)
				}
				headers = append(headers, h)
			}
			if headerCount < records.MaxAppletsPerListRequest {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return headers, nil
}

// ResourceUsage is the result of GetAppletResourceUsage.
type ResourceUsage struct {
	RAM       uint32
	FileCount uint32
}

// GetAppletResourceUsage reports how much RAM and how many files the given
// applet currently occupies.
func (dv *Device) GetAppletResourceUsage(appletID uint16) (ResourceUsage, error) {
	var usage ResourceUsage
	op := "get_applet_resource_usage"
	err := dv.withDialogue(op, func(d *dialogue.Dialogue) error {
		req, err := frame.New(frame.RequestGetUsedSpace, frame.A(1, 1, 4), frame.A(uint32(appletID), 5, 2))
		if err != nil {
			return err
		}
		resp, err := d.ExchangeExpect(req, frame.ResponseGetUsedSpace, transport.DefaultTimeout)
		if err != nil {
			return err
		}
		ram, err := resp.Argument(1, 4)
		if err != nil {
			return err
		}
		files, err := resp.Argument(5, 2)
		if err != nil {
			return err
		}
		usage = ResourceUsage{RAM: ram, FileCount: files}
		return nil
	})
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("neo: applet 0x%04x: %w", appletID, err)
	}
	return usage, nil
}

// AvailableSpace is the result of GetAvailableSpace.
type AvailableSpace struct {
	FreeROM uint32
	FreeRAM uint32
}

// GetAvailableSpace reports the device's free ROM and RAM, per
// neotools/device.py's get_system_memory. free_ram arrives as a 256-byte
// granularity count and must be scaled accordingly.
func (dv *Device) GetAvailableSpace() (AvailableSpace, error) {
	var space AvailableSpace
	err := dv.withDialogue("get_available_space", func(d *dialogue.Dialogue) error {
		req, err := frame.New(frame.RequestGetAvailSpace)
		if err != nil {
			return err
		}
		resp, err := d.ExchangeExpect(req, frame.ResponseGetAvailSpace, transport.DefaultTimeout)
		if err != nil {
			return err
		}
		rom, err := resp.Argument(1, 4)
		if err != nil {
			return err
		}
		ramUnits, err := resp.Argument(5, 2)
		if err != nil {
			return err
		}
		space = AvailableSpace{FreeROM: rom, FreeRAM: ramUnits * 256}
		return nil
	})
	if err != nil {
		return AvailableSpace{}, err
	}
	return space, nil
}

// maxAppletResourceSize is the resource-limit ceiling install_applet
// checks ROM and RAM requirements against, matching NeoManager's 0xff000000
// sentinel (neotools/applet/manager.py's install_applet comment: "NEO
// Manager uses 0xff000000").
const maxAppletResourceSize uint32 = 0xFF000000

// InstallApplet classifies content, refuses anything but a regular applet
// image (ROM installation is judged unsafe, per spec.md §4.9), checks for
// a duplicate applet id unless force is set, validates the image fits in
// available ROM/RAM, and streams it to the device.
func (dv *Device) InstallApplet(content []byte, force bool) (records.AppletHeader, error) {
	kind, err := records.ClassifyApplet(content)
	if err != nil {
		return records.AppletHeader{}, &Error{Kind: KindInvariant, Op: "install_applet", Err: err}
	}
	if kind != records.AppletKindRegular {
		return records.AppletHeader{}, &Error{Kind: KindUser, Op: "install_applet",
			Err: fmt.Errorf("refusing to install a %s image: ROM installation is unsupported", kind)}
	}
	if len(content) < records.HeaderSize {
		return records.AppletHeader{}, &Error{Kind: KindInvariant, Op: "install_applet",
			Err: fmt.Errorf("applet content shorter than its own header")}
	}
	header, err := records.DecodeAppletHeader(content[:records.HeaderSize])
	if err != nil {
		return records.AppletHeader{}, &Error{Kind: KindInvariant, Op: "install_applet", Err: err}
	}

	if !force {
		existing, err := dv.ListApplets()
		if err != nil {
			return records.AppletHeader{}, fmt.Errorf("neo: install_applet: checking for duplicates: %w", err)
		}
		for _, e := range existing {
			if e.AppletID == header.AppletID {
				return records.AppletHeader{}, &Error{Kind: KindUser, Op: "install_applet",
					Err: fmt.Errorf("applet %q (id 0x%04x) is already installed", header.Name, header.AppletID)}
			}
		}
	}

	requiredRAM := header.RAMSize + header.FileSpace
	requiredROM := header.ROMSize
	available, err := dv.GetAvailableSpace()
	if err != nil {
		return records.AppletHeader{}, fmt.Errorf("neo: install_applet: %w", err)
	}
	if requiredROM > maxAppletResourceSize || requiredROM > available.FreeROM {
		return records.AppletHeader{}, &Error{Kind: KindResource, Op: "install_applet",
			Err: fmt.Errorf("required ROM %d exceeds available %d", requiredROM, available.FreeROM)}
	}
	if requiredRAM > maxAppletResourceSize || requiredRAM > available.FreeRAM {
		return records.AppletHeader{}, &Error{Kind: KindResource, Op: "install_applet",
			Err: fmt.Errorf("required RAM %d exceeds available %d", requiredRAM, available.FreeRAM)}
	}

	err = dv.withDialogue("install_applet", func(d *dialogue.Dialogue) error {
		sizeArg := requiredROM | ((requiredRAM & 0xFFFF0000) << 8)
		req, err := frame.New(frame.RequestWriteApplet, frame.A(sizeArg, 1, 4), frame.A(requiredRAM, 5, 2))
		if err != nil {
			return err
		}
		if _, err := d.ExchangeExpect(req, frame.ResponseWriteApplet, appletWriteInitTimeout); err != nil {
			return fmt.Errorf("initializing write: %w", err)
		}

		if err := writeAppletContent(d, content); err != nil {
			return err
		}

		finalizeReq, err := frame.New(frame.RequestFinalizeWritingApplet)
		if err != nil {
			return err
		}
		if err := d.WriteRaw(finalizeReq.Bytes(), appletFinalizeWriteTimeout); err != nil {
			return fmt.Errorf("sending finalize request: %w", err)
		}

		var lastErr error
		for attempt := 0; attempt < appletFinalizeRetries; attempt++ {
			resp, err := d.ReadResponse(appletFinalizeReadTimeout)
			if err != nil {
				// A timeout here is expected while the device finishes
				// programming; keep waiting, per spec.md §4.9's
				// "tolerating transport timeouts between tries."
				lastErr = err
				continue
			}
			if resp.Command() == frame.ResponseFinalizeWritingApplet {
				return nil
			}
			if frame.IsDeviceError(resp.Command()) {
				return fmt.Errorf("device error while finalizing: %s", frame.DeviceErrorMessages[resp.Command()])
			}
			lastErr = fmt.Errorf("unexpected response opcode 0x%02x while finalizing", resp.Command())
		}
		return fmt.Errorf("finalizing applet write: %w", lastErr)
	})
	if err != nil {
		return records.AppletHeader{}, err
	}
	return header, nil
}

// Longer-than-default timeouts install_applet needs, per spec.md §4.9.
const (
	appletWriteInitTimeout     = 5 * transport.DefaultTimeout
	appletBlockTimeout         = 5 * transport.DefaultTimeout
	appletFinalizeWriteTimeout = 24 * transport.DefaultTimeout
	appletFinalizeReadTimeout  = 5 * transport.DefaultTimeout
	appletFinalizeRetries      = 10
)

// writeAppletContent streams content in extdata.WriteBlockSize chunks,
// interleaving a REQUEST_PROGRAMMING_APPLET_BLOCK/RESPONSE_PROGRAMMING_APPLET_BLOCK
// round-trip between blocks (not part of extdata.Write's ordinary
// block-write loop), grounded on
// neotools/applet/manager.py's _write_applet_content.
func writeAppletContent(d *dialogue.Dialogue, content []byte) error {
	for offset := 0; offset < len(content); {
		end := offset + extdata.WriteBlockSize
		if end > len(content) {
			end = len(content)
		}
		block := content[offset:end]
		checksum := codec.Checksum16(block)

		req, err := frame.New(frame.RequestBlockWrite, frame.A(uint32(len(block)), 1, 4), frame.A(uint32(checksum), 5, 2))
		if err != nil {
			return err
		}
		if _, err := d.ExchangeExpect(req, frame.ResponseBlockWrite, transport.DefaultTimeout); err != nil {
			return fmt.Errorf("block write request: %w", err)
		}
		if err := d.WriteRaw(block, transport.ExtendedDataTimeout(len(block))); err != nil {
			return fmt.Errorf("writing %d-byte block: %w", len(block), err)
		}
		done, err := d.ReadResponse(transport.DefaultTimeout)
		if err != nil {
			return fmt.Errorf("block write done: %w", err)
		}
		if done.Command() != frame.ResponseBlockWriteDone {
			if frame.IsDeviceError(done.Command()) {
				return fmt.Errorf("device error: %s", frame.DeviceErrorMessages[done.Command()])
			}
			return fmt.Errorf("unexpected response opcode 0x%02x (want block-write-done)", done.Command())
		}

		progReq, err := frame.New(frame.RequestProgrammingAppletBlock)
		if err != nil {
			return err
		}
		if _, err := d.ExchangeExpect(progReq, frame.ResponseProgrammingAppletBlock, appletBlockTimeout); err != nil {
			return fmt.Errorf("programming applet block: %w", err)
		}
		offset = end
	}
	return nil
}

// removeApplet's fixed first argument (5,1,4) is a constant the source
// sends unexplained ("REQUEST_REMOVE_APPLET (5, applet16): constant 5").
const removeAppletConstant uint32 = 5

// removeAppletsTimeout bounds REQUEST_ERASE_APPLETS, which the device may
// take up to roughly a minute to service.
const removeAppletsTimeout = 90 * transport.DefaultTimeout

// RemoveApplet deletes a single installed applet.
func (dv *Device) RemoveApplet(appletID uint16) error {
	return dv.withDialogue("remove_applet", func(d *dialogue.Dialogue) error {
		req, err := frame.New(frame.RequestRemoveApplet, frame.A(removeAppletConstant, 1, 4), frame.A(uint32(appletID), 5, 2))
		if err != nil {
			return err
		}
		_, err = d.ExchangeExpect(req, frame.ResponseRemoveApplet, transport.DefaultTimeout)
		return err
	})
}

// RemoveApplets erases every installed applet.
func (dv *Device) RemoveApplets() error {
	return dv.withDialogue("remove_applets", func(d *dialogue.Dialogue) error {
		req, err := frame.New(frame.RequestEraseApplets)
		if err != nil {
			return err
		}
		_, err = d.ExchangeExpect(req, frame.ResponseEraseApplets, removeAppletsTimeout)
		return err
	})
}

// FetchApplet retrieves the raw program image of an installed applet.
func (dv *Device) FetchApplet(appletID uint16) ([]byte, error) {
	var content []byte
	err := dv.withDialogue("fetch_applet", func(d *dialogue.Dialogue) error {
		req, err := frame.New(frame.RequestReadApplet, frame.A(0, 1, 4), frame.A(uint32(appletID), 5, 2))
		if err != nil {
			return err
		}
		resp, err := d.ExchangeExpect(req, frame.ResponseReadFile, transport.DefaultTimeout)
		if err != nil {
			return err
		}
		size, err := resp.Argument(1, 4)
		if err != nil {
			return err
		}
		content, err = extdata.Read(d, int(size))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("neo: fetch_applet 0x%04x: %w", appletID, err)
	}
	return content, nil
}
