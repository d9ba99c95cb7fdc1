package neo

import (
	"fmt"
	"sort"
	"strconv"

	"asmgo/internal/codec"
	"asmgo/internal/dialogue"
	"asmgo/internal/extdata"
	"asmgo/internal/frame"
	"asmgo/internal/records"
	"asmgo/internal/transport"
)

// createFileRAMHeadroom is the RAM the device is kept clear of when
// creating a file, per neotools/file.py's create_file comment: "arbitrarily
// choosing to keep at least 1k unused on the device".
const createFileRAMHeadroom = 1024

// getFileAttributes fetches one file's attributes, reporting (zero value,
// false, nil) when the device reports ERROR_PARAMETER — the end-of-list
// signal the source's get_file_attributes comment describes as "probably
// just means the iteration exceeded the number of files available", not a
// real failure.
func getFileAttributes(d *dialogue.Dialogue, appletID uint16, fileIndex int) (records.FileAttributes, bool, error) {
	req, err := frame.New(frame.RequestGetFileAttributes, frame.A(uint32(fileIndex), 4, 1), frame.A(uint32(appletID), 5, 2))
	if err != nil {
		return records.FileAttributes{}, false, err
	}
	resp, err := d.Exchange(req, transport.DefaultTimeout)
	if err != nil {
		return records.FileAttributes{}, false, err
	}
	if resp.Command() == frame.ErrorParameter {
		return records.FileAttributes{}, false, nil
	}
	if resp.Command() != frame.ResponseGetFileAttributes {
		if frame.IsDeviceError(resp.Command()) {
			return records.FileAttributes{}, false, fmt.Errorf("device error: %s", frame.DeviceErrorMessages[resp.Command()])
		}
		return records.FileAttributes{}, false, fmt.Errorf("unexpected response opcode 0x%02x", resp.Command())
	}

	length, err := resp.Argument(1, 4)
	if err != nil {
		return records.FileAttributes{}, false, err
	}
	checksum, err := resp.Argument(5, 2)
	if err != nil {
		return records.FileAttributes{}, false, err
	}
	if int(length) != records.FileAttributesSize {
		return records.FileAttributes{}, false, fmt.Errorf("file attributes length %d, want %d", length, records.FileAttributesSize)
	}
	buf, err := d.ReadRaw(records.FileAttributesSize, transport.DefaultTimeout)
	if err != nil {
		return records.FileAttributes{}, false, err
	}
	if got := codec.Checksum16(buf); got != uint16(checksum) {
		return records.FileAttributes{}, false, fmt.Errorf("checksum mismatch: got 0x%04x want 0x%04x", got, checksum)
	}

	attrs, err := records.DecodeFileAttributes(fileIndex, buf)
	if err != nil {
		return records.FileAttributes{}, false, err
	}
	return attrs, true, nil
}

// ListFiles enumerates every file belonging to appletID, sorted by
// (space, name) per spec.md §4.9.
func (dv *Device) ListFiles(appletID uint16) ([]records.FileAttributes, error) {
	var files []records.FileAttributes
	err := dv.withDialogue("list_files", func(d *dialogue.Dialogue) error {
		for fileIndex := 1; ; fileIndex++ {
			attrs, ok, err := getFileAttributes(d, appletID, fileIndex)
			if err != nil {
				return fmt.Errorf("file %d: %w", fileIndex, err)
			}
			if !ok {
				return nil
			}
			files = append(files, attrs)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("neo: list_files applet 0x%04x: %w", appletID, err)
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Space != files[j].Space {
			return files[i].Space < files[j].Space
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// FindFileByNameOrSpace resolves a CLI file selector: a decimal string
// "1".."8" selects by space, anything else matches a file name exactly.
// Grounded on neotools/file.py's get_file_by_name_or_space.
func FindFileByNameOrSpace(files []records.FileAttributes, selector string) (records.FileAttributes, bool) {
	if space, err := strconv.Atoi(selector); err == nil && space >= 1 && space <= 8 {
		for _, f := range files {
			if f.Space == space {
				return f, true
			}
		}
	}
	for _, f := range files {
		if f.Name == selector {
			return f, true
		}
	}
	return records.FileAttributes{}, false
}

// ReadFile reads the content of an existing file, using attrs.AllocSize as
// the known transfer size — unlike FetchApplet, the device's initial
// acknowledgement to REQUEST_READ_FILE/REQUEST_READ_RAW_FILE is not
// consulted for a size, matching neotools/file.py's raw_read_file, which
// discards that response entirely before driving the block-read loop.
func (dv *Device) ReadFile(appletID uint16, attrs records.FileAttributes, raw bool) ([]byte, error) {
	var content []byte
	err := dv.withDialogue("read_file", func(d *dialogue.Dialogue) error {
		opcode := frame.RequestReadFile
		if raw {
			opcode = frame.RequestReadRawFile
		}
		req, err := frame.New(opcode,
			frame.A(attrs.AllocSize, 1, 3),
			frame.A(uint32(attrs.FileIndex), 4, 1),
			frame.A(uint32(appletID), 5, 2),
		)
		if err != nil {
			return err
		}
		if _, err := d.Exchange(req, transport.DefaultTimeout); err != nil {
			return fmt.Errorf("requesting read: %w", err)
		}
		content, err = extdata.Read(d, int(attrs.AllocSize))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("neo: read_file %q: %w", attrs.Name, err)
	}
	return content, nil
}

// writeFileBody runs the write/block-write/confirm sequence shared by
// WriteFile and CreateFile's final step, per neotools/file.py's
// raw_write_file.
func writeFileBody(d *dialogue.Dialogue, appletID uint16, fileIndex int, data []byte, raw bool) error {
	opcode := frame.RequestWriteFile
	if raw {
		opcode = frame.RequestWriteRawFile
	}
	req, err := frame.New(opcode,
		frame.A(uint32(fileIndex), 1, 1),
		frame.A(uint32(len(data)), 2, 3),
		frame.A(uint32(appletID), 5, 2),
	)
	if err != nil {
		return err
	}
	if _, err := d.ExchangeExpect(req, frame.ResponseWriteFile, transport.DefaultTimeout); err != nil {
		return fmt.Errorf("requesting write: %w", err)
	}
	if err := extdata.Write(d, data); err != nil {
		return fmt.Errorf("writing body: %w", err)
	}
	confirmReq, err := frame.New(frame.RequestConfirmWriteFile)
	if err != nil {
		return err
	}
	if _, err := d.ExchangeExpect(confirmReq, frame.ResponseConfirmWriteFile, transport.DefaultTimeout); err != nil {
		return fmt.Errorf("confirming write: %w", err)
	}
	return nil
}

// WriteFile overwrites the body of an existing file.
func (dv *Device) WriteFile(appletID uint16, fileIndex int, data []byte, raw bool) error {
	err := dv.withDialogue("write_file", func(d *dialogue.Dialogue) error {
		return writeFileBody(d, appletID, fileIndex, data, raw)
	})
	if err != nil {
		return fmt.Errorf("neo: write_file index %d: %w", fileIndex, err)
	}
	return nil
}

func setFileAttributes(d *dialogue.Dialogue, appletID uint16, fileIndex int, attrs records.FileAttributes) error {
	req, err := frame.New(frame.RequestSetFileAttributes, frame.A(uint32(fileIndex), 1, 4), frame.A(uint32(appletID), 5, 2))
	if err != nil {
		return err
	}
	if _, err := d.ExchangeExpect(req, frame.ResponseSetFileAttributes, transport.DefaultTimeout); err != nil {
		return fmt.Errorf("requesting set attributes: %w", err)
	}
	raw, err := attrs.EncodeFileAttributes()
	if err != nil {
		return err
	}
	if err := extdata.Write(d, raw); err != nil {
		return fmt.Errorf("writing attributes: %w", err)
	}
	return nil
}

func commit(d *dialogue.Dialogue, appletID uint16, fileIndex int) error {
	req, err := frame.New(frame.RequestCommit, frame.A(uint32(fileIndex), 4, 1), frame.A(uint32(appletID), 5, 2))
	if err != nil {
		return err
	}
	_, err = d.ExchangeExpect(req, frame.ResponseCommit, transport.DefaultTimeout)
	return err
}

// CreateFile allocates a new file bound to no space (space 0, "unbound"),
// per neotools/file.py's create_file: set attributes, commit to bind them
// to a fresh file index, then run the normal write sequence.
func (dv *Device) CreateFile(appletID uint16, name, password string, data []byte) (records.FileAttributes, error) {
	usage, err := dv.GetAppletResourceUsage(appletID)
	if err != nil {
		return records.FileAttributes{}, fmt.Errorf("neo: create_file: %w", err)
	}
	available, err := dv.GetAvailableSpace()
	if err != nil {
		return records.FileAttributes{}, fmt.Errorf("neo: create_file: %w", err)
	}
	if uint32(len(data))+createFileRAMHeadroom > available.FreeRAM {
		return records.FileAttributes{}, &Error{Kind: KindResource, Op: "create_file",
			Err: fmt.Errorf("file of %d bytes would leave less than %d bytes free RAM (have %d)", len(data), createFileRAMHeadroom, available.FreeRAM)}
	}

	fileIndex := int(usage.FileCount) + 1
	attrs := records.FileAttributes{
		FileIndex: fileIndex,
		Name:      name,
		Password:  password,
		MinSize:   uint32(len(data)),
		AllocSize: uint32(len(data)),
		Space:     0,
	}

	err = dv.withDialogue("create_file", func(d *dialogue.Dialogue) error {
		if err := setFileAttributes(d, appletID, fileIndex, attrs); err != nil {
			return err
		}
		if err := commit(d, appletID, fileIndex); err != nil {
			return fmt.Errorf("committing new file: %w", err)
		}
		return writeFileBody(d, appletID, fileIndex, data, true)
	})
	if err != nil {
		return records.FileAttributes{}, err
	}
	return attrs, nil
}

// ClearFile truncates an existing file to zero length: its attributes are
// rewritten with alloc_size = min_size = 0, then an empty body is written,
// per neotools/file.py's clear_file.
func (dv *Device) ClearFile(appletID uint16, fileIndex int) error {
	var attrs records.FileAttributes
	var found bool
	err := dv.withDialogue("clear_file:read", func(d *dialogue.Dialogue) error {
		var err error
		attrs, found, err = getFileAttributes(d, appletID, fileIndex)
		return err
	})
	if err != nil {
		return fmt.Errorf("neo: clear_file index %d: %w", fileIndex, err)
	}
	if !found {
		return &Error{Kind: KindUser, Op: "clear_file", Err: fmt.Errorf("no file at index %d", fileIndex)}
	}
	attrs.AllocSize = 0
	attrs.MinSize = 0

	err = dv.withDialogue("clear_file", func(d *dialogue.Dialogue) error {
		if err := setFileAttributes(d, appletID, fileIndex, attrs); err != nil {
			return err
		}
		if err := commit(d, appletID, fileIndex); err != nil {
			return fmt.Errorf("committing cleared attributes: %w", err)
		}
		return writeFileBody(d, appletID, fileIndex, nil, true)
	})
	if err != nil {
		return fmt.Errorf("neo: clear_file index %d: %w", fileIndex, err)
	}
	return nil
}
