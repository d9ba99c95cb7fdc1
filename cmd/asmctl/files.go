package main

import (
	"fmt"
	"os"
	"path/filepath"

	"asmgo/internal/neo"
	"asmgo/internal/records"
	"asmgo/internal/textcodec"
)

func runFiles(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("files: missing subcommand (list|read|read-all|write|clear)")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return filesList(rest)
	case "read":
		return filesRead(rest)
	case "read-all":
		return filesReadAll(rest)
	case "write":
		return filesWrite(rest)
	case "clear":
		return filesClear(rest)
	default:
		return fmt.Errorf("files: unknown subcommand %q", sub)
	}
}

func filesList(args []string) error {
	fs, configPath, catalogPath, _ := newFlagSet("files list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("files list: requires <applet>")
	}
	appletID, err := parseAppletID(fs.Arg(0))
	if err != nil {
		return err
	}

	s, err := openSession(*configPath, *catalogPath)
	if err != nil {
		return err
	}
	defer s.close()

	files, err := s.dv.ListFiles(appletID)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}
	return printJSON(files)
}

func filesRead(args []string) error {
	fs, configPath, catalogPath, statusAddr := newFlagSet("files read")
	raw := fs.Bool("raw", false, "read the raw file body rather than the plain-text form")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return fmt.Errorf("files read: requires <applet> <file> <out-file>")
	}
	appletID, err := parseAppletID(fs.Arg(0))
	if err != nil {
		return err
	}
	selector, outPath := fs.Arg(1), fs.Arg(2)

	s, err := openSession(*configPath, *catalogPath)
	if err != nil {
		return err
	}
	defer s.close()

	stop, err := maybeStartStatusServer(*statusAddr)
	if err != nil {
		return err
	}
	defer stop()

	files, err := s.dv.ListFiles(appletID)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}
	attrs, ok := neo.FindFileByNameOrSpace(files, selector)
	if !ok {
		return fmt.Errorf("files read: no file matches %q", selector)
	}

	var content []byte
	err = withProgress(fmt.Sprintf("reading %q", attrs.Name), func() error {
		var readErr error
		content, readErr = s.dv.ReadFile(appletID, attrs, *raw)
		return readErr
	})
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	resolved := resolveOutputPath(s.cfg, outPath)
	if err := os.WriteFile(resolved, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", resolved, err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", resolved, len(content))
	return nil
}

func filesReadAll(args []string) error {
	fs, configPath, catalogPath, statusAddr := newFlagSet("files read-all")
	alphaword := fs.Bool("alphaword", false, "decode each file's body through the AlphaWord text codec before writing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("files read-all: requires <applet>")
	}
	appletID, err := parseAppletID(fs.Arg(0))
	if err != nil {
		return err
	}

	s, err := openSession(*configPath, *catalogPath)
	if err != nil {
		return err
	}
	defer s.close()

	stop, err := maybeStartStatusServer(*statusAddr)
	if err != nil {
		return err
	}
	defer stop()

	applets, err := s.dv.ListApplets()
	if err != nil {
		return fmt.Errorf("listing applets: %w", err)
	}
	appletName := fmt.Sprintf("0x%04x", appletID)
	for _, a := range applets {
		if a.AppletID == appletID {
			appletName = sanitizeFileName(a.Name)
			break
		}
	}

	files, err := s.dv.ListFiles(appletID)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}

	appletDir := resolveOutputPath(s.cfg, appletName)
	if err := os.MkdirAll(appletDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", appletDir, err)
	}

	decodeText := *alphaword && appletID == records.AppletIDAlphaWord
	for _, attrs := range files {
		var content []byte
		label := fmt.Sprintf("reading %q (applet 0x%04x)", attrs.Name, appletID)
		err := withProgress(label, func() error {
			var readErr error
			content, readErr = s.dv.ReadFile(appletID, attrs, !decodeText)
			return readErr
		})
		if err != nil {
			return fmt.Errorf("reading %q: %w", attrs.Name, err)
		}

		fileName := sanitizeFileName(attrs.Name)
		binPath := filepath.Join(appletDir, fileName+".bin")
		if err := os.WriteFile(binPath, content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", binPath, err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", binPath, len(content))

		if decodeText {
			text := textcodec.Decode(content, textcodec.DefaultTable)
			txtPath := filepath.Join(appletDir, fileName+".txt")
			if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", txtPath, err)
			}
			fmt.Printf("wrote %s (%d bytes)\n", txtPath, len(text))
		}
	}
	return nil
}

func filesWrite(args []string) error {
	fs, configPath, catalogPath, statusAddr := newFlagSet("files write")
	raw := fs.Bool("raw", false, "write the file body as raw bytes rather than plain text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return fmt.Errorf("files write: requires <applet> <file> <in-file>")
	}
	appletID, err := parseAppletID(fs.Arg(0))
	if err != nil {
		return err
	}
	selector, inPath := fs.Arg(1), fs.Arg(2)

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inPath, err)
	}

	s, err := openSession(*configPath, *catalogPath)
	if err != nil {
		return err
	}
	defer s.close()

	stop, err := maybeStartStatusServer(*statusAddr)
	if err != nil {
		return err
	}
	defer stop()

	files, err := s.dv.ListFiles(appletID)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}
	attrs, ok := neo.FindFileByNameOrSpace(files, selector)

	label := fmt.Sprintf("writing %q", selector)
	err = withProgress(label, func() error {
		if ok {
			return s.dv.WriteFile(appletID, attrs.FileIndex, data, *raw)
		}
		_, createErr := s.dv.CreateFile(appletID, selector, "", data)
		return createErr
	})
	if err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	fmt.Println("write complete")
	return nil
}

func filesClear(args []string) error {
	fs, configPath, catalogPath, _ := newFlagSet("files clear")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("files clear: requires <applet> <file>")
	}
	appletID, err := parseAppletID(fs.Arg(0))
	if err != nil {
		return err
	}
	selector := fs.Arg(1)

	s, err := openSession(*configPath, *catalogPath)
	if err != nil {
		return err
	}
	defer s.close()

	files, err := s.dv.ListFiles(appletID)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}
	attrs, ok := neo.FindFileByNameOrSpace(files, selector)
	if !ok {
		return fmt.Errorf("files clear: no file matches %q", selector)
	}

	if err := s.dv.ClearFile(appletID, attrs.FileIndex); err != nil {
		return fmt.Errorf("clearing file: %w", err)
	}
	fmt.Println("file cleared")
	return nil
}

// sanitizeFileName strips path separators from a device-reported file name
// so it's safe to use directly as an output file name.
func sanitizeFileName(name string) string {
	return filepath.Base(filepath.Clean("/" + name))
}
