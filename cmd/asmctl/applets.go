package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/atotto/clipboard"

	"asmgo/internal/neo"
	"asmgo/internal/records"
	"asmgo/internal/settings"
)

func runApplets(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("applets: missing subcommand (list|get-settings|set-settings|fetch|install|remove|remove-all)")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return appletsList(rest)
	case "get-settings":
		return appletsGetSettings(rest)
	case "set-settings":
		return appletsSetSettings(rest)
	case "fetch":
		return appletsFetch(rest)
	case "install":
		return appletsInstall(rest)
	case "remove":
		return appletsRemove(rest)
	case "remove-all":
		return appletsRemoveAll(rest)
	default:
		return fmt.Errorf("applets: unknown subcommand %q", sub)
	}
}

func appletsList(args []string) error {
	fs, configPath, catalogPath, _ := newFlagSet("applets list")
	showCatalog := fs.Bool("catalog", false, "annotate applet ids with catalog names")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openSession(*configPath, *catalogPath)
	if err != nil {
		return err
	}
	defer s.close()

	applets, err := s.dv.ListApplets()
	if err != nil {
		return fmt.Errorf("listing applets: %w", err)
	}

	type row struct {
		AppletID uint16 `json:"applet_id"`
		Name     string `json:"name"`
		Catalog  string `json:"catalog_name,omitempty"`
		Version  string `json:"version"`
		ROMSize  uint32 `json:"rom_size"`
		RAMSize  uint32 `json:"ram_size"`
		Hidden   bool   `json:"hidden"`
	}
	rows := make([]row, 0, len(applets))
	for _, a := range applets {
		r := row{
			AppletID: a.AppletID,
			Name:     a.Name,
			Version:  fmt.Sprintf("%d.%d.%d", a.VersionMajor, a.VersionMinor, a.VersionRevision),
			ROMSize:  a.ROMSize,
			RAMSize:  a.RAMSize,
			Hidden:   a.Hidden(),
		}
		if *showCatalog {
			r.Catalog = s.cat.NameFor(a.AppletID)
		}
		rows = append(rows, r)
	}
	return printJSON(rows)
}

func appletsGetSettings(args []string) error {
	fs, configPath, catalogPath, _ := newFlagSet("applets get-settings")
	copyFlag := fs.Bool("copy", false, "copy the rendered settings JSON to the clipboard")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("applets get-settings: requires <applet>")
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

	coll, err := s.dv.GetSettings(appletID, neo.SettingsFlagsDefault)
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}

	rendered := coll.Render()
	out, err := json.MarshalIndent(rendered, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	fmt.Println(string(out))

	if *copyFlag {
		if err := clipboard.WriteAll(string(out)); err != nil {
			fmt.Fprintf(os.Stderr, "asmctl: warning: clipboard copy failed: %v\n", err)
		}
	}
	return nil
}

// settingsChange is one entry of the JSON array "applets set-settings"
// reads: an ident plus the kind of change to apply, dispatched to
// settings.Collection's Change* methods.
type settingsChange struct {
	Ident    string          `json:"ident"`
	Kind     string          `json:"kind"`
	Value    json.RawMessage `json:"value,omitempty"`
	Selected string          `json:"selected,omitempty"`
}

func appletsSetSettings(args []string) error {
	fs, configPath, catalogPath, _ := newFlagSet("applets set-settings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("applets set-settings: requires <applet> <settings.json>")
	}
	appletID, err := parseAppletID(fs.Arg(0))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("reading %s: %w", fs.Arg(1), err)
	}
	var changes []settingsChange
	if err := json.Unmarshal(data, &changes); err != nil {
		return fmt.Errorf("parsing %s: %w", fs.Arg(1), err)
	}

	s, err := openSession(*configPath, *catalogPath)
	if err != nil {
		return err
	}
	defer s.close()

	coll, err := s.dv.GetSettings(appletID, neo.SettingsFlagsAll)
	if err != nil {
		return fmt.Errorf("reading current settings: %w", err)
	}

	for _, ch := range changes {
		ident, err := parseAppletID(ch.Ident)
		if err != nil {
			return fmt.Errorf("settings change: %w", err)
		}
		if err := applySettingsChange(&coll, ident, ch); err != nil {
			return fmt.Errorf("settings change for ident 0x%04x: %w", ident, err)
		}
	}

	if err := s.dv.SetSettings(appletID, coll); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	fmt.Println("settings updated")
	return nil
}

func applySettingsChange(coll *settings.Collection, ident uint16, ch settingsChange) error {
	switch ch.Kind {
	case "range32":
		var r records.Range32
		if err := json.Unmarshal(ch.Value, &r); err != nil {
			return err
		}
		return coll.ChangeRange32(ident, r)
	case "option":
		selected, err := parseAppletID(ch.Selected)
		if err != nil {
			return err
		}
		return coll.ChangeOption(ident, selected)
	case "password":
		var pw string
		if err := json.Unmarshal(ch.Value, &pw); err != nil {
			return err
		}
		return coll.ChangePassword(ident, pw)
	case "applet_id":
		var idStr string
		if err := json.Unmarshal(ch.Value, &idStr); err != nil {
			return err
		}
		id, err := parseAppletID(idStr)
		if err != nil {
			return err
		}
		return coll.ChangeAppletID(ident, id)
	default:
		return fmt.Errorf("unknown change kind %q", ch.Kind)
	}
}

func appletsFetch(args []string) error {
	fs, configPath, catalogPath, statusAddr := newFlagSet("applets fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("applets fetch: requires <applet> <out-file>")
	}
	appletID, err := parseAppletID(fs.Arg(0))
	if err != nil {
		return err
	}
	outPath := fs.Arg(1)

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

	var content []byte
	err = withProgress(fmt.Sprintf("fetching applet 0x%04x", appletID), func() error {
		var fetchErr error
		content, fetchErr = s.dv.FetchApplet(appletID)
		return fetchErr
	})
	if err != nil {
		return fmt.Errorf("fetching applet: %w", err)
	}

	resolved := resolveOutputPath(s.cfg, outPath)
	if err := os.WriteFile(resolved, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", resolved, err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", resolved, len(content))
	return nil
}

func appletsInstall(args []string) error {
	fs, configPath, catalogPath, statusAddr := newFlagSet("applets install")
	force := fs.Bool("force", false, "overwrite an already-installed applet with the same id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("applets install: requires <image-file>")
	}
	content, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading %s: %w", fs.Arg(0), err)
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

	var header records.AppletHeader
	err = withProgress(fmt.Sprintf("installing %s", fs.Arg(0)), func() error {
		var installErr error
		header, installErr = s.dv.InstallApplet(content, *force)
		return installErr
	})
	if err != nil {
		return fmt.Errorf("installing applet: %w", err)
	}
	fmt.Printf("installed 0x%04x %s\n", header.AppletID, header.Name)
	return nil
}

func appletsRemove(args []string) error {
	fs, configPath, catalogPath, _ := newFlagSet("applets remove")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("applets remove: requires <applet>")
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

	if err := s.dv.RemoveApplet(appletID); err != nil {
		return fmt.Errorf("removing applet: %w", err)
	}
	fmt.Printf("removed 0x%04x\n", appletID)
	return nil
}

func appletsRemoveAll(args []string) error {
	fs, configPath, catalogPath, _ := newFlagSet("applets remove-all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openSession(*configPath, *catalogPath)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.dv.RemoveApplets(); err != nil {
		return fmt.Errorf("removing applets: %w", err)
	}
	fmt.Println("removed all non-system applets")
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
