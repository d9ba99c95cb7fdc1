package main

import (
	"fmt"
)

// runInfo prints firmware version, free ROM/RAM, and per-applet resource
// usage — the supplemented "asmctl info" feature SPEC_FULL.md adds on top
// of the distilled spec's bare applet/file/settings operations.
func runInfo(args []string) error {
	fs, configPath, catalogPath, _ := newFlagSet("info")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openSession(*configPath, *catalogPath)
	if err != nil {
		return err
	}
	defer s.close()

	version, err := s.dv.GetVersion()
	if err != nil {
		return fmt.Errorf("reading version: %w", err)
	}
	fmt.Printf("firmware: %s %d.%d (%s)\n", version.Name, version.Major, version.Minor, version.BuildDate)
	if !version.ChecksumOK() {
		fmt.Printf("  warning: version checksum mismatch (got 0x%04x, want 0x%04x)\n",
			version.ComputedChecksum, version.DeclaredChecksum)
	}

	space, err := s.dv.GetAvailableSpace()
	if err != nil {
		return fmt.Errorf("reading free space: %w", err)
	}
	fmt.Printf("free ROM: %d bytes\n", space.FreeROM)
	fmt.Printf("free RAM: %d bytes\n", space.FreeRAM)

	applets, err := s.dv.ListApplets()
	if err != nil {
		return fmt.Errorf("listing applets: %w", err)
	}
	fmt.Printf("applets (%d):\n", len(applets))
	for _, a := range applets {
		usage, err := s.dv.GetAppletResourceUsage(a.AppletID)
		if err != nil {
			fmt.Printf("  0x%04x %-16s (usage unavailable: %v)\n", a.AppletID, a.Name, err)
			continue
		}
		name := a.Name
		if known := s.cat.NameFor(a.AppletID); known != "Unknown" {
			name = fmt.Sprintf("%s (%s)", a.Name, known)
		}
		fmt.Printf("  0x%04x %-24s ram=%-8d files=%d\n", a.AppletID, name, usage.RAM, usage.FileCount)
	}
	return nil
}
