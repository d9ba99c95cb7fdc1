package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"asmgo/internal/catalog"
	"asmgo/internal/config"
	"asmgo/internal/neo"
)

// session bundles everything a subcommand needs after parsing its flags:
// a connected device, the merged config, and the applet-name catalog.
type session struct {
	dv  *neo.Device
	cfg config.Config
	cat catalog.Catalog
}

// openSession loads config and the applet catalog, then connects the
// device. Callers must dv.Close() (via s.close()) on every exit path.
func openSession(configPath, catalogPath string) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	catPath := catalogPath
	if catPath == "" {
		catPath = cfg.CatalogPath
	}
	cat, err := catalog.Load(catPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	dv, err := neo.Connect()
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	return &session{dv: dv, cfg: cfg, cat: cat}, nil
}

func (s *session) close() {
	if err := s.dv.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "asmctl: warning: close: %v\n", err)
	}
}

// parseAppletID accepts either a decimal or 0x-prefixed hex applet id
// string, as every applets/files subcommand's <applet> positional does.
func parseAppletID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	var id uint64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err = strconv.ParseUint(s[2:], 16, 16)
	} else {
		id, err = strconv.ParseUint(s, 10, 16)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid applet id %q: %w", s, err)
	}
	return uint16(id), nil
}

// maybeStartStatusServer starts the optional --status-addr HTTP server when
// addr is non-empty, returning a no-op stop func otherwise.
func maybeStartStatusServer(addr string) (stop func(), err error) {
	if addr == "" {
		return func() {}, nil
	}
	stop, err = startStatusServer(addr)
	if err != nil {
		return nil, fmt.Errorf("starting status server on %s: %w", addr, err)
	}
	fmt.Fprintf(os.Stderr, "status server listening on %s\n", addr)
	return stop, nil
}

// resolveOutputPath joins a relative path against the configured output
// directory; an absolute path passes through unchanged.
func resolveOutputPath(cfg config.Config, path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return cfg.OutputDir + string(os.PathSeparator) + path
}
