// Command asmctl is a thin front-end over internal/neo's high-level ASM
// operations: mode switching, firmware/memory queries, applet management,
// and file transfer. It owns no protocol logic itself — every subcommand
// connects a neo.Device, calls one or two of its methods, and renders the
// result, per spec.md §6's "thin front-end over high-level ops".
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "mode":
		err = runMode(args)
	case "info":
		err = runInfo(args)
	case "applets":
		err = runApplets(args)
	case "files":
		err = runFiles(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "asmctl: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "asmctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: asmctl <command> [flags]

commands:
  mode {--keyboard|--comms}                       switch the device's USB personality
  info                                             firmware version, free ROM/RAM, per-applet usage
  applets list [--catalog]                         list installed applets
  applets get-settings [--copy] <applet>           print an applet's settings as JSON
  applets set-settings <applet> <settings.json>    write settings from a JSON file
  applets fetch <applet> <out-file>                download an applet's binary image
  applets install [--force] <image-file>           install an applet image
  applets remove <applet>                          remove one applet
  applets remove-all                               remove every non-system applet
  files list <applet>                              list an applet's files
  files read [--raw] <applet> <file> <out-file>    download one file
  files read-all [--alphaword] <applet>            download every file for an applet
  files write [--raw] <applet> <file> <in-file>    upload one file
  files clear <applet> <file>                      clear one file

flags must come before a subcommand's positional arguments.

global flags accepted by every subcommand except mode:
  --config <path>        YAML profile (default: ~/.config/asmctl/config.yaml)
  --catalog-file <path>  applet-id-to-name catalog (default: config's catalog_path)
  --status-addr <addr>   expose progress over HTTP while the command runs`)
}

// newFlagSet builds a FlagSet preconfigured with the global flags every
// subcommand accepts, returning the bound variables alongside it.
func newFlagSet(name string) (fs *flag.FlagSet, configPath, catalogPath, statusAddr *string) {
	fs = flag.NewFlagSet(name, flag.ExitOnError)
	configPath = fs.String("config", "", "YAML config profile path")
	catalogPath = fs.String("catalog-file", "", "applet catalog YAML path")
	statusAddr = fs.String("status-addr", "", "address to serve progress status on, e.g. 127.0.0.1:8808")
	return fs, configPath, catalogPath, statusAddr
}
