package main

import (
	"flag"
	"fmt"

	"asmgo/internal/neo"
)

func runMode(args []string) error {
	fs := flag.NewFlagSet("mode", flag.ExitOnError)
	keyboard := fs.Bool("keyboard", false, "switch the device to HID keyboard mode")
	comms := fs.Bool("comms", false, "switch the device to bulk-comms mode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *keyboard == *comms {
		return fmt.Errorf("mode: exactly one of --keyboard or --comms is required")
	}

	dv, err := neo.Connect()
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	if *keyboard {
		if err := dv.RestartToKeyboard(); err != nil {
			dv.CloseRaw()
			return fmt.Errorf("restarting to keyboard mode: %w", err)
		}
		fmt.Println("device switched to keyboard mode")
	} else {
		fmt.Println("device switched to comms mode")
	}
	return dv.CloseRaw()
}
