//go:build windows

package cmd

import "os"

// gracefulSignals returns the OS signals that cancel a running command.
// On Windows, only os.Interrupt (Ctrl+C / CTRL_C_EVENT) is reliably delivered.
func gracefulSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
