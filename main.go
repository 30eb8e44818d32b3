// File: main.go
package main

import (
	"fmt"
	"os"

	"krypton.module/cmd"
	"krypton.module/internal"
	"krypton.module/internal/audit"
	"krypton.module/internal/errors"
	"krypton.module/internal/shutdown"
)

func main() {
	// Wire security cleanup into the shutdown manager
	internal.InitializeIntegration()

	shutdownManager := shutdown.GetManager()

	err := cmd.Execute(shutdownManager.Context())
	if err != nil && !shutdownManager.Interrupted() {
		fmt.Fprintln(os.Stderr, "Error:", errors.FormatForUser(err))
	}

	// Buffers are released here, on the goroutine that used them.
	shutdownManager.Shutdown()
	audit.Close()

	switch {
	case shutdownManager.Interrupted():
		os.Exit(130)
	case err != nil:
		os.Exit(1)
	}
}
