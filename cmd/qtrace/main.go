// Command qtrace is the thin CLI shell around the tracer driver: it
// resolves a guest program, launches it under the emulator, and prints
// summary counts once the run completes.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
