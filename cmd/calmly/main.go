// Command calmly runs a voice session from the terminal.
//
// Usage:
//
//	calmly run            stream the microphone until Ctrl-C or the service hangs up
//	calmly say <text>     speak text through the configured speech command
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
