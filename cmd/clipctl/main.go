// Package main provides clipctl, the ClipBox command-line client. It works
// on the stores directly and is meant to run while the daemon is stopped.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
