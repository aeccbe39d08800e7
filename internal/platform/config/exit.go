package config

import (
	"fmt"
	"os"
)

// Exitf prints a formatted line to stderr and exits with status 1. Main
// packages use it for unrecoverable startup failures.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
