package config

import (
	"fmt"
	"os"
)

// ExitStoreUnavailable is the process exit code used when the local store
// cannot be opened or migrated.
const ExitStoreUnavailable = 3

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	ExitCodef(1, format, args...)
}

// ExitCodef writes a formatted error message to stderr and exits with code.
func ExitCodef(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}
