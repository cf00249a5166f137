//go:build !windows

package main

// enableANSI reports whether the terminal understands ANSI escape codes.
// Unix terminals support them natively.
func enableANSI() bool {
	return true
}
